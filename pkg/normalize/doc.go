// Package normalize maps upstream response payloads of arbitrary shape onto
// the fixed record types in package types.
//
// Every exported function is total: it never returns an error and never
// panics. A payload that does not match any known shape degrades to a safe
// default (offline, numeric fields nil, empty lists) instead of failing.
//
// Field lookup is written as ordered chains of typed probes. Each probe
// inspects one candidate location and reports (value, true) on a match; the
// first matching probe in a chain wins:
//
//	cpu, ok := first(root, scaled(floatAt("cpu"), 100), floatAt("cpu_usage"))
//
// Supported shapes:
//   - NodeStatus: Proxmox node status ({data:{cpu, memory{used,total,free}}}),
//     flat agent exports ({cpu_usage, mem_used, mem_total, status})
//   - Containers: Docker-style lists (top-level array, {containers:[]}, {data:[]})
//   - Sessions: Tautulli get_activity and similar feeds, four nesting paths
//   - VMPower: Proxmox qemu status/current ({data:{status}})
package normalize
