// Package api implements the HTTP surface of statusdeck-server.
//
// New(deps) returns an http.Handler that serves:
//
//	GET  /proxy/hypervisor/node/{node}/status  node status, passed through
//	GET  /proxy/hypervisor/vm/{vmid}/online    {vmid,node,online,status}
//	GET  /proxy/hypervisor/root                API root, passed through
//	GET  /proxy/containers                     container host status, passed through
//	GET  /proxy/media/now_playing              media activity, passed through
//	POST /proxy/chat                           {messages,model?} to {reply,model}
//	GET  /env.js                               public settings for the browser UI
//	GET  /healthz                              liveness
//	GET  /metrics                              Prometheus exposition
//	GET  /*                                    static UI, when configured
//
// Every proxied call is audited whatever its outcome. Failures map to fixed
// statuses: 503 for an unset credential, 504 for a timeout, 500 for an
// unreachable upstream, and the upstream's own status otherwise.
//
// Dotfiles, Go sources, go.mod/go.sum, the source trees and the audit log
// directory are refused with 403 before routing.
package api
