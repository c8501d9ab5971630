package normalize

import (
	"github.com/statusdeck/statusdeck/pkg/types"
)

var (
	nodeCPU = []probe[float64]{
		scaled(floatAt("cpu"), 100), // fraction 0..1
		floatAt("cpu_usage"),        // already a percentage
	}
	nodeMemTotal = []probe[int64]{
		intAt("memory", "total"),
		intAt("mem_total"),
		intAt("maxmem"),
	}
	nodeMemUsed = []probe[int64]{
		intAt("memory", "used"),
		usedFromFree,
		intAt("mem_used"),
		intAt("mem"),
	}
	nodeOnline = []probe[bool]{
		boolAt("online"),
		statusIsOnline,
	}
)

// NodeStatus normalizes a hypervisor node status payload. A top-level "data"
// object, as returned by the Proxmox API, is unwrapped first.
//
// When the payload parses as an object but carries neither an "online" flag
// nor a "status" string, the node is reported online.
func NodeStatus(payload []byte) types.NodeStatus {
	v, ok := decode(payload)
	if !ok {
		return types.NodeStatus{}
	}
	if data, ok := lookup(v, "data"); ok {
		if _, isObj := data.(map[string]any); isObj {
			v = data
		}
	}
	if _, isObj := v.(map[string]any); !isObj {
		return types.NodeStatus{}
	}

	out := types.NodeStatus{Online: true}
	if online, ok := first(v, nodeOnline...); ok {
		out.Online = online
	}
	if cpu, ok := first(v, nodeCPU...); ok {
		out.CPUPercent = ptr(clamp(cpu, 0, 100))
	}

	total, hasTotal := first(v, nodeMemTotal...)
	used, hasUsed := first(v, nodeMemUsed...)
	if hasTotal {
		if total < 0 {
			total = 0
		}
		out.MemoryTotalBytes = ptr(total)
	}
	if hasUsed {
		if used < 0 {
			used = 0
		}
		if hasTotal && used > total {
			used = total
		}
		out.MemoryUsedBytes = ptr(used)
	}
	return out
}

// usedFromFree derives memory.used as memory.total - memory.free.
func usedFromFree(v any) (int64, bool) {
	total, ok := intAt("memory", "total")(v)
	if !ok {
		return 0, false
	}
	free, ok := intAt("memory", "free")(v)
	if !ok {
		return 0, false
	}
	return total - free, true
}

func statusIsOnline(v any) (bool, bool) {
	s, ok := stringAt("status")(v)
	if !ok {
		return false, false
	}
	return s == "online", true
}
