package normalize

import (
	"github.com/statusdeck/statusdeck/pkg/types"
)

// StatusUnknown is reported when a VM payload carries no usable status.
const StatusUnknown = "unknown"

// VMPower normalizes a Proxmox qemu status payload for vmid. The second
// return value reports whether the payload had a "data" object at all;
// callers use it to tell an empty answer from a malformed one.
func VMPower(vmid string, payload []byte) (types.VMPowerState, bool) {
	out := types.VMPowerState{VMID: vmid, RawStatus: StatusUnknown}

	v, ok := decode(payload)
	if !ok {
		return out, false
	}
	data, ok := lookup(v, "data")
	if !ok {
		return out, false
	}
	if _, isObj := data.(map[string]any); !isObj {
		return out, false
	}

	if status, ok := first(data, stringAt("status"), stringAt("qmpstatus")); ok {
		out.RawStatus = status
		out.Online = status == "running" || status == "online"
	}
	return out, true
}
