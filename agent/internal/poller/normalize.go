package poller

import (
	"encoding/json"

	"github.com/statusdeck/statusdeck/pkg/normalize"
	"github.com/statusdeck/statusdeck/pkg/types"
)

// Normalize converts a fetched body into the record for kind. It never fails.
func Normalize(kind types.Kind, resp *Response) types.Record {
	var body []byte
	status := 0
	if resp != nil {
		body, status = resp.Body, resp.Status
	}

	switch kind {
	case types.KindNode:
		return normalize.NodeStatus(body)
	case types.KindContainers:
		return normalize.Containers(body)
	case types.KindMedia:
		return normalize.Sessions(body)
	case types.KindVM:
		return vmState(body)
	default:
		return types.Raw{Status: status, Body: string(body)}
	}
}

// vmState reads the server's already-normalized VM answer.
func vmState(body []byte) types.VMPowerState {
	var v struct {
		VMID   string `json:"vmid"`
		Online bool   `json:"online"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &v); err != nil || v.Status == "" {
		return types.VMPowerState{VMID: v.VMID, RawStatus: normalize.StatusUnknown}
	}
	return types.VMPowerState{VMID: v.VMID, Online: v.Online, RawStatus: v.Status}
}
