package api

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/statusdeck/statusdeck/pkg/normalize"
	"github.com/statusdeck/statusdeck/server/internal/config"
	"github.com/statusdeck/statusdeck/server/internal/upstream"
)

// nodeStatus returns GET /proxy/hypervisor/node/{node}/status, passed through.
func (h *Handler) nodeStatus(w http.ResponseWriter, r *http.Request) {
	node := chi.URLParam(r, "node")
	if !config.NodePattern.MatchString(node) {
		jsonErr(w, http.StatusBadRequest, "invalid node name")
		return
	}
	h.proxyRaw(w, r, upstream.Hypervisor, upstream.Target{
		Path: "/api2/json/nodes/" + url.PathEscape(node) + "/status",
	})
}

// vmOnline returns GET /proxy/hypervisor/vm/{vmid}/online?node= as a
// normalized power state.
func (h *Handler) vmOnline(w http.ResponseWriter, r *http.Request) {
	vmid := chi.URLParam(r, "vmid")
	if !isDigits(vmid) {
		jsonErr(w, http.StatusBadRequest, "vmid must be numeric")
		return
	}
	node := r.URL.Query().Get("node")
	if node == "" {
		node = h.cfg.Upstreams.Hypervisor.DefaultNode
	}
	if node == "" {
		jsonErr(w, http.StatusBadRequest, "node is required")
		return
	}
	if !config.NodePattern.MatchString(node) {
		jsonErr(w, http.StatusBadRequest, "invalid node name")
		return
	}

	resp, err := h.call(r, upstream.Hypervisor, upstream.Target{
		Path: "/api2/json/nodes/" + url.PathEscape(node) + "/qemu/" + vmid + "/status/current",
	})
	if err != nil {
		h.writeUpstreamError(w, upstream.Hypervisor, err)
		return
	}

	state, hasData := normalize.VMPower(vmid, []byte(resp.Body))
	out := VMOnlineResponse{
		VMID:   vmid,
		Node:   node,
		Online: state.Online,
		Status: state.RawStatus,
	}
	switch {
	case !resp.OK():
		out.Online = false
		out.Status = normalize.StatusUnknown
		out.UpstreamStatus = resp.Status
		out.Error = fmt.Sprintf("upstream returned %d", resp.Status)
		jsonResp(w, resp.Status, out)
	case !hasData:
		out.UpstreamStatus = resp.Status
		out.Error = "upstream payload has no data section"
		jsonResp(w, http.StatusBadGateway, out)
	default:
		jsonResp(w, http.StatusOK, out)
	}
}

// hypervisorRoot returns GET /proxy/hypervisor/root, passed through.
func (h *Handler) hypervisorRoot(w http.ResponseWriter, r *http.Request) {
	h.proxyRaw(w, r, upstream.Hypervisor, upstream.Target{Path: "/api2/json/"})
}

// containers returns GET /proxy/containers, passed through.
func (h *Handler) containers(w http.ResponseWriter, r *http.Request) {
	h.proxyRaw(w, r, upstream.Containers, upstream.Target{})
}

// nowPlaying returns GET /proxy/media/now_playing, passed through.
func (h *Handler) nowPlaying(w http.ResponseWriter, r *http.Request) {
	h.proxyRaw(w, r, upstream.Media, upstream.Target{
		Path:  "/api/v2",
		Query: url.Values{"cmd": {"get_activity"}},
	})
}
