package api

import (
	"encoding/json"
	"net/http"

	"github.com/statusdeck/statusdeck/server/internal/upstream"
)

// envJS returns GET /env.js, a script that publishes PublicEnv to the browser.
func (h *Handler) envJS(w http.ResponseWriter, _ *http.Request) {
	data, err := json.Marshal(h.publicEnv())
	if err != nil {
		http.Error(w, "encode env", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("window.__STATUSDECK__ = "))
	_, _ = w.Write(data)
	_, _ = w.Write([]byte(";\n"))
}

func (h *Handler) publicEnv() PublicEnv {
	pub := h.cfg.Server.Public
	env := PublicEnv{
		Title:      pub.Title,
		Nodes:      append([]string{}, pub.Nodes...),
		VMs:        append([]string{}, pub.VMs...),
		RefreshMS:  make(map[string]int64, len(pub.Refresh)),
		Configured: make(map[string]bool, 4),
	}
	for k, d := range pub.Refresh {
		env.RefreshMS[k] = d.Milliseconds()
	}
	for _, c := range []upstream.Category{upstream.Hypervisor, upstream.Containers, upstream.Media, upstream.Chat} {
		env.Configured[string(c)] = h.up.Configured(c)
	}
	return env
}
