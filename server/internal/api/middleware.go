package api

import (
	"log/slog"
	"net/http"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// requestLogger logs one line per request. Query strings are never logged.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// sourceTrees are top-level directories that only hold server code.
var sourceTrees = []string{"server", "agent", "pkg", "cmd", "internal"}

// blockSensitive rejects requests for dotfiles, Go sources, module files,
// the source trees and the audit log directory with 403.
func blockSensitive(staticDir, auditPath string) func(http.Handler) http.Handler {
	auditPrefix := auditURLPrefix(staticDir, auditPath)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isBlocked(r.URL.Path, auditPrefix) {
				jsonErr(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isBlocked(urlPath, auditPrefix string) bool {
	clean := path.Clean("/" + urlPath)
	lower := strings.ToLower(clean)

	segments := strings.Split(strings.TrimPrefix(lower, "/"), "/")
	for _, seg := range segments {
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	last := segments[len(segments)-1]
	if strings.HasSuffix(last, ".go") || last == "go.mod" || last == "go.sum" {
		return true
	}
	for _, tree := range sourceTrees {
		if segments[0] == tree {
			return true
		}
	}
	if auditPrefix != "" && (lower == auditPrefix || strings.HasPrefix(lower, auditPrefix+"/")) {
		return true
	}
	return false
}

// auditURLPrefix returns the URL path under which the audit log directory
// would be reachable through the static file server, or "" if it cannot be.
func auditURLPrefix(staticDir, auditPath string) string {
	if auditPath == "" {
		return ""
	}
	dir := filepath.Dir(auditPath)
	if !filepath.IsAbs(dir) {
		if dir == "." {
			return ""
		}
		return strings.ToLower(path.Clean("/" + filepath.ToSlash(dir)))
	}
	if staticDir == "" {
		return ""
	}
	root, err := filepath.Abs(staticDir)
	if err != nil {
		return ""
	}
	rel, err := filepath.Rel(root, dir)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return ""
	}
	return strings.ToLower(path.Clean("/" + filepath.ToSlash(rel)))
}
