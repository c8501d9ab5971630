package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"reflect"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDelay collapses the burst of events a single editor save produces.
const reloadDelay = 100 * time.Millisecond

// Changed lists the sections of next that differ from running, as dotted
// config keys such as "server.public" or "upstreams.media".
func Changed(running, next *Config) []string {
	var out []string
	diff := func(name string, a, b any) {
		if !reflect.DeepEqual(a, b) {
			out = append(out, name)
		}
	}
	diff("server.http_port", running.Server.HTTPPort, next.Server.HTTPPort)
	diff("server.static_dir", running.Server.StaticDir, next.Server.StaticDir)
	diff("server.public", running.Server.Public, next.Server.Public)
	diff("server.audit", running.Server.Audit, next.Server.Audit)
	diff("server.auth", running.Server.Auth, next.Server.Auth)
	diff("server.tls", running.Server.TLS, next.Server.TLS)
	diff("upstreams.hypervisor", running.Upstreams.Hypervisor, next.Upstreams.Hypervisor)
	diff("upstreams.containers", running.Upstreams.Containers, next.Upstreams.Containers)
	diff("upstreams.media", running.Upstreams.Media, next.Upstreams.Media)
	diff("upstreams.chat", running.Upstreams.Chat, next.Upstreams.Chat)
	return out
}

// Watch reports edits to the file at path until ctx is cancelled. Each time
// the file parses to something different from running, onChange receives the
// changed sections.
//
// The parent directory is watched rather than the file so that saves which
// replace the file (write to temp, rename over) keep being seen. Credentials
// and the outbound transport are fixed at startup, so the server only reports
// the change; it never swaps its running configuration. An edit that fails to
// parse is logged and skipped.
func Watch(ctx context.Context, path string, running *Config, onChange func(changed []string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return err
	}

	slog.Info("config: watching for changes", "path", abs)

	timer := time.NewTimer(reloadDelay)
	timer.Stop()
	defer timer.Stop()

	last := running
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			timer.Reset(reloadDelay)

		case <-timer.C:
			next, err := Load(abs)
			if err != nil {
				slog.Warn("config: changed file does not parse", "path", abs, "err", err)
				continue
			}
			// Report against the running config, but only once per distinct edit.
			if len(Changed(last, next)) == 0 {
				continue
			}
			last = next
			if changed := Changed(running, next); len(changed) > 0 {
				onChange(changed)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("config: watcher error", "err", err)
		}
	}
}
