package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/muesli/termenv"
	flag "github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/statusdeck/statusdeck/agent/internal/board"
	"github.com/statusdeck/statusdeck/agent/internal/config"
	"github.com/statusdeck/statusdeck/agent/internal/poller"
	"github.com/statusdeck/statusdeck/agent/internal/render"
)

const defaultWidth = 120

func main() {
	configPath := flag.StringP("config", "c", "config.yaml", "path to config file")
	logLevel := flag.String("log-level", "info", "log level: debug|info|warn|error")
	once := flag.Bool("once", false, "poll every source once, print the board and exit")
	width := flag.Int("width", 0, "board width in columns (default: terminal width)")
	flag.Parse()

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "invalid --log-level %q\n", *logLevel)
		os.Exit(2)
	}
	// stdout belongs to the board.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("statusdeck-agent starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	slog.Info("config loaded",
		"server_url", cfg.Agent.ServerURL,
		"sources", len(cfg.Agent.Sources),
		"fetch_timeout", cfg.Agent.FetchTimeout,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	r := &runner{board: board.New(nil)}
	if err := r.apply(ctx, cfg.Agent); err != nil {
		slog.Error("failed to start pollers", "err", err)
		os.Exit(1)
	}
	defer r.stop()

	out := termenv.NewOutput(os.Stdout)
	rend := render.NewRenderer(os.Stdout, out.EnvColorProfile())

	if *once {
		waitForFirstPoll(ctx, r.board, cfg.Agent.FetchTimeout+time.Second)
		r.stop()
		fmt.Fprintln(os.Stdout, rend.Board(r.title(), r.board.Snapshot(), boardWidth(*width)))
		return
	}

	go func() {
		err := config.Watch(ctx, *configPath, func(updated *config.Config) {
			if err := r.apply(ctx, updated.Agent); err != nil {
				slog.Error("config reload not applied", "err", err)
			}
		})
		if err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	interactive := term.IsTerminal(int(os.Stdout.Fd()))
	if interactive {
		out.AltScreen()
		out.HideCursor()
		defer func() {
			out.ShowCursor()
			out.ExitAltScreen()
		}()
	}

	ticker := time.NewTicker(cfg.Agent.RenderInterval)
	defer ticker.Stop()
	var last string
	for {
		frame := rend.Board(r.title(), r.board.Snapshot(), boardWidth(*width))
		if frame != last {
			if interactive {
				out.ClearScreen()
				fmt.Fprint(out, frame)
			} else {
				// Piped output gets one full frame per change.
				fmt.Fprintln(out, frame)
			}
			last = frame
		}
		select {
		case <-ctx.Done():
			slog.Info("statusdeck-agent shutting down")
			return
		case <-ticker.C:
		}
	}
}

// runner owns the running poll group and swaps it on config reload. The
// board survives reloads so cards and availability history carry over.
type runner struct {
	board *board.Board

	mu    sync.Mutex
	group *poller.Group
	cfg   config.AgentConfig
}

func (r *runner) apply(ctx context.Context, cfg config.AgentConfig) error {
	fetch, err := poller.NewHTTPFetcher(cfg)
	if err != nil {
		return err
	}
	loops := make([]*poller.Loop, 0, len(cfg.Sources))
	for _, src := range cfg.Sources {
		loops = append(loops, poller.New(src, fetch, r.board, poller.WithTimeout(cfg.FetchTimeout)))
		slog.Info("registered source", "id", src.ID, "kind", src.Kind, "path", src.Path, "interval", src.Interval)
	}
	if len(loops) == 0 {
		slog.Warn("no sources configured; the board will be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.group != nil {
		r.group.Stop()
	}
	r.board.SetSources(cfg.Sources)
	r.group, r.cfg = poller.NewGroup(loops...), cfg
	r.group.Start(ctx)
	return nil
}

func (r *runner) stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.group != nil {
		r.group.Stop()
	}
}

func (r *runner) title() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg.Title
}

func waitForFirstPoll(ctx context.Context, b *board.Board, limit time.Duration) {
	deadline := time.Now().Add(limit)
	for b.Pending() > 0 && time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func boardWidth(flagWidth int) int {
	if flagWidth > 0 {
		return flagWidth
	}
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return defaultWidth
}
