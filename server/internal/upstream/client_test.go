package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/statusdeck/statusdeck/server/internal/config"
)

// recorder is a mock upstream that remembers the last request it saw.
type recorder struct {
	srv   *httptest.Server
	hits  atomic.Int32
	last  atomic.Pointer[http.Request]
	reply func(w http.ResponseWriter, r *http.Request)
}

func newRecorder(t *testing.T, reply func(w http.ResponseWriter, r *http.Request)) *recorder {
	t.Helper()
	rec := &recorder{reply: reply}
	rec.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.hits.Add(1)
		rec.last.Store(r.Clone(context.Background()))
		rec.reply(w, r)
	}))
	t.Cleanup(rec.srv.Close)
	return rec
}

func okJSON(body string) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}
}

func newClient(t *testing.T, up config.UpstreamsConfig) *Client {
	t.Helper()
	if up.Containers.KeyParam == "" {
		up.Containers.KeyParam = config.DefaultKeyParam
	}
	c, err := New(up, config.TLSConfig{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestCall_HypervisorInjectsPVEToken(t *testing.T) {
	t.Setenv("SD_PVE", "root@pam!dash=s3cret")
	rec := newRecorder(t, okJSON(`{"data":{"status":"running"}}`))
	c := newClient(t, config.UpstreamsConfig{
		Hypervisor: config.HypervisorConfig{BaseURL: rec.srv.URL + "/", TokenEnv: "SD_PVE"},
	})

	resp, err := c.Call(context.Background(), Hypervisor, Target{Path: "/api2/json/nodes/pve/status"})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if resp.Status != http.StatusOK || !resp.OK() {
		t.Errorf("Status = %d, want 200", resp.Status)
	}
	req := rec.last.Load()
	if got := req.Header.Get("Authorization"); got != "PVEAPIToken=root@pam!dash=s3cret" {
		t.Errorf("Authorization = %q", got)
	}
	if req.URL.Path != "/api2/json/nodes/pve/status" {
		t.Errorf("path = %q", req.URL.Path)
	}
	if req.URL.RawQuery != "" {
		t.Errorf("query = %q, want none", req.URL.RawQuery)
	}
}

func TestCall_QueryKeySchemes(t *testing.T) {
	t.Setenv("SD_DOCKER", "dk")
	t.Setenv("SD_MEDIA", "mk")
	rec := newRecorder(t, okJSON(`[]`))
	c := newClient(t, config.UpstreamsConfig{
		Containers: config.ContainersConfig{URL: rec.srv.URL + "/status?format=json", KeyEnv: "SD_DOCKER", KeyParam: "token"},
		Media:      config.MediaConfig{BaseURL: rec.srv.URL, KeyEnv: "SD_MEDIA"},
	})

	if _, err := c.Call(context.Background(), Containers, Target{}); err != nil {
		t.Fatalf("containers Call: %v", err)
	}
	q := rec.last.Load().URL.Query()
	if q.Get("token") != "dk" || q.Get("format") != "json" {
		t.Errorf("containers query = %v", q)
	}
	if rec.last.Load().Header.Get("Authorization") != "" {
		t.Error("containers request carries an Authorization header")
	}

	_, err := c.Call(context.Background(), Media, Target{
		Path:  "/api/v2",
		Query: url.Values{"cmd": {"get_activity"}},
	})
	if err != nil {
		t.Fatalf("media Call: %v", err)
	}
	req := rec.last.Load()
	if req.URL.Path != "/api/v2" {
		t.Errorf("media path = %q", req.URL.Path)
	}
	if q := req.URL.Query(); q.Get("apikey") != "mk" || q.Get("cmd") != "get_activity" {
		t.Errorf("media query = %v", q)
	}
}

func TestCall_ChatBearerOptional(t *testing.T) {
	rec := newRecorder(t, okJSON(`{}`))
	c := newClient(t, config.UpstreamsConfig{
		Chat: config.ChatConfig{Endpoint: rec.srv.URL + "/v1/chat/completions", Timeout: time.Second},
	})
	if _, err := c.Call(context.Background(), Chat, Target{Method: http.MethodPost, Body: []byte(`{}`)}); err != nil {
		t.Fatalf("Call without token: %v", err)
	}
	req := rec.last.Load()
	if req.Header.Get("Authorization") != "" {
		t.Errorf("Authorization = %q, want none", req.Header.Get("Authorization"))
	}
	if req.Method != http.MethodPost || req.Header.Get("Content-Type") != "application/json" {
		t.Errorf("method=%s content-type=%q", req.Method, req.Header.Get("Content-Type"))
	}

	t.Setenv("SD_CHAT", "sk-abc")
	c = newClient(t, config.UpstreamsConfig{
		Chat: config.ChatConfig{Endpoint: rec.srv.URL, TokenEnv: "SD_CHAT", Timeout: time.Second},
	})
	if _, err := c.Call(context.Background(), Chat, Target{Method: http.MethodPost, Body: []byte(`{}`)}); err != nil {
		t.Fatalf("Call with token: %v", err)
	}
	if got := rec.last.Load().Header.Get("Authorization"); got != "Bearer sk-abc" {
		t.Errorf("Authorization = %q", got)
	}
}

func TestCall_MissingCredentialNeverDials(t *testing.T) {
	rec := newRecorder(t, okJSON(`[]`))
	c := newClient(t, config.UpstreamsConfig{
		Hypervisor: config.HypervisorConfig{BaseURL: rec.srv.URL, TokenEnv: "SD_UNSET_1"},
		Containers: config.ContainersConfig{URL: rec.srv.URL, KeyEnv: "SD_UNSET_2"},
		Media:      config.MediaConfig{BaseURL: rec.srv.URL},
	})

	for _, cat := range []Category{Hypervisor, Containers, Media} {
		_, err := c.Call(context.Background(), cat, Target{})
		if !errors.Is(err, ErrMissingCredential) {
			t.Errorf("%s: err = %v, want ErrMissingCredential", cat, err)
		}
		var ue *UpstreamError
		if !errors.As(err, &ue) || ue.Category != cat {
			t.Errorf("%s: err = %#v, want *UpstreamError for category", cat, err)
		}
		if c.Configured(cat) {
			t.Errorf("Configured(%s) = true", cat)
		}
	}
	if n := rec.hits.Load(); n != 0 {
		t.Errorf("upstream saw %d requests, want 0", n)
	}
}

func TestCall_NotConfiguredAndUnknown(t *testing.T) {
	c := newClient(t, config.UpstreamsConfig{})
	if _, err := c.Call(context.Background(), Chat, Target{}); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("chat: err = %v, want ErrNotConfigured", err)
	}
	if _, err := c.Call(context.Background(), Category("nas"), Target{}); !errors.Is(err, ErrUnknownCategory) {
		t.Errorf("nas: err = %v, want ErrUnknownCategory", err)
	}
}

func TestCall_BadStatusIsNotAnError(t *testing.T) {
	t.Setenv("SD_PVE", "tok")
	rec := newRecorder(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"errors":"no such vm"}`, http.StatusNotFound)
	})
	c := newClient(t, config.UpstreamsConfig{
		Hypervisor: config.HypervisorConfig{BaseURL: rec.srv.URL, TokenEnv: "SD_PVE"},
	})
	resp, err := c.Call(context.Background(), Hypervisor, Target{Path: "/x"})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if resp.Status != http.StatusNotFound || resp.OK() {
		t.Errorf("Status = %d, want 404", resp.Status)
	}
	if !strings.Contains(resp.Body, "no such vm") {
		t.Errorf("Body = %q", resp.Body)
	}
}

func TestCall_ChatTimeout(t *testing.T) {
	release := make(chan struct{})
	rec := newRecorder(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	c := newClient(t, config.UpstreamsConfig{
		Chat: config.ChatConfig{Endpoint: rec.srv.URL, Timeout: 50 * time.Millisecond},
	})
	start := time.Now()
	_, err := c.Call(context.Background(), Chat, Target{Method: http.MethodPost, Body: []byte(`{}`)})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("timeout took %v", elapsed)
	}
}

func TestCall_UnreachableErrorIsScrubbed(t *testing.T) {
	t.Setenv("SD_DOCKER", "very-secret-key")
	// A listener that is closed immediately gives a refused connection.
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	c := newClient(t, config.UpstreamsConfig{
		Containers: config.ContainersConfig{URL: addr + "/status", KeyEnv: "SD_DOCKER"},
	})
	_, err := c.Call(context.Background(), Containers, Target{})
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, ErrMissingCredential) {
		t.Fatalf("err = %v, want a transport failure", err)
	}
	if strings.Contains(err.Error(), "very-secret-key") {
		t.Errorf("error leaks key: %v", err)
	}
}

func TestScrub(t *testing.T) {
	t.Setenv("SD_PVE", "root@pam!dash=a/b c")
	c := newClient(t, config.UpstreamsConfig{
		Hypervisor: config.HypervisorConfig{BaseURL: "https://pve:8006", TokenEnv: "SD_PVE"},
	})
	in := fmt.Sprintf("raw=%s escaped=%s", "root@pam!dash=a/b c", url.QueryEscape("root@pam!dash=a/b c"))
	out := c.Scrub(in)
	if strings.Contains(out, "dash") {
		t.Errorf("Scrub(%q) = %q", in, out)
	}
	if strings.Count(out, Placeholder) != 2 {
		t.Errorf("Scrub = %q, want two placeholders", out)
	}
}

func TestScrub_OverlappingSecrets(t *testing.T) {
	t.Setenv("SD_PVE", "abc123")
	t.Setenv("SD_DOCKER", "abc123SECRETTAIL")
	up := config.UpstreamsConfig{
		Hypervisor: config.HypervisorConfig{BaseURL: "https://pve:8006", TokenEnv: "SD_PVE"},
		Containers: config.ContainersConfig{URL: "http://docker/status", KeyEnv: "SD_DOCKER"},
	}
	in := "GET http://docker/status?key=abc123SECRETTAIL failed"
	// Map order varies between clients; every build must scrub the same way.
	for i := 0; i < 50; i++ {
		out := newClient(t, up).Scrub(in)
		if strings.Contains(out, "abc123") || strings.Contains(out, "SECRETTAIL") {
			t.Fatalf("build %d: Scrub = %q", i, out)
		}
		if want := "GET http://docker/status?key=" + Placeholder + " failed"; out != want {
			t.Fatalf("build %d: Scrub = %q, want %q", i, out, want)
		}
	}
}

func TestSecretNeverFormats(t *testing.T) {
	s := Secret("hunter2")

	checks := map[string]string{
		"%v":  fmt.Sprintf("%v", s),
		"%s":  fmt.Sprintf("%s", s),
		"%#v": fmt.Sprintf("%#v", s),
	}
	for verb, got := range checks {
		if got != Placeholder {
			t.Errorf("%s = %q, want %q", verb, got, Placeholder)
		}
	}

	b, err := json.Marshal(struct{ Token Secret }{s})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if strings.Contains(string(b), "hunter2") {
		t.Errorf("json leaks secret: %s", b)
	}

	var buf bytes.Buffer
	slog.New(slog.NewJSONHandler(&buf, nil)).Info("x", "token", s)
	if strings.Contains(buf.String(), "hunter2") {
		t.Errorf("slog leaks secret: %s", buf.String())
	}
}

func TestNew_BadCAFile(t *testing.T) {
	_, err := New(config.UpstreamsConfig{}, config.TLSConfig{CAFile: "/nonexistent/ca.pem"})
	if err == nil {
		t.Fatal("expected error for missing CA file")
	}
}

func TestURL_ResolvesWithoutCredential(t *testing.T) {
	t.Setenv("SD_MEDIA", "mk")
	c := newClient(t, config.UpstreamsConfig{
		Media: config.MediaConfig{BaseURL: "http://tautulli:8181/", KeyEnv: "SD_MEDIA"},
	})
	got := c.URL(Media, Target{Path: "/api/v2", Query: url.Values{"cmd": {"get_activity"}}})
	want := "http://tautulli:8181/api/v2?" + url.Values{"apikey": {Placeholder}, "cmd": {"get_activity"}}.Encode()
	if got != want {
		t.Errorf("URL = %q, want %q", got, want)
	}
	if strings.Contains(got, "mk") {
		t.Errorf("URL leaks credential: %q", got)
	}
	if c.URL(Chat, Target{}) != "" {
		t.Error("unconfigured category should have no URL")
	}
}
