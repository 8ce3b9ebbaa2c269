package infra

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestHTTPServerServesUntilContextDone(t *testing.T) {
	cfg := &Config{Port: "0", HTTPWriteTimeout: time.Second, ShutdownTimeout: time.Second}
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ok")
	})
	srv := NewHTTPServer(cfg, handler, zerolog.Nop())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "ok" {
		t.Fatalf("body = %q", body)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve returned %v after shutdown", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not return after context cancellation")
	}
}

func TestHTTPServerDefaultsShutdownTimeout(t *testing.T) {
	srv := NewHTTPServer(&Config{Port: "8000"}, http.NotFoundHandler(), zerolog.Nop())
	if srv.shutdownTimeout != 30*time.Second {
		t.Fatalf("shutdownTimeout = %v", srv.shutdownTimeout)
	}
	if srv.server.Addr != ":8000" {
		t.Fatalf("Addr = %q", srv.server.Addr)
	}
}
