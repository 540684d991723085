package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	logx "ticketwatch/pkg/logx"
)

func TestGetOK(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Check") != "yes" {
			t.Errorf("missing header, got %q", r.Header.Get("X-Check"))
		}
		if ck, err := r.Cookie("session"); err != nil || ck.Value != "abc" {
			t.Errorf("missing cookie: %v", err)
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New(Config{}, logx.Nop())
	body, err := c.Get(context.Background(), srv.URL,
		map[string]string{"X-Check": "yes"},
		[]*http.Cookie{{Name: "session", Value: "abc"}})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(body) != `{"ok":true}` {
		t.Fatalf("body = %q", body)
	}
}

func TestGetNon200IsError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	c := New(Config{}, logx.Nop())
	if _, err := c.Get(context.Background(), srv.URL, nil, nil); err == nil {
		t.Fatal("expected error for 403 response")
	}
}

func TestGetDoesNotFollowRedirects(t *testing.T) {
	t.Parallel()
	var followed atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			http.Redirect(w, r, "/login", http.StatusFound)
		default:
			followed.Store(true)
			w.Write([]byte("login page"))
		}
	}))
	defer srv.Close()

	c := New(Config{}, logx.Nop())
	if _, err := c.Get(context.Background(), srv.URL+"/", nil, nil); err == nil {
		t.Fatal("redirect should surface as an error")
	}
	if followed.Load() {
		t.Fatal("client followed the redirect")
	}
}

func TestRotationAfterThreshold(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := New(Config{RebuildAfter: 3}, logx.Nop())
	for i := 0; i < 3; i++ {
		if _, err := c.Get(context.Background(), srv.URL, nil, nil); err != nil {
			t.Fatalf("Get %d: %v", i, err)
		}
	}

	// Rotation runs in its own goroutine; wait for the counter reset.
	deadline := time.Now().Add(2 * time.Second)
	for c.Requests() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("counter should reset after rotation, got %d", c.Requests())
		}
		time.Sleep(time.Millisecond)
	}

	// Requests keep working on the fresh transport.
	if _, err := c.Get(context.Background(), srv.URL, nil, nil); err != nil {
		t.Fatalf("Get after rotate: %v", err)
	}
	if got := c.Requests(); got != 1 {
		t.Fatalf("counter = %d, want 1", got)
	}
}
