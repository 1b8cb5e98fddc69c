package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestChatCommand_EnterRestartsAfterError(t *testing.T) {
	var uploads int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&uploads, 1)
		http.Error(w, "server busy", http.StatusInternalServerError)
	}))
	defer server.Close()

	dir := t.TempDir()
	clips := filepath.Join(dir, "clips")
	os.MkdirAll(clips, 0755)
	os.WriteFile(filepath.Join(clips, "a.wav"), []byte("first question"), 0644)
	os.WriteFile(filepath.Join(clips, "b.wav"), []byte("second question"), 0644)

	cfgPath := filepath.Join(dir, "config.yaml")
	os.WriteFile(cfgPath, []byte(`
backend:
  url: `+server.URL+`
capture:
  source: file
  file_dir: `+clips+`
  stop_delay: 0s
vad:
  silence: 30ms
  poll_interval: 2ms
session:
  auto_relisten: false
playback:
  output: file
  dir: `+filepath.Join(dir, "replies")+`
log:
  level: error
`), 0644)

	stdin, keys := io.Pipe()
	defer keys.Close()
	var out syncBuffer

	cmd := newRootCmd()
	cmd.SetIn(stdin)
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"chat", "--config", cfgPath})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- cmd.ExecuteContext(ctx) }()

	waitUntil(t, "first session to fail", func() bool {
		return strings.Count(out.String(), "server busy") == 1
	})
	if n := atomic.LoadInt32(&uploads); n != 1 {
		t.Fatalf("uploads after first session: got %d, want 1", n)
	}

	io.WriteString(keys, "\n")
	waitUntil(t, "second session to fail", func() bool {
		return strings.Count(out.String(), "server busy") == 2
	})
	if n := atomic.LoadInt32(&uploads); n != 2 {
		t.Errorf("uploads after restart: got %d, want 2", n)
	}

	io.WriteString(keys, "q\n")
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("chat: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("chat did not exit on q")
	}
}
