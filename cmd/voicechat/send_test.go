package main

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/OmarFaruqJibon/NexoVoice-AI/internal/infra/audio"
)

func TestSendCommand_SavesReply(t *testing.T) {
	reply, err := audio.EncodeWAV(make([]int16, 32000), 16000)
	if err != nil {
		t.Fatalf("encoding reply: %v", err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("audio")
		if err != nil {
			http.Error(w, "missing audio", http.StatusBadRequest)
			return
		}
		defer file.Close()
		io.Copy(io.Discard, file)
		if header.Filename != "voice.ogg" {
			http.Error(w, "unexpected filename "+header.Filename, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "audio/wav")
		w.Write(reply)
	}))
	defer server.Close()

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	os.WriteFile(cfgPath, []byte("backend:\n  url: "+server.URL+"\nlog:\n  level: error\n"), 0644)
	clipPath := filepath.Join(dir, "question.ogg")
	os.WriteFile(clipPath, []byte("OggS..."), 0644)
	outPath := filepath.Join(dir, "answer.wav")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"send", "--config", cfgPath, "-o", outPath, clipPath})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("send: %v", err)
	}

	saved, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("reading reply: %v", err)
	}
	if !bytes.Equal(saved, reply) {
		t.Error("saved reply differs from backend response")
	}
	if !strings.Contains(out.String(), "0:02") {
		t.Errorf("output should report reply length: %q", out.String())
	}
}

func TestSendCommand_ReportsServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "server busy", http.StatusInternalServerError)
	}))
	defer server.Close()

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	os.WriteFile(cfgPath, []byte("backend:\n  url: "+server.URL+"\nlog:\n  level: error\n"), 0644)
	clipPath := filepath.Join(dir, "question.wav")
	os.WriteFile(clipPath, []byte("RIFF"), 0644)

	cmd := newRootCmd()
	cmd.SetOut(io.Discard)
	cmd.SetArgs([]string{"send", "--config", cfgPath, "-o", filepath.Join(dir, "out.wav"), clipPath})

	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "server busy") {
		t.Fatalf("expected server busy error, got %v", err)
	}
}

func TestLoadConfig_ExplicitPathMustExist(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"send", "--config", filepath.Join(t.TempDir(), "missing.yaml"), "clip.wav"})
	cmd.SetOut(io.Discard)

	if err := cmd.Execute(); err == nil || !strings.Contains(err.Error(), "loading config") {
		t.Fatalf("expected config error, got %v", err)
	}
}
