package audio

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/OmarFaruqJibon/NexoVoice-AI/internal/application"
)

var extensionMIMETypes = map[string]string{
	".wav":  "audio/wav",
	".webm": "audio/webm",
	".ogg":  "audio/ogg",
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
}

// FileSource stands in for a microphone by "recording" pre-recorded clips
// dropped into a directory, one per session. The stream reports silence, so
// the voice activity monitor stops it after the configured silence window.
type FileSource struct {
	dir          string
	pollInterval time.Duration
	processed    map[string]bool
	mu           sync.Mutex
}

func NewFileSource(dir string) *FileSource {
	return &FileSource{
		dir:          dir,
		pollInterval: 500 * time.Millisecond,
		processed:    make(map[string]bool),
	}
}

func (f *FileSource) Name() string {
	return "file"
}

func (f *FileSource) MIMETypes() []string {
	return []string{"audio/wav", "audio/webm", "audio/ogg", "audio/mpeg", "audio/mp4"}
}

// Open waits for the next unprocessed clip in the directory.
func (f *FileSource) Open(ctx context.Context, _ string) (application.AudioStream, error) {
	if err := os.MkdirAll(f.dir, 0755); err != nil {
		return nil, fmt.Errorf("creating audio dir: %w", err)
	}

	ticker := time.NewTicker(f.pollInterval)
	defer ticker.Stop()

	for {
		data, mimeType, err := f.checkForNewFile()
		if err != nil {
			return nil, err
		}
		if data != nil {
			return newClipStream(data, mimeType), nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (f *FileSource) checkForNewFile() ([]byte, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, "", fmt.Errorf("reading dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		mimeType, ok := extensionMIMETypes[filepath.Ext(entry.Name())]
		if !ok {
			continue
		}

		path := filepath.Join(f.dir, entry.Name())
		if f.processed[path] {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, "", fmt.Errorf("reading file %s: %w", path, err)
		}

		f.processed[path] = true
		os.Rename(path, path+".processed")

		return data, mimeType, nil
	}

	return nil, "", nil
}

// clipStream replays a whole clip as a single fragment on finalize.
type clipStream struct {
	data      []byte
	mimeType  string
	fragments chan []byte
	once      sync.Once
}

func newClipStream(data []byte, mimeType string) *clipStream {
	return &clipStream{
		data:      data,
		mimeType:  mimeType,
		fragments: make(chan []byte, 1),
	}
}

func (c *clipStream) Fragments() <-chan []byte { return c.fragments }
func (c *clipStream) Level() float64           { return 0 }
func (c *clipStream) MIMEType() string         { return c.mimeType }

func (c *clipStream) Finalize() {
	c.once.Do(func() {
		c.fragments <- c.data
		close(c.fragments)
	})
}

func (c *clipStream) Close() error {
	c.once.Do(func() { close(c.fragments) })
	return nil
}

// FileSink is a headless player: each reply is written to dir and its
// playback completes as soon as it is played.
type FileSink struct {
	dir    string
	logger *slog.Logger
}

func NewFileSink(dir string, logger *slog.Logger) *FileSink {
	return &FileSink{dir: dir, logger: logger}
}

func (s *FileSink) Load(_ context.Context, data []byte, contentType string) (application.Track, error) {
	dt, err := newDecodedTrack(data, contentType)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return nil, fmt.Errorf("creating reply dir: %w", err)
	}
	name := fmt.Sprintf("reply-%s%s", time.Now().Format("20060102-150405.000"), replyExtension(data, contentType))
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, fmt.Errorf("writing reply: %w", err)
	}
	s.logger.Info("reply saved", "path", path, "bytes", len(data))

	return &sinkTrack{decodedTrack: dt}, nil
}

func replyExtension(data []byte, contentType string) string {
	if sniff(data, contentType) == "mp3" {
		return ".mp3"
	}
	return ".wav"
}

type sinkTrack struct {
	*decodedTrack
}

func (t *sinkTrack) Play() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.rewindLocked(); err != nil {
		return err
	}
	if err := t.streamer.Seek(t.streamer.Len()); err != nil {
		return fmt.Errorf("seeking to end: %w", err)
	}
	t.markEndedLocked()
	return nil
}

func (t *sinkTrack) Pause() {}

func (t *sinkTrack) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closeLocked()
}
