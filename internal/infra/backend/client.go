package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/OmarFaruqJibon/NexoVoice-AI/internal/domain"
)

const (
	DefaultURL       = "http://localhost:8000/voice-chat"
	DefaultFieldName = "audio"

	maxReplyBytes = 50 * 1024 * 1024
	maxErrorBytes = 64 * 1024
)

var ErrReplyTooLarge = errors.New("reply audio too large")

type Client struct {
	url        string
	fieldName  string
	maxReply   int64
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(url, fieldName string, timeout time.Duration, logger *slog.Logger) *Client {
	if url == "" {
		url = DefaultURL
	}
	if fieldName == "" {
		fieldName = DefaultFieldName
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		url:       url,
		fieldName: fieldName,
		maxReply:  maxReplyBytes,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
	}
}

// Upload posts the clip as a single multipart file field and returns the
// response body as opaque reply audio.
func (c *Client) Upload(ctx context.Context, clip domain.Clip) (*domain.Reply, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		escapeQuotes(c.fieldName), escapeQuotes(clip.Filename)))
	contentType := clip.MIMEType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("creating form file: %w", err)
	}
	if _, err = part.Write(clip.Data); err != nil {
		return nil, fmt.Errorf("writing audio: %w", err)
	}
	if err = writer.Close(); err != nil {
		return nil, fmt.Errorf("closing writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: sending request: %v", domain.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBytes))
		c.logger.Warn("voice backend rejected upload",
			"status", resp.StatusCode,
			"elapsed", time.Since(start),
		)
		return nil, &domain.UploadError{
			StatusCode: resp.StatusCode,
			Detail:     strings.TrimSpace(string(respBody)),
		}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxReply+1))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", domain.ErrNetwork, err)
	}
	if int64(len(data)) > c.maxReply {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrReplyTooLarge, c.maxReply)
	}

	c.logger.Info("upload complete",
		"bytes_sent", len(clip.Data),
		"bytes_received", len(data),
		"elapsed", time.Since(start),
	)

	return &domain.Reply{
		Data:        data,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
