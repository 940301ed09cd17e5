package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/m3rciful/shiftbot/core/logger"
)

const component = "service.ingest"

// Source yields one plan document.
type Source interface {
	Fetch(ctx context.Context) (Document, error)
}

// FileSource reads a document from disk.
type FileSource struct {
	Path string
}

func (s FileSource) Fetch(ctx context.Context) (Document, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return Document{}, fmt.Errorf("open plan file: %w", err)
	}
	defer f.Close()
	doc, err := Decode(f)
	if err != nil {
		return Document{}, err
	}
	logger.Debug(ctx, component, "ingest.fetched", slog.String("source", "file"), slog.Int("orders", len(doc.Orders)))
	return doc, nil
}

// HTTPSource fetches the document with a GET request.
type HTTPSource struct {
	URL     string
	Client  *http.Client
	Timeout time.Duration
}

const maxDocumentBytes = 32 << 20

func (s HTTPSource) Fetch(ctx context.Context) (Document, error) {
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return Document{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return Document{}, fmt.Errorf("fetch plan: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Document{}, fmt.Errorf("fetch plan: status %d: %s", resp.StatusCode, logger.SanitizeLimit(string(body), 200))
	}
	doc, err := Decode(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return Document{}, err
	}
	logger.Debug(ctx, component, "ingest.fetched",
		slog.String("source", "http"),
		slog.Int("orders", len(doc.Orders)),
		slog.Duration("duration", logger.Took(start)),
	)
	return doc, nil
}
