package render

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"strings"
	"time"

	"contractdesk/internal/layout"

	"go.uber.org/zap"
)

// Gotenberg converts the rendered HTML to PDF through a Gotenberg
// Chromium endpoint, which shapes Arabic correctly.
// Chromium fetches the images itself, so image URLs that do not resolve to
// public addresses are dropped before the HTML is sent.
type Gotenberg struct {
	URL     string
	Client  *http.Client
	Resolve Resolver
}

func NewGotenberg(baseURL string) *Gotenberg {
	return &Gotenberg{
		URL:     strings.TrimRight(baseURL, "/") + "/forms/chromium/convert/html",
		Client:  &http.Client{Timeout: 60 * time.Second},
		Resolve: net.DefaultResolver.LookupIPAddr,
	}
}

func (g *Gotenberg) RenderPDF(ctx context.Context, doc layout.Document, meta Meta) ([]byte, error) {
	resolve := g.Resolve
	if resolve == nil {
		resolve = net.DefaultResolver.LookupIPAddr
	}
	page, err := HTML(publicImages(ctx, resolve, doc), meta)
	if err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("files", "index.html")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(page); err != nil {
		return nil, fmt.Errorf("write html: %w", err)
	}
	_ = writer.WriteField("printBackground", "true")
	_ = writer.WriteField("preferCssPageSize", "true")
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.URL, body)
	if err != nil {
		return nil, fmt.Errorf("gotenberg request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	resp, err := g.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gotenberg request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("gotenberg: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return io.ReadAll(resp.Body)
}

type fallbackEngine struct {
	primary, secondary PDFEngine
	lg                 *zap.SugaredLogger
}

// WithFallback tries primary first and draws with secondary when it fails.
func WithFallback(primary, secondary PDFEngine, lg *zap.SugaredLogger) PDFEngine {
	return &fallbackEngine{primary: primary, secondary: secondary, lg: lg}
}

func (f *fallbackEngine) RenderPDF(ctx context.Context, doc layout.Document, meta Meta) ([]byte, error) {
	out, err := f.primary.RenderPDF(ctx, doc, meta)
	if err == nil {
		return out, nil
	}
	f.lg.Warnw("primary pdf engine failed, falling back", "error", err, "reference", meta.ReferenceNumber)
	return f.secondary.RenderPDF(ctx, doc, meta)
}

const maxImageBytes = 8 << 20

// HTTPImageLoader fetches images over HTTP(S), capped at 8 MiB. A nil
// client gets NewImageClient, which only dials public addresses.
func HTTPImageLoader(client *http.Client) ImageLoader {
	if client == nil {
		client = NewImageClient(10 * time.Second)
	}
	return func(ctx context.Context, url string) ([]byte, error) {
		if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
			return nil, fmt.Errorf("unsupported image url %q", url)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("image %s: status %d", url, resp.StatusCode)
		}
		return io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	}
}
