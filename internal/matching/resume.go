package matching

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/spigell/job-matcher/internal/ai"
)

const (
	defaultMIMEType     = "application/octet-stream"
	defaultFetchTimeout = 20 * time.Second
	maxResumeBytes      = 20 << 20
	userAgent           = "spigell/job-matcher"
)

var documentTypes = map[string]string{
	".pdf":  "application/pdf",
	".txt":  "text/plain",
	".md":   "text/markdown",
	".rtf":  "application/rtf",
	".html": "text/html",
	".htm":  "text/html",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".odt":  "application/vnd.oasis.opendocument.text",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".webp": "image/webp",
}

// ResumeFetcher downloads a resume document.
type ResumeFetcher interface {
	Fetch(ctx context.Context, uri string) (ai.Document, error)
}

// InferMIMEType maps the extension of uri to a document MIME type. Query strings and
// fragments are ignored. Unknown extensions yield application/octet-stream.
func InferMIMEType(uri string) string {
	if mimeType, ok := knownMIMEType(uri); ok {
		return mimeType
	}
	return defaultMIMEType
}

func knownMIMEType(uri string) (string, bool) {
	p := uri
	if u, err := url.Parse(uri); err == nil && u.Path != "" {
		p = u.Path
	}
	mimeType, ok := documentTypes[strings.ToLower(path.Ext(p))]
	return mimeType, ok
}

// HTTPResumeFetcher fetches http(s) URIs over the network and file:// URIs or bare paths
// from the local filesystem.
type HTTPResumeFetcher struct {
	HTTPClient *http.Client
	UserAgent  string
}

func NewHTTPResumeFetcher(timeout time.Duration) *HTTPResumeFetcher {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &HTTPResumeFetcher{
		HTTPClient: &http.Client{Timeout: timeout},
		UserAgent:  userAgent,
	}
}

func (f *HTTPResumeFetcher) Fetch(ctx context.Context, uri string) (ai.Document, error) {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return ai.Document{}, &ai.ExternalServiceError{Service: "resume", Op: "fetch", Err: errors.New("resume uri is empty")}
	}

	var (
		data        []byte
		contentType string
		err         error
	)

	switch {
	case strings.HasPrefix(uri, "http://"), strings.HasPrefix(uri, "https://"):
		data, contentType, err = f.fetchHTTP(ctx, uri)
	case strings.HasPrefix(uri, "file://"):
		data, err = readLocal(strings.TrimPrefix(uri, "file://"))
	default:
		data, err = readLocal(uri)
	}
	if err != nil {
		return ai.Document{}, ai.NewExternalServiceError("resume", "fetch", err)
	}

	if len(data) == 0 {
		return ai.Document{}, &ai.ExternalServiceError{Service: "resume", Op: "fetch", Detail: uri, Err: errors.New("resume document is empty")}
	}

	return ai.Document{URI: uri, MIMEType: resolveMIMEType(contentType, uri), Data: data}, nil
}

func (f *HTTPResumeFetcher) fetchHTTP(ctx context.Context, uri string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, "", err
	}
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}

	client := f.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultFetchTimeout}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", fmt.Errorf("bad status: %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResumeBytes))
	if err != nil {
		return nil, "", err
	}

	return data, resp.Header.Get("Content-Type"), nil
}

func readLocal(p string) ([]byte, error) {
	file, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(io.LimitReader(file, maxResumeBytes))
}

// resolveMIMEType prefers a specific Content-Type header and falls back to the extension.
func resolveMIMEType(contentType, uri string) string {
	if contentType != "" {
		if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
			switch mediaType {
			case defaultMIMEType, "binary/octet-stream", "application/binary":
			default:
				return mediaType
			}
		}
	}
	return InferMIMEType(uri)
}
