// Package batch builds and parses multipart/mixed batch payloads used by
// Google's batch HTTP endpoints.
package batch

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
)

// Item is one inner response of a batch, in submission order.
type Item struct {
	StatusCode int
	// Error is the provider's error text when the inner body carried one.
	Error string
}

// OK reports whether the inner response is 2xx.
func (i Item) OK() bool {
	return i.StatusCode >= 200 && i.StatusCode < 300
}

// Part is one inner HTTP request of an outgoing batch.
type Part struct {
	Method string
	Path   string
	Body   []byte
}

// Boundary extracts the multipart boundary from a Content-Type header value.
func Boundary(contentType string) (string, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", fmt.Errorf("parse content type %q: %w", contentType, err)
	}
	if !strings.HasPrefix(mediaType, "multipart/") {
		return "", fmt.Errorf("unexpected content type %q", mediaType)
	}
	boundary := params["boundary"]
	if boundary == "" {
		return "", errors.New("content type has no boundary")
	}
	return boundary, nil
}

// Parse reads a batch response body using the boundary advertised in contentType.
func Parse(body []byte, contentType string) ([]Item, error) {
	boundary, err := Boundary(contentType)
	if err != nil {
		return nil, err
	}
	return ParseWithBoundary(body, boundary), nil
}

// ParseWithBoundary splits body into parts and extracts each inner status
// line and error message. Parts without a status line are skipped; a
// truncated body yields the items read so far.
func ParseWithBoundary(body []byte, boundary string) []Item {
	items := make([]Item, 0)
	reader := multipart.NewReader(bytes.NewReader(body), boundary)
	for {
		part, err := reader.NextPart()
		if err != nil {
			return items
		}
		item, ok := parsePart(part)
		_ = part.Close()
		if ok {
			items = append(items, item)
		}
	}
}

func parsePart(part io.Reader) (Item, bool) {
	resp, err := http.ReadResponse(bufio.NewReader(part), nil)
	if err != nil {
		return Item{}, false
	}
	defer resp.Body.Close() //nolint:errcheck // in-memory body

	item := Item{StatusCode: resp.StatusCode}
	raw, err := io.ReadAll(resp.Body)
	if err != nil && len(raw) == 0 {
		return item, true
	}
	item.Error = errorMessage(raw)
	return item, true
}

func errorMessage(raw []byte) string {
	start := bytes.IndexByte(raw, '{')
	end := bytes.LastIndexByte(raw, '}')
	if start < 0 || end < start {
		return ""
	}
	var payload struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(raw[start:end+1], &payload); err != nil || len(payload.Error) == 0 {
		return ""
	}
	var detail struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(payload.Error, &detail); err == nil && detail.Message != "" {
		return detail.Message
	}
	if string(payload.Error) == "null" {
		return ""
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, payload.Error); err != nil {
		return string(payload.Error)
	}
	return compact.String()
}

// Build writes parts as a multipart/mixed body with the given boundary.
// Each part is wrapped as application/http with a Content-ID of <itemN>.
func Build(boundary string, parts []Part) ([]byte, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.SetBoundary(boundary); err != nil {
		return nil, fmt.Errorf("set boundary: %w", err)
	}
	for i, p := range parts {
		header := textproto.MIMEHeader{}
		header.Set("Content-Type", "application/http")
		header.Set("Content-ID", fmt.Sprintf("<item%d>", i+1))
		pw, err := w.CreatePart(header)
		if err != nil {
			return nil, fmt.Errorf("create part %d: %w", i+1, err)
		}
		method := p.Method
		if method == "" {
			method = http.MethodPost
		}
		if _, err := fmt.Fprintf(pw, "%s %s HTTP/1.1\r\nContent-Type: application/json\r\n\r\n", method, p.Path); err != nil {
			return nil, fmt.Errorf("write part %d: %w", i+1, err)
		}
		if _, err := pw.Write(p.Body); err != nil {
			return nil, fmt.Errorf("write part %d body: %w", i+1, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close batch body: %w", err)
	}
	return buf.Bytes(), nil
}

// ContentType returns the request Content-Type for a batch body.
func ContentType(boundary string) string {
	return "multipart/mixed; boundary=" + boundary
}
