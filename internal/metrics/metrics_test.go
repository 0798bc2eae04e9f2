package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://example.com/path", "example.com"},
		{"standard https", "https://Example.com/path", "example.com"},
		{"no scheme", "example.com/path", "example.com"},
		{"just host", "example.com", "example.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"api endpoint", "https://api.indexnow.org/indexnow", "api.indexnow.org"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeSite(tc.input); got != tc.expected {
				t.Errorf("SanitizeSite(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestObserveSubmission(t *testing.T) {
	Init()
	Init()

	before := testutil.ToFloat64(urlsSubmittedTotal.WithLabelValues("unit-test", "accepted"))
	ObserveSubmission("unit-test", 3, 0)
	after := testutil.ToFloat64(urlsSubmittedTotal.WithLabelValues("unit-test", "accepted"))
	if after-before != 3 {
		t.Errorf("expected accepted counter to grow by 3, got %f", after-before)
	}
}

func TestWriteTextfile(t *testing.T) {
	ObserveAPIRequest("https://ssl.bing.com/webmaster", 200, 50*time.Millisecond)
	ObserveAuditCheck("meta", "pass")

	path := filepath.Join(t.TempDir(), "seo-pilot.prom")
	if err := WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile() error = %v", err)
	}
	// #nosec G304 -- test reads from the controlled temp directory.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	text := string(data)
	for _, want := range []string{"seo_pilot_api_requests_total", `host="ssl.bing.com"`, "seo_pilot_audit_checks_total"} {
		if !strings.Contains(text, want) {
			t.Errorf("expected textfile to contain %q", want)
		}
	}
}

// Fuzz test for SanitizeSite.
func FuzzSanitizeSite(f *testing.F) {
	testcases := []string{"http://example.com", "https://google.com", "ftp://example.com"}
	for _, tc := range testcases {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		sanitized := SanitizeSite(orig)
		if sanitized == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", orig)
		}
	})
}
