package fetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, rc io.ReadCloser) string {
	t.Helper()
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(b)
}

func TestEncodePath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"A/ISP1/f1.xml", "A/ISP1/f1.xml"},
		{"A/ISP 1/f#1.xml", "A/ISP%201/f%231.xml"},
		{"A/50%/x?.bin", "A/50%25/x%3F.bin"},
		{"Ünï/cödé.bin", "%C3%9Cn%C3%AF/c%C3%B6d%C3%A9.bin"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EncodePath(tt.in), tt.in)
	}
}

func TestCleanPath(t *testing.T) {
	for _, bad := range []string{"", "/", "../etc/passwd", "A/../../x", "A//B", "./x"} {
		_, err := cleanPath(bad)
		assert.ErrorIs(t, err, ErrInvalidPath, bad)
	}
	got, err := cleanPath("/A/B/c.bin")
	require.NoError(t, err)
	assert.Equal(t, "A/B/c.bin", got)
}

func TestLocalFetch(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "A", "ISP 1"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "A", "ISP 1", "f1.xml"), []byte("<xml/>"), 0o644))

	l := NewLocal(root)
	assert.Equal(t, root, l.Root())

	rc, err := l.Fetch(context.Background(), "A/ISP 1/f1.xml")
	require.NoError(t, err)
	assert.Equal(t, "<xml/>", readAll(t, rc))

	_, err = l.Fetch(context.Background(), "A/missing.bin")
	assert.True(t, errors.Is(err, os.ErrNotExist))

	_, err = l.Fetch(context.Background(), "../outside")
	assert.ErrorIs(t, err, ErrInvalidPath)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.Fetch(ctx, "A/ISP 1/f1.xml")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHTTPFetch(t *testing.T) {
	var gotRawPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRawPath = r.URL.EscapedPath()
		if r.URL.Path == "/fw/A/ISP 1/f#1.xml" {
			_, _ = w.Write([]byte("payload"))
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)

	h, err := NewHTTP(srv.URL+"/fw", nil)
	require.NoError(t, err)

	u, err := h.URL("A/ISP 1/f#1.xml")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/fw/A/ISP%201/f%231.xml", u)

	rc, err := h.Fetch(context.Background(), "A/ISP 1/f#1.xml")
	require.NoError(t, err)
	assert.Equal(t, "payload", readAll(t, rc))
	assert.Equal(t, "/fw/A/ISP%201/f%231.xml", gotRawPath)

	_, err = h.Fetch(context.Background(), "A/missing.bin")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestHTTPColonInFirstSegment(t *testing.T) {
	h, err := NewHTTP("http://example.com/", nil)
	require.NoError(t, err)
	u, err := h.URL("a:b/c.bin")
	require.NoError(t, err)
	assert.Equal(t, "http://example.com/a:b/c.bin", u)
}

func TestNewHTTPRejectsBadScheme(t *testing.T) {
	_, err := NewHTTP("ftp://example.com", nil)
	assert.Error(t, err)
}

func TestS3Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet && r.URL.Path == "/firmware/mirror/A/ISP1/f1.xml" {
			w.Header().Set("Content-Length", "6")
			_, _ = w.Write([]byte("<xml/>"))
			return
		}
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`))
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	f, err := Open(ctx, "s3://firmware/mirror", "", S3Options{
		Region:    "us-east-1",
		Endpoint:  srv.URL,
		AccessKey: "test",
		SecretKey: "test",
	})
	require.NoError(t, err)
	s, ok := f.(*S3)
	require.True(t, ok)

	key, err := s.Key("A/ISP1/f1.xml")
	require.NoError(t, err)
	assert.Equal(t, "mirror/A/ISP1/f1.xml", key)

	rc, err := s.Fetch(ctx, "A/ISP1/f1.xml")
	require.NoError(t, err)
	assert.Equal(t, "<xml/>", readAll(t, rc))

	_, err = s.Fetch(ctx, "A/missing.bin")
	assert.Error(t, err)
}

func TestOpenSelectsFetcher(t *testing.T) {
	f, err := Open(context.Background(), "", "/srv/fw", S3Options{})
	require.NoError(t, err)
	assert.IsType(t, &Local{}, f)

	f, err = Open(context.Background(), "https://mirror.example.com/fw", "", S3Options{})
	require.NoError(t, err)
	assert.IsType(t, &HTTP{}, f)

	f, err = Open(context.Background(), "/mnt/fw", "", S3Options{})
	require.NoError(t, err)
	assert.Equal(t, "/mnt/fw", f.(*Local).Root())

	_, err = Open(context.Background(), "s3://", "", S3Options{})
	assert.Error(t, err)
}

func TestInstrument(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.bin"), []byte("a"), 0o644))

	var sources []string
	var failures int
	f := Instrument(NewLocal(root), "local", func(source string, _ time.Duration, err error) {
		sources = append(sources, source)
		if err != nil {
			failures++
		}
	})

	rc, err := f.Fetch(context.Background(), "a.bin")
	require.NoError(t, err)
	assert.Equal(t, "a", readAll(t, rc))
	_, err = f.Fetch(context.Background(), "b.bin")
	assert.Error(t, err)

	assert.Equal(t, []string{"local", "local"}, sources)
	assert.Equal(t, 1, failures)
	assert.False(t, strings.Contains(sources[0], "/"))
}
