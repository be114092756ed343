// Package fetch provides archive.Fetcher implementations for a local tree,
// an HTTP origin, and an S3 bucket.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/jamesainslie/fwindex/pkg/fwindex/archive"
)

// ErrInvalidPath is returned for paths that escape the root or are empty.
var ErrInvalidPath = errors.New("invalid file path")

// cleanPath validates a slash-separated catalog path.
func cleanPath(p string) (string, error) {
	p = strings.Trim(p, "/")
	if p == "" {
		return "", ErrInvalidPath
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return "", fmt.Errorf("%w: %s", ErrInvalidPath, p)
		}
	}
	return p, nil
}

// EncodePath percent-encodes every "/"-delimited segment of p on its own so
// the separators survive.
func EncodePath(p string) string {
	segs := strings.Split(p, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}

// S3Options configures an S3 origin.
type S3Options struct {
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// Open returns the Fetcher for origin: an http(s) URL, an s3://bucket/prefix
// URL, or, when empty, the local root directory.
func Open(ctx context.Context, origin, root string, s3opts S3Options) (archive.Fetcher, error) {
	switch {
	case origin == "":
		return NewLocal(root), nil
	case strings.HasPrefix(origin, "http://"), strings.HasPrefix(origin, "https://"):
		return NewHTTP(origin, nil)
	case strings.HasPrefix(origin, "s3://"):
		bucket, prefix, _ := strings.Cut(strings.TrimPrefix(origin, "s3://"), "/")
		if bucket == "" {
			return nil, fmt.Errorf("s3 origin %q has no bucket", origin)
		}
		return NewS3(ctx, S3Config{
			Bucket:    bucket,
			Prefix:    prefix,
			Region:    s3opts.Region,
			Endpoint:  s3opts.Endpoint,
			AccessKey: s3opts.AccessKey,
			SecretKey: s3opts.SecretKey,
		})
	default:
		return NewLocal(origin), nil
	}
}

// Observer receives the outcome of every fetch.
type Observer func(source string, elapsed time.Duration, err error)

// Instrument wraps f so each fetch is reported to observe.
func Instrument(f archive.Fetcher, source string, observe Observer) archive.Fetcher {
	return archive.FetcherFunc(func(ctx context.Context, path string) (io.ReadCloser, error) {
		start := time.Now()
		rc, err := f.Fetch(ctx, path)
		observe(source, time.Since(start), err)
		return rc, err
	})
}
