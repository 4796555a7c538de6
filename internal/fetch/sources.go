package fetch

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

//go:embed sample_collection.csv
var sampleCollection []byte

// FileSource reads a file on local disk. Freshness is the file's
// modification time.
type FileSource struct {
	path string
}

// NewFileSource creates a FileSource for path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) Name() string { return s.path }

func (s *FileSource) Freshness(ctx context.Context) (Freshness, error) {
	if err := ctx.Err(); err != nil {
		return Freshness{}, err
	}
	info, err := os.Stat(s.path)
	if err != nil {
		return Freshness{}, wrapFS(err)
	}
	return Freshness{Modified: info.ModTime()}, nil
}

func (s *FileSource) Fetch(ctx context.Context) (Content, error) {
	if err := ctx.Err(); err != nil {
		return Content{}, err
	}
	info, err := os.Stat(s.path)
	if err != nil {
		return Content{}, wrapFS(err)
	}
	body, err := os.ReadFile(s.path)
	if err != nil {
		return Content{}, wrapFS(err)
	}
	return Content{Body: body, Freshness: Freshness{Modified: info.ModTime()}}, nil
}

func wrapFS(err error) error {
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return err
}

// StaticSource serves fixed content. Its marker never advances.
type StaticSource struct {
	name    string
	body    []byte
	created time.Time
}

// NewStaticSource creates a StaticSource.
func NewStaticSource(name string, body []byte) *StaticSource {
	return &StaticSource{name: name, body: body, created: time.Now()}
}

// SampleSource is the built-in demonstration collection used when the
// configured source cannot be reached.
func SampleSource() *StaticSource {
	return NewStaticSource("sample collection", sampleCollection)
}

func (s *StaticSource) Name() string { return s.name }

func (s *StaticSource) Freshness(context.Context) (Freshness, error) {
	return Freshness{Modified: s.created}, nil
}

func (s *StaticSource) Fetch(context.Context) (Content, error) {
	body := make([]byte, len(s.body))
	copy(body, s.body)
	return Content{Body: body, Freshness: Freshness{Modified: s.created}}, nil
}

// IsRemote reports whether location is an http(s) URL.
func IsRemote(location string) bool {
	l := strings.ToLower(location)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}

// ResolvePath joins a source location onto a base-path prefix. Absolute
// locations and full URLs are returned unchanged. A remote base joins with
// URL path rules; a local base joins as a directory.
func ResolvePath(base, location string) string {
	location = strings.TrimSpace(location)
	if location == "" || IsRemote(location) || filepath.IsAbs(location) {
		return location
	}
	if base == "" || base == "/" {
		return location
	}
	if IsRemote(base) {
		return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path.Clean("/"+location), "/")
	}
	return filepath.Join(base, location)
}

// Open returns the Source for a resolved location, or nil when location is
// empty (no source configured).
func Open(location string, timeout time.Duration) Source {
	switch {
	case location == "":
		return nil
	case IsRemote(location):
		return NewHTTPSource(location, timeout)
	default:
		return NewFileSource(location)
	}
}
