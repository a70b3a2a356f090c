package engine

import (
	"net/url"
	"path/filepath"
	"runtime"

	"github.com/google/uuid"
)

// PathToURI converts a file path to a file:// URI.
func PathToURI(path string) string {
	if path == "" {
		return ""
	}

	if !filepath.IsAbs(path) {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
	}

	path = filepath.ToSlash(path)

	// On Windows, add extra slash for drive letter
	if runtime.GOOS == "windows" && len(path) >= 2 && path[1] == ':' {
		path = "/" + path
	}

	u := &url.URL{Scheme: "file", Path: path}
	return u.String()
}

// URIToPath converts a file:// URI to a path. Other URIs are returned
// unchanged.
func URIToPath(uri string) string {
	if uri == "" {
		return ""
	}

	u, err := url.Parse(uri)
	if err != nil || u.Scheme != "file" {
		return uri
	}

	path := u.Path
	if runtime.GOOS == "windows" && len(path) >= 3 && path[0] == '/' && path[2] == ':' {
		path = path[1:]
	}
	return filepath.FromSlash(path)
}

// scratchURI names a document that has no file.
func scratchURI(id string) string {
	return "untitled:" + id
}

func newID() string {
	return uuid.New().String()
}
