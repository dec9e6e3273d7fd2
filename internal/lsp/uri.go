package lsp

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"runtime"
	"strings"
)

// errNotFileURI marks URIs the server cannot edit: untitled: buffers,
// editor-internal schemes, anything not backed by a local file.
var errNotFileURI = errors.New("not a file URI")

// uriToPath converts a file URI into an absolute filesystem path. Bare paths
// (no scheme) are accepted too; older clients send rootPath that way.
func uriToPath(uri string) (string, error) {
	if uri == "" {
		return "", fmt.Errorf("%w: empty", errNotFileURI)
	}
	parsed, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("parse %q: %w", uri, err)
	}
	if parsed.Scheme != "" && parsed.Scheme != "file" {
		return "", fmt.Errorf("%w: scheme %q", errNotFileURI, parsed.Scheme)
	}
	path := parsed.Path
	if parsed.Scheme == "" {
		path = uri
	}
	if unescaped, err := url.PathUnescape(path); err == nil {
		path = unescaped
	}
	// file:///C:/proj parses with a leading slash before the drive letter.
	if runtime.GOOS == "windows" && len(path) >= 3 && path[0] == '/' && path[2] == ':' {
		path = path[1:]
	}
	path = filepath.FromSlash(path)
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return path, nil
}

// componentPath is uriToPath restricted to component files. The server only
// tracks *.sfc documents; everything else an editor opens is ignored.
func componentPath(uri string) (string, error) {
	path, err := uriToPath(uri)
	if err != nil {
		return "", err
	}
	if !strings.HasSuffix(path, ".sfc") {
		return "", fmt.Errorf("%w: %s is not a component file", errNotFileURI, path)
	}
	return path, nil
}
