// SPDX-License-Identifier: LGPL-3.0-or-later
// Author: Michel Prunet - Safe Pic Technologies
package sourcemap

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
)

// Store is where the Extractor materializes sources. Locations are URLs
// as understood by afs (file://, mem://, ...).
type Store interface {
	// MkdirAll creates the directory and its parents. It succeeds when the
	// directory already exists.
	MkdirAll(ctx context.Context, dirURL string) error
	// WriteFile creates or overwrites fileURL with data.
	WriteFile(ctx context.Context, fileURL string, data []byte) error
}

type afsStore struct {
	fs afs.Service
}

// NewStore returns a Store writing through fs. A nil fs uses afs.New().
func NewStore(fs afs.Service) Store {
	if fs == nil {
		fs = afs.New()
	}
	return &afsStore{fs: fs}
}

// MkdirAll only creates the missing levels of dirURL. Directories that exist
// are left alone: afs applies the mode to an existing directory it is asked
// to create.
func (s *afsStore) MkdirAll(ctx context.Context, dirURL string) error {
	var missing []string
	for current := strings.TrimRight(dirURL, "/"); ; {
		exists, err := s.fs.Exists(ctx, current)
		if err != nil {
			return err
		}
		if exists {
			break
		}
		missing = append(missing, current)
		parent, ok := parentURL(current)
		if !ok {
			break
		}
		current = parent
	}
	for i := len(missing) - 1; i >= 0; i-- {
		if err := s.fs.Create(ctx, missing[i], file.DefaultDirOsMode, true); err != nil {
			return err
		}
	}
	return nil
}

func (s *afsStore) WriteFile(ctx context.Context, fileURL string, data []byte) error {
	return s.fs.Upload(ctx, fileURL, file.DefaultFileOsMode, bytes.NewReader(data))
}

// RootURL turns an output root given as a local path (absolute or relative)
// into a file:// URL. Values that already carry a scheme are kept.
func RootURL(root string) (string, error) {
	if strings.Contains(root, "://") {
		return strings.TrimRight(root, "/"), nil
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	location := filepath.ToSlash(abs)
	if !strings.HasPrefix(location, "/") {
		location = "/" + location // C:/out
	}
	return "file://" + strings.TrimRight(location, "/"), nil
}

// joinURL appends a relative slash path to a root URL.
func joinURL(rootURL, rel string) string {
	if rel == "" || rel == "." {
		return rootURL
	}
	return rootURL + "/" + rel
}

// parentURL drops the last path segment of location. ok is false at the
// top of the URL.
func parentURL(location string) (parent string, ok bool) {
	scheme := strings.Index(location, "://")
	if scheme < 0 {
		return "", false
	}
	prefix, rest := location[:scheme+3], location[scheme+3:]
	last := strings.LastIndex(rest, "/")
	if last <= 0 {
		return "", false
	}
	return prefix + rest[:last], true
}
