// Package media abstracts the remote object storage that holds product
// images. Assets are addressed by URL for display and by public ID for
// deletion.
package media

import (
	"context"
	"io"
	"path"
	"regexp"
	"strings"
)

type Asset struct {
	URL      string `json:"url"`
	PublicID string `json:"publicId,omitempty"`
}

type Store interface {
	Upload(ctx context.Context, r io.Reader, filename string) (Asset, error)
	Delete(ctx context.Context, publicID string) error
}

var versionSegment = regexp.MustCompile(`^v\d+$`)

// PublicIDFromURL recovers a deletable identifier from a delivery URL
// for assets stored before public IDs were persisted. Best-effort: a
// URL that does not look like a storage delivery path yields false.
func PublicIDFromURL(rawURL string) (string, bool) {
	_, after, found := strings.Cut(rawURL, "/upload/")
	if !found || after == "" {
		return "", false
	}

	segs := strings.Split(after, "/")
	// skip transformation and version segments ahead of the public ID
	for len(segs) > 1 && (versionSegment.MatchString(segs[0]) || strings.Contains(segs[0], ",")) {
		segs = segs[1:]
	}

	id := strings.Join(segs, "/")
	if ext := path.Ext(id); ext != "" {
		id = strings.TrimSuffix(id, ext)
	}
	if id == "" {
		return "", false
	}
	return id, true
}
