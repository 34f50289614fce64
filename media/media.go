// Package media stores post attachments and profile images in a blob store.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/xraph/patron/id"
	"github.com/xraph/patron/post"
)

var (
	ErrInvalidExtension = errors.New("media: invalid file extension")
	ErrNotFound         = errors.New("media: object not found")
)

// BlobStore is the object storage used for uploads.
type BlobStore interface {
	Upload(ctx context.Context, objectPath string, body io.Reader, contentType string) error
	PublicURL(objectPath string) string
}

// Attachment is a file to attach to a new post.
type Attachment struct {
	Kind        post.MediaKind
	Extension   string
	ContentType string
	Body        io.Reader
}

// Image is a profile avatar or banner upload.
type Image struct {
	Extension   string
	ContentType string
	Body        io.Reader
}

// PostObjectPath returns "<creator>/<post>/<n>.<ext>" for the n-th attachment.
func PostObjectPath(creatorID id.ProfileID, postID id.PostID, n int, ext string) (string, error) {
	ext, err := cleanExtension(ext)
	if err != nil {
		return "", err
	}
	return path.Join(creatorID.String(), postID.String(), fmt.Sprintf("%d.%s", n, ext)), nil
}

// ProfileObjectPath returns "<profile>/<kind>.<ext>" for avatars and banners.
func ProfileObjectPath(profileID id.ProfileID, kind, ext string) (string, error) {
	ext, err := cleanExtension(ext)
	if err != nil {
		return "", err
	}
	return path.Join(profileID.String(), kind+"."+ext), nil
}

func cleanExtension(ext string) (string, error) {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if ext == "" || len(ext) > 8 {
		return "", fmt.Errorf("%w: %q", ErrInvalidExtension, ext)
	}
	for _, r := range ext {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return "", fmt.Errorf("%w: %q", ErrInvalidExtension, ext)
		}
	}
	return ext, nil
}
