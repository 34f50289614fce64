package media

import (
	"context"
	"fmt"
	"io"

	storage_go "github.com/supabase-community/storage-go"
)

// SupabaseStore is a BlobStore backed by a Supabase Storage bucket.
type SupabaseStore struct {
	client *storage_go.Client
	bucket string
}

// NewSupabaseStore connects to the storage API at url (for example
// "https://<project>.supabase.co/storage/v1") with a service key.
func NewSupabaseStore(url, serviceKey, bucket string) *SupabaseStore {
	return &SupabaseStore{
		client: storage_go.NewClient(url, serviceKey, nil),
		bucket: bucket,
	}
}

func (s *SupabaseStore) Upload(ctx context.Context, objectPath string, body io.Reader, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	upsert := true
	_, err := s.client.UploadFile(s.bucket, objectPath, body, storage_go.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		return fmt.Errorf("media/supabase: upload %s: %w", objectPath, err)
	}
	return nil
}

func (s *SupabaseStore) PublicURL(objectPath string) string {
	return s.client.GetPublicUrl(s.bucket, objectPath).SignedURL
}
