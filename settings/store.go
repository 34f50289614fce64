package settings

import "context"

type Store interface {
	// GetSettings returns a not-found error when nothing has been stored yet.
	GetSettings(ctx context.Context) (*Settings, error)
	PutSettings(ctx context.Context, s *Settings) error
}
