package ports

import "context"

// AudioStore keeps the raw uploaded audio bytes.
type AudioStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	Delete(ctx context.Context, key string) error
}
