package ports

import (
	"context"

	"github.com/ewilliams-labs/songform/internal/core/domain"
)

// SongRepository stores songs together with their analysis. Lookups are
// owner-scoped: a song owned by someone else is reported as
// domain.ErrNotFound.
type SongRepository interface {
	CreateSong(ctx context.Context, s domain.Song) error
	GetSong(ctx context.Context, id, ownerID string) (domain.Song, error)
	ListSongs(ctx context.Context, ownerID string, page, limit int) (domain.Page[domain.Song], error)
	DeleteSong(ctx context.Context, id, ownerID string) error
}

// ArrangementRepository stores arrangements. UpdateArrangement with a
// non-zero expectedVersion fails with domain.ErrConflict when the stored
// version differs.
type ArrangementRepository interface {
	CreateArrangement(ctx context.Context, a domain.Arrangement) error
	GetArrangement(ctx context.Context, id, ownerID string) (domain.Arrangement, error)
	ListArrangements(ctx context.Context, ownerID string, page, limit int) (domain.Page[domain.Arrangement], error)
	UpdateArrangement(ctx context.Context, a domain.Arrangement, expectedVersion int) error
	DeleteArrangement(ctx context.Context, id, ownerID string) error
}
