// Package postgres provides a Postgres-backed implementation of the song and
// arrangement repository ports using a pgx connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ewilliams-labs/songform/internal/core/domain"
	"github.com/ewilliams-labs/songform/internal/core/ports"
)

// Adapter implements the repository ports for Postgres.
type Adapter struct {
	pool *pgxpool.Pool
}

var (
	_ ports.SongRepository        = (*Adapter)(nil)
	_ ports.ArrangementRepository = (*Adapter)(nil)
)

// NewAdapter connects to databaseURL, verifies the connection and runs the
// schema migration.
func NewAdapter(ctx context.Context, databaseURL string) (*Adapter, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	a := &Adapter{pool: pool}
	if err := a.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	return a, nil
}

func (a *Adapter) Close() error {
	a.pool.Close()
	return nil
}

// Ping reports whether the database is reachable.
func (a *Adapter) Ping(ctx context.Context) error {
	return a.pool.Ping(ctx)
}

// CreateSong inserts the song and its analysis in one transaction.
func (a *Adapter) CreateSong(ctx context.Context, s domain.Song) error {
	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO songs (
			id, owner_id, title, artist, original_name, stored_name, object_key,
			file_size, mime_type, probed_duration, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		s.ID, s.OwnerID, s.Title, s.Artist,
		s.File.OriginalName, s.File.StoredName, s.File.ObjectKey,
		s.File.Size, s.File.MimeType, s.File.ProbedDuration,
		s.CreatedAt, s.UpdatedAt,
	); err != nil {
		return fmt.Errorf("failed to save song: %w", err)
	}

	sections := s.Analysis.Sections
	if sections == nil {
		sections = []domain.DetectedSection{}
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO song_analyses (
			song_id, duration, tempo, musical_key, time_signature, energy, danceability,
			sections, spectral_features, rhythm_features
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		s.ID, s.Analysis.Duration, s.Analysis.Tempo, s.Analysis.Key, s.Analysis.TimeSignature,
		s.Analysis.Energy, s.Analysis.Danceability,
		sections, s.Analysis.SpectralFeatures, s.Analysis.RhythmFeatures,
	); err != nil {
		return fmt.Errorf("failed to save analysis: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("transaction commit failed: %w", err)
	}
	return nil
}

const songColumns = `
	s.id, s.owner_id, s.title, s.artist, s.original_name, s.stored_name, s.object_key,
	s.file_size, s.mime_type, s.probed_duration, s.created_at, s.updated_at,
	an.duration, an.tempo, an.musical_key, an.time_signature, an.energy, an.danceability,
	an.sections, an.spectral_features, an.rhythm_features`

func scanSong(row pgx.Row) (domain.Song, error) {
	var s domain.Song
	err := row.Scan(
		&s.ID, &s.OwnerID, &s.Title, &s.Artist,
		&s.File.OriginalName, &s.File.StoredName, &s.File.ObjectKey,
		&s.File.Size, &s.File.MimeType, &s.File.ProbedDuration,
		&s.CreatedAt, &s.UpdatedAt,
		&s.Analysis.Duration, &s.Analysis.Tempo, &s.Analysis.Key, &s.Analysis.TimeSignature,
		&s.Analysis.Energy, &s.Analysis.Danceability,
		&s.Analysis.Sections, &s.Analysis.SpectralFeatures, &s.Analysis.RhythmFeatures,
	)
	if err != nil {
		return domain.Song{}, err
	}
	if s.Analysis.Sections == nil {
		s.Analysis.Sections = []domain.DetectedSection{}
	}
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	return s, nil
}

func (a *Adapter) GetSong(ctx context.Context, id, ownerID string) (domain.Song, error) {
	s, err := scanSong(a.pool.QueryRow(ctx, `
		SELECT `+songColumns+`
		FROM songs s
		JOIN song_analyses an ON an.song_id = s.id
		WHERE s.id = $1 AND s.owner_id = $2
	`, id, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Song{}, fmt.Errorf("song %s: %w", id, domain.ErrNotFound)
		}
		return domain.Song{}, fmt.Errorf("failed to load song: %w", err)
	}
	return s, nil
}

func (a *Adapter) ListSongs(ctx context.Context, ownerID string, page, limit int) (domain.Page[domain.Song], error) {
	out := domain.Page[domain.Song]{Items: []domain.Song{}, Page: page, Limit: limit}
	if err := a.pool.QueryRow(ctx, `SELECT COUNT(*) FROM songs WHERE owner_id = $1`, ownerID).Scan(&out.Total); err != nil {
		return out, fmt.Errorf("failed to count songs: %w", err)
	}

	rows, err := a.pool.Query(ctx, `
		SELECT `+songColumns+`
		FROM songs s
		JOIN song_analyses an ON an.song_id = s.id
		WHERE s.owner_id = $1
		ORDER BY s.created_at DESC, s.id DESC
		LIMIT $2 OFFSET $3
	`, ownerID, limit, (page-1)*limit)
	if err != nil {
		return out, fmt.Errorf("failed to list songs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		s, err := scanSong(rows)
		if err != nil {
			return out, fmt.Errorf("failed to scan song: %w", err)
		}
		out.Items = append(out.Items, s)
	}
	if err := rows.Err(); err != nil {
		return out, fmt.Errorf("failed to iterate songs: %w", err)
	}
	return out, nil
}

// DeleteSong removes the song; its analysis goes with it via the foreign
// key. Arrangements keep their song reference.
func (a *Adapter) DeleteSong(ctx context.Context, id, ownerID string) error {
	tag, err := a.pool.Exec(ctx, `DELETE FROM songs WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete song: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("song %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (a *Adapter) CreateArrangement(ctx context.Context, ar domain.Arrangement) error {
	sections, suggestions, tags := documents(ar)
	if _, err := a.pool.Exec(ctx, `
		INSERT INTO arrangements (
			id, owner_id, song_id, name, description, sections, suggestions,
			is_public, tags, version, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		ar.ID, ar.OwnerID, ar.SongID, ar.Name, ar.Description, sections, suggestions,
		ar.IsPublic, tags, ar.Version, ar.CreatedAt, ar.UpdatedAt,
	); err != nil {
		return fmt.Errorf("failed to save arrangement: %w", err)
	}
	return nil
}

const arrangementColumns = `
	id, owner_id, song_id, name, description, sections, suggestions,
	is_public, tags, version, created_at, updated_at`

func scanArrangement(row pgx.Row) (domain.Arrangement, error) {
	var ar domain.Arrangement
	if err := row.Scan(
		&ar.ID, &ar.OwnerID, &ar.SongID, &ar.Name, &ar.Description, &ar.Sections, &ar.Suggestions,
		&ar.IsPublic, &ar.Tags, &ar.Version, &ar.CreatedAt, &ar.UpdatedAt,
	); err != nil {
		return domain.Arrangement{}, err
	}
	ar.Sections, ar.Suggestions, ar.Tags = documents(ar)
	ar.CreatedAt = ar.CreatedAt.UTC()
	ar.UpdatedAt = ar.UpdatedAt.UTC()
	return ar, nil
}

func (a *Adapter) GetArrangement(ctx context.Context, id, ownerID string) (domain.Arrangement, error) {
	ar, err := scanArrangement(a.pool.QueryRow(ctx, `
		SELECT `+arrangementColumns+`
		FROM arrangements
		WHERE id = $1 AND owner_id = $2
	`, id, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Arrangement{}, fmt.Errorf("arrangement %s: %w", id, domain.ErrNotFound)
		}
		return domain.Arrangement{}, fmt.Errorf("failed to load arrangement: %w", err)
	}
	return ar, nil
}

func (a *Adapter) ListArrangements(ctx context.Context, ownerID string, page, limit int) (domain.Page[domain.Arrangement], error) {
	out := domain.Page[domain.Arrangement]{Items: []domain.Arrangement{}, Page: page, Limit: limit}
	if err := a.pool.QueryRow(ctx, `SELECT COUNT(*) FROM arrangements WHERE owner_id = $1`, ownerID).Scan(&out.Total); err != nil {
		return out, fmt.Errorf("failed to count arrangements: %w", err)
	}

	rows, err := a.pool.Query(ctx, `
		SELECT `+arrangementColumns+`
		FROM arrangements
		WHERE owner_id = $1
		ORDER BY updated_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, ownerID, limit, (page-1)*limit)
	if err != nil {
		return out, fmt.Errorf("failed to list arrangements: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		ar, err := scanArrangement(rows)
		if err != nil {
			return out, fmt.Errorf("failed to scan arrangement: %w", err)
		}
		out.Items = append(out.Items, ar)
	}
	if err := rows.Err(); err != nil {
		return out, fmt.Errorf("failed to iterate arrangements: %w", err)
	}
	return out, nil
}

// UpdateArrangement overwrites the mutable fields under a row lock. A
// non-zero expectedVersion must match the stored version.
func (a *Adapter) UpdateArrangement(ctx context.Context, ar domain.Arrangement, expectedVersion int) error {
	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var stored int
	err = tx.QueryRow(ctx, `SELECT version FROM arrangements WHERE id = $1 AND owner_id = $2 FOR UPDATE`, ar.ID, ar.OwnerID).Scan(&stored)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("arrangement %s: %w", ar.ID, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to load arrangement version: %w", err)
	}
	if expectedVersion != 0 && stored != expectedVersion {
		return fmt.Errorf("arrangement %s at version %d: %w", ar.ID, stored, domain.ErrConflict)
	}

	sections, suggestions, tags := documents(ar)
	if _, err := tx.Exec(ctx, `
		UPDATE arrangements
		SET name = $1, description = $2, sections = $3, suggestions = $4,
			is_public = $5, tags = $6, version = $7, updated_at = $8
		WHERE id = $9 AND owner_id = $10
	`,
		ar.Name, ar.Description, sections, suggestions,
		ar.IsPublic, tags, ar.Version, ar.UpdatedAt, ar.ID, ar.OwnerID,
	); err != nil {
		return fmt.Errorf("failed to update arrangement: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("transaction commit failed: %w", err)
	}
	return nil
}

func (a *Adapter) DeleteArrangement(ctx context.Context, id, ownerID string) error {
	tag, err := a.pool.Exec(ctx, `DELETE FROM arrangements WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete arrangement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("arrangement %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// documents returns the JSONB-backed fields with nil slices replaced by
// empty ones, so the columns never hold JSON null.
func documents(ar domain.Arrangement) (domain.SectionTimeline, []domain.Suggestion, []string) {
	sections, suggestions, tags := ar.Sections, ar.Suggestions, ar.Tags
	if sections == nil {
		sections = domain.SectionTimeline{}
	}
	if suggestions == nil {
		suggestions = []domain.Suggestion{}
	}
	if tags == nil {
		tags = []string{}
	}
	return sections, suggestions, tags
}

func (a *Adapter) migrate(ctx context.Context) error {
	_, err := a.pool.Exec(ctx, `
	CREATE TABLE IF NOT EXISTS songs (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		title TEXT NOT NULL,
		artist TEXT NOT NULL DEFAULT '',
		original_name TEXT NOT NULL,
		stored_name TEXT NOT NULL,
		object_key TEXT NOT NULL,
		file_size BIGINT NOT NULL,
		mime_type TEXT NOT NULL,
		probed_duration DOUBLE PRECISION NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_songs_owner_created ON songs (owner_id, created_at DESC);

	CREATE TABLE IF NOT EXISTS song_analyses (
		song_id TEXT PRIMARY KEY REFERENCES songs(id) ON DELETE CASCADE,
		duration DOUBLE PRECISION NOT NULL,
		tempo DOUBLE PRECISION NOT NULL,
		musical_key TEXT NOT NULL,
		time_signature TEXT NOT NULL,
		energy DOUBLE PRECISION NOT NULL,
		danceability DOUBLE PRECISION NOT NULL,
		sections JSONB NOT NULL,
		spectral_features JSONB NOT NULL,
		rhythm_features JSONB NOT NULL
	);

	CREATE TABLE IF NOT EXISTS arrangements (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		song_id TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		sections JSONB NOT NULL,
		suggestions JSONB NOT NULL,
		is_public BOOLEAN NOT NULL DEFAULT FALSE,
		tags JSONB NOT NULL DEFAULT '[]',
		version INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_arrangements_owner_updated ON arrangements (owner_id, updated_at DESC);
	`)
	return err
}
