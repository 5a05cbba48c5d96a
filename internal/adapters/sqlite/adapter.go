// Package sqlite provides a SQLite-backed implementation of the song and
// arrangement repository ports.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3" // Import the driver anonymously

	"github.com/ewilliams-labs/songform/internal/core/domain"
	"github.com/ewilliams-labs/songform/internal/core/ports"
)

// Adapter implements the repository ports for SQLite
type Adapter struct {
	db *sql.DB
}

var (
	_ ports.SongRepository        = (*Adapter)(nil)
	_ ports.ArrangementRepository = (*Adapter)(nil)
)

// NewAdapter creates a connection and runs the schema migration
func NewAdapter(storagePath string) (*Adapter, error) {
	db, err := sql.Open("sqlite3", storagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	// Every pooled connection to ":memory:" would be a separate database.
	if strings.Contains(storagePath, ":memory:") {
		db.SetMaxOpenConns(1)
	}

	// Verify connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping sqlite db: %w", err)
	}

	adapter := &Adapter{db: db}
	if err := adapter.migrate(); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return adapter, nil
}

// Close ensures the DB connection is closed gracefully
func (a *Adapter) Close() error {
	return a.db.Close()
}

// Ping reports whether the database is reachable.
func (a *Adapter) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

// CreateSong inserts the song and its analysis in one transaction.
func (a *Adapter) CreateSong(ctx context.Context, s domain.Song) error {
	sections, err := json.Marshal(s.Analysis.Sections)
	if err != nil {
		return fmt.Errorf("failed to encode sections: %w", err)
	}
	spectral, err := json.Marshal(s.Analysis.SpectralFeatures)
	if err != nil {
		return fmt.Errorf("failed to encode spectral features: %w", err)
	}
	rhythm, err := json.Marshal(s.Analysis.RhythmFeatures)
	if err != nil {
		return fmt.Errorf("failed to encode rhythm features: %w", err)
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO songs (
			id, owner_id, title, artist, original_name, stored_name, object_key,
			file_size, mime_type, probed_duration, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		s.ID, s.OwnerID, s.Title, s.Artist,
		s.File.OriginalName, s.File.StoredName, s.File.ObjectKey,
		s.File.Size, s.File.MimeType, s.File.ProbedDuration,
		s.CreatedAt.UTC(), s.UpdatedAt.UTC(),
	); err != nil {
		return fmt.Errorf("failed to save song: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO song_analyses (
			song_id, duration, tempo, musical_key, time_signature, energy, danceability,
			sections, spectral_features, rhythm_features
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		s.ID, s.Analysis.Duration, s.Analysis.Tempo, s.Analysis.Key, s.Analysis.TimeSignature,
		s.Analysis.Energy, s.Analysis.Danceability,
		string(sections), string(spectral), string(rhythm),
	); err != nil {
		return fmt.Errorf("failed to save analysis: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("transaction commit failed: %w", err)
	}
	return nil
}

const songColumns = `
	s.id, s.owner_id, s.title, s.artist, s.original_name, s.stored_name, s.object_key,
	s.file_size, s.mime_type, s.probed_duration, s.created_at, s.updated_at,
	an.duration, an.tempo, an.musical_key, an.time_signature, an.energy, an.danceability,
	an.sections, an.spectral_features, an.rhythm_features`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSong(row rowScanner) (domain.Song, error) {
	var (
		s                          domain.Song
		sections, spectral, rhythm string
	)
	if err := row.Scan(
		&s.ID, &s.OwnerID, &s.Title, &s.Artist,
		&s.File.OriginalName, &s.File.StoredName, &s.File.ObjectKey,
		&s.File.Size, &s.File.MimeType, &s.File.ProbedDuration,
		&s.CreatedAt, &s.UpdatedAt,
		&s.Analysis.Duration, &s.Analysis.Tempo, &s.Analysis.Key, &s.Analysis.TimeSignature,
		&s.Analysis.Energy, &s.Analysis.Danceability,
		&sections, &spectral, &rhythm,
	); err != nil {
		return domain.Song{}, err
	}
	if err := json.Unmarshal([]byte(sections), &s.Analysis.Sections); err != nil {
		return domain.Song{}, fmt.Errorf("failed to decode sections: %w", err)
	}
	if err := json.Unmarshal([]byte(spectral), &s.Analysis.SpectralFeatures); err != nil {
		return domain.Song{}, fmt.Errorf("failed to decode spectral features: %w", err)
	}
	if err := json.Unmarshal([]byte(rhythm), &s.Analysis.RhythmFeatures); err != nil {
		return domain.Song{}, fmt.Errorf("failed to decode rhythm features: %w", err)
	}
	if s.Analysis.Sections == nil {
		s.Analysis.Sections = []domain.DetectedSection{}
	}
	return s, nil
}

func (a *Adapter) GetSong(ctx context.Context, id, ownerID string) (domain.Song, error) {
	row := a.db.QueryRowContext(ctx, `
		SELECT `+songColumns+`
		FROM songs s
		JOIN song_analyses an ON an.song_id = s.id
		WHERE s.id = ? AND s.owner_id = ?
	`, id, ownerID)
	s, err := scanSong(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Song{}, fmt.Errorf("song %s: %w", id, domain.ErrNotFound)
		}
		return domain.Song{}, fmt.Errorf("failed to load song: %w", err)
	}
	return s, nil
}

func (a *Adapter) ListSongs(ctx context.Context, ownerID string, page, limit int) (domain.Page[domain.Song], error) {
	out := domain.Page[domain.Song]{Items: []domain.Song{}, Page: page, Limit: limit}
	if err := a.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM songs WHERE owner_id = ?", ownerID).Scan(&out.Total); err != nil {
		return out, fmt.Errorf("failed to count songs: %w", err)
	}

	rows, err := a.db.QueryContext(ctx, `
		SELECT `+songColumns+`
		FROM songs s
		JOIN song_analyses an ON an.song_id = s.id
		WHERE s.owner_id = ?
		ORDER BY s.created_at DESC, s.id DESC
		LIMIT ? OFFSET ?
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

// DeleteSong removes the song and its analysis. Arrangements referencing
// the song are not touched.
func (a *Adapter) DeleteSong(ctx context.Context, id, ownerID string) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "DELETE FROM songs WHERE id = ? AND owner_id = ?", id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete song: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("failed to delete song: %w", err)
	} else if n == 0 {
		return fmt.Errorf("song %s: %w", id, domain.ErrNotFound)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM song_analyses WHERE song_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete analysis: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("transaction commit failed: %w", err)
	}
	return nil
}

type arrangementDocs struct {
	sections, suggestions, tags string
}

func encodeArrangement(ar domain.Arrangement) (arrangementDocs, error) {
	sections, err := json.Marshal(nonNilSections(ar.Sections))
	if err != nil {
		return arrangementDocs{}, fmt.Errorf("failed to encode sections: %w", err)
	}
	suggestions, err := json.Marshal(nonNil(ar.Suggestions))
	if err != nil {
		return arrangementDocs{}, fmt.Errorf("failed to encode suggestions: %w", err)
	}
	tags, err := json.Marshal(nonNil(ar.Tags))
	if err != nil {
		return arrangementDocs{}, fmt.Errorf("failed to encode tags: %w", err)
	}
	return arrangementDocs{string(sections), string(suggestions), string(tags)}, nil
}

func (a *Adapter) CreateArrangement(ctx context.Context, ar domain.Arrangement) error {
	docs, err := encodeArrangement(ar)
	if err != nil {
		return err
	}
	if _, err := a.db.ExecContext(ctx, `
		INSERT INTO arrangements (
			id, owner_id, song_id, name, description, sections, suggestions,
			is_public, tags, version, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		ar.ID, ar.OwnerID, ar.SongID, ar.Name, ar.Description, docs.sections, docs.suggestions,
		ar.IsPublic, docs.tags, ar.Version, ar.CreatedAt.UTC(), ar.UpdatedAt.UTC(),
	); err != nil {
		return fmt.Errorf("failed to save arrangement: %w", err)
	}
	return nil
}

const arrangementColumns = `
	id, owner_id, song_id, name, description, sections, suggestions,
	is_public, tags, version, created_at, updated_at`

func scanArrangement(row rowScanner) (domain.Arrangement, error) {
	var (
		ar   domain.Arrangement
		docs arrangementDocs
	)
	if err := row.Scan(
		&ar.ID, &ar.OwnerID, &ar.SongID, &ar.Name, &ar.Description, &docs.sections, &docs.suggestions,
		&ar.IsPublic, &docs.tags, &ar.Version, &ar.CreatedAt, &ar.UpdatedAt,
	); err != nil {
		return domain.Arrangement{}, err
	}
	if err := json.Unmarshal([]byte(docs.sections), &ar.Sections); err != nil {
		return domain.Arrangement{}, fmt.Errorf("failed to decode sections: %w", err)
	}
	if err := json.Unmarshal([]byte(docs.suggestions), &ar.Suggestions); err != nil {
		return domain.Arrangement{}, fmt.Errorf("failed to decode suggestions: %w", err)
	}
	if err := json.Unmarshal([]byte(docs.tags), &ar.Tags); err != nil {
		return domain.Arrangement{}, fmt.Errorf("failed to decode tags: %w", err)
	}
	ar.Sections = nonNilSections(ar.Sections)
	ar.Suggestions = nonNil(ar.Suggestions)
	ar.Tags = nonNil(ar.Tags)
	return ar, nil
}

func (a *Adapter) GetArrangement(ctx context.Context, id, ownerID string) (domain.Arrangement, error) {
	row := a.db.QueryRowContext(ctx, `
		SELECT `+arrangementColumns+`
		FROM arrangements
		WHERE id = ? AND owner_id = ?
	`, id, ownerID)
	ar, err := scanArrangement(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Arrangement{}, fmt.Errorf("arrangement %s: %w", id, domain.ErrNotFound)
		}
		return domain.Arrangement{}, fmt.Errorf("failed to load arrangement: %w", err)
	}
	return ar, nil
}

func (a *Adapter) ListArrangements(ctx context.Context, ownerID string, page, limit int) (domain.Page[domain.Arrangement], error) {
	out := domain.Page[domain.Arrangement]{Items: []domain.Arrangement{}, Page: page, Limit: limit}
	if err := a.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM arrangements WHERE owner_id = ?", ownerID).Scan(&out.Total); err != nil {
		return out, fmt.Errorf("failed to count arrangements: %w", err)
	}

	rows, err := a.db.QueryContext(ctx, `
		SELECT `+arrangementColumns+`
		FROM arrangements
		WHERE owner_id = ?
		ORDER BY updated_at DESC, id DESC
		LIMIT ? OFFSET ?
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

// UpdateArrangement overwrites the mutable fields. A non-zero
// expectedVersion must match the stored version.
func (a *Adapter) UpdateArrangement(ctx context.Context, ar domain.Arrangement, expectedVersion int) error {
	docs, err := encodeArrangement(ar)
	if err != nil {
		return err
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var stored int
	err = tx.QueryRowContext(ctx, "SELECT version FROM arrangements WHERE id = ? AND owner_id = ?", ar.ID, ar.OwnerID).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("arrangement %s: %w", ar.ID, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to load arrangement version: %w", err)
	}
	if expectedVersion != 0 && stored != expectedVersion {
		return fmt.Errorf("arrangement %s at version %d: %w", ar.ID, stored, domain.ErrConflict)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE arrangements
		SET
			name = ?,
			description = ?,
			sections = ?,
			suggestions = ?,
			is_public = ?,
			tags = ?,
			version = ?,
			updated_at = ?
		WHERE id = ? AND owner_id = ?
	`,
		ar.Name, ar.Description, docs.sections, docs.suggestions, ar.IsPublic, docs.tags,
		ar.Version, ar.UpdatedAt.UTC(), ar.ID, ar.OwnerID,
	); err != nil {
		return fmt.Errorf("failed to update arrangement: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("transaction commit failed: %w", err)
	}
	return nil
}

func (a *Adapter) DeleteArrangement(ctx context.Context, id, ownerID string) error {
	res, err := a.db.ExecContext(ctx, "DELETE FROM arrangements WHERE id = ? AND owner_id = ?", id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete arrangement: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete arrangement: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("arrangement %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (a *Adapter) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS songs (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		title TEXT NOT NULL,
		artist TEXT NOT NULL DEFAULT '',
		original_name TEXT NOT NULL,
		stored_name TEXT NOT NULL,
		object_key TEXT NOT NULL,
		file_size INTEGER NOT NULL,
		mime_type TEXT NOT NULL,
		probed_duration REAL NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_songs_owner_created ON songs (owner_id, created_at DESC);

	CREATE TABLE IF NOT EXISTS song_analyses (
		song_id TEXT PRIMARY KEY,
		duration REAL NOT NULL,
		tempo REAL NOT NULL,
		musical_key TEXT NOT NULL,
		time_signature TEXT NOT NULL,
		energy REAL NOT NULL,
		danceability REAL NOT NULL,
		sections TEXT NOT NULL,
		spectral_features TEXT NOT NULL,
		rhythm_features TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS arrangements (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		song_id TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		sections TEXT NOT NULL,
		suggestions TEXT NOT NULL,
		is_public BOOLEAN NOT NULL DEFAULT 0,
		tags TEXT NOT NULL DEFAULT '[]',
		version INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_arrangements_owner_updated ON arrangements (owner_id, updated_at DESC);
	`
	if _, err := a.db.Exec(query); err != nil {
		return err
	}
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func nonNilSections(s domain.SectionTimeline) domain.SectionTimeline {
	if s == nil {
		return domain.SectionTimeline{}
	}
	return s
}
