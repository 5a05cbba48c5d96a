package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ewilliams-labs/songform/internal/audio"
	"github.com/ewilliams-labs/songform/internal/core/domain"
	"github.com/ewilliams-labs/songform/internal/core/ports"
)

// IngestRequest is one uploaded recording awaiting analysis.
type IngestRequest struct {
	OwnerID   string
	Title     string
	Artist    string
	Filename  string
	MimeType  string
	Audio     []byte
	AuthToken string
}

// IngestionService turns uploads into analyzed songs and manages their
// lifecycle.
type IngestionService struct {
	analysis ports.AnalysisProvider
	songs    ports.SongRepository
	store    ports.AudioStore
	settings
}

// NewIngestionService constructs an IngestionService.
func NewIngestionService(analysis ports.AnalysisProvider, songs ports.SongRepository, store ports.AudioStore, opts ...Option) *IngestionService {
	return &IngestionService{
		analysis: analysis,
		songs:    songs,
		store:    store,
		settings: newSettings("ingestion", opts),
	}
}

// Ingest validates the upload, obtains its analysis, stores the audio and
// persists the song with its analysis as one unit. Nothing is persisted
// when any step fails.
func (s *IngestionService) Ingest(ctx context.Context, req IngestRequest) (domain.Song, error) {
	song, ext, err := s.prepare(req)
	if err != nil {
		s.metrics.Ingestion("invalid")
		return domain.Song{}, fmt.Errorf("service: invalid upload: %w", err)
	}

	if song.File.MimeType == "audio/mpeg" {
		if info, err := audio.Probe(song.File.MimeType, req.Audio); err != nil {
			s.logger.Debug("mp3 probe failed", "filename", song.File.OriginalName, "error", err)
		} else {
			song.File.ProbedDuration = info.Duration
		}
	}

	record, err := s.analyze(ctx, req, song.File.OriginalName)
	if err != nil {
		s.metrics.Ingestion(outcomeOf(err))
		return domain.Song{}, err
	}
	if err := record.Validate(); err != nil {
		s.logger.Warn("analysis out of range, keeping as reported", "filename", song.File.OriginalName, "error", err)
	}
	song.Analysis = record

	song.ID = s.newID()
	song.File.StoredName = song.ID + ext
	song.File.ObjectKey = fmt.Sprintf("uploads/%s/%s", song.OwnerID, song.File.StoredName)
	now := s.now()
	song.CreatedAt = now
	song.UpdatedAt = now

	if err := s.store.Put(ctx, song.File.ObjectKey, song.File.MimeType, req.Audio); err != nil {
		s.metrics.Ingestion("internal")
		return domain.Song{}, fmt.Errorf("service: failed to store audio: %w: %w", domain.ErrInternal, err)
	}

	if err := s.songs.CreateSong(ctx, song); err != nil {
		s.removeBlob(song.File.ObjectKey)
		s.metrics.Ingestion("internal")
		return domain.Song{}, fmt.Errorf("service: failed to save song: %w: %w", domain.ErrInternal, err)
	}

	s.metrics.Ingestion("ok")
	s.events.Dispatch(ports.Event{
		Type:       ports.EventSongIngested,
		OwnerID:    song.OwnerID,
		EntityID:   song.ID,
		OccurredAt: now,
	})
	s.logger.Info("song ingested", "song_id", song.ID, "sections", len(record.Sections), "tempo", record.Tempo)
	return song.Clone(), nil
}

// prepare checks every request field before the collaborator is called.
func (s *IngestionService) prepare(req IngestRequest) (domain.Song, string, error) {
	if strings.TrimSpace(req.OwnerID) == "" {
		return domain.Song{}, "", domain.Invalid("ownerId", "is required")
	}
	title, err := domain.CleanTitle(req.Title)
	if err != nil {
		return domain.Song{}, "", err
	}
	artist, err := domain.CleanArtist(req.Artist)
	if err != nil {
		return domain.Song{}, "", err
	}
	if len(req.Audio) == 0 {
		return domain.Song{}, "", domain.Invalid("audio", "file is empty")
	}
	if int64(len(req.Audio)) > s.maxUploadBytes {
		return domain.Song{}, "", domain.Invalid("audio", "file exceeds %d bytes", s.maxUploadBytes)
	}
	mimeType := strings.ToLower(strings.TrimSpace(req.MimeType))
	ext, ok := domain.AudioExtension(mimeType)
	if !ok {
		return domain.Song{}, "", domain.Invalid("audio", "unsupported type %q", req.MimeType)
	}

	name := filepath.Base(strings.TrimSpace(req.Filename))
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "upload" + ext
	}

	return domain.Song{
		Title:   title,
		Artist:  artist,
		OwnerID: req.OwnerID,
		File: domain.FileInfo{
			OriginalName: name,
			Size:         int64(len(req.Audio)),
			MimeType:     mimeType,
		},
	}, ext, nil
}

func (s *IngestionService) analyze(ctx context.Context, req IngestRequest, filename string) (domain.AnalysisRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.analysisTimeout)
	defer cancel()

	start := s.now()
	record, err := s.analysis.Analyze(ctx, ports.AudioUpload{
		Filename:  filename,
		MimeType:  req.MimeType,
		Data:      req.Audio,
		AuthToken: req.AuthToken,
	})
	s.metrics.AnalysisCall(s.now().Sub(start))
	if err == nil {
		return record, nil
	}

	switch {
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrServiceUnavailable),
		errors.Is(err, domain.ErrTimeout):
		return domain.AnalysisRecord{}, fmt.Errorf("service: analysis failed: %w", err)
	case errors.Is(err, context.DeadlineExceeded):
		return domain.AnalysisRecord{}, fmt.Errorf("service: analysis failed: %w: %w", domain.ErrTimeout, err)
	default:
		return domain.AnalysisRecord{}, fmt.Errorf("service: analysis failed: %w: %w", domain.ErrInternal, err)
	}
}

// removeBlob undoes a store write. Failures only leave an orphaned object.
func (s *IngestionService) removeBlob(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), blobCleanupTimeout)
	defer cancel()
	if err := s.store.Delete(ctx, key); err != nil {
		s.logger.Warn("failed to remove audio object", "key", key, "error", err)
	}
}

// GetSong returns the caller's song.
func (s *IngestionService) GetSong(ctx context.Context, id, ownerID string) (domain.Song, error) {
	song, err := s.songs.GetSong(ctx, id, ownerID)
	if err != nil {
		return domain.Song{}, fmt.Errorf("service: failed to load song: %w", err)
	}
	return song, nil
}

// ListSongs pages through the caller's songs, newest first.
func (s *IngestionService) ListSongs(ctx context.Context, ownerID string, page, limit int) (domain.Page[domain.Song], error) {
	if err := domain.ValidatePaging(page, limit); err != nil {
		return domain.Page[domain.Song]{}, fmt.Errorf("service: %w", err)
	}
	out, err := s.songs.ListSongs(ctx, ownerID, page, limit)
	if err != nil {
		return domain.Page[domain.Song]{}, fmt.Errorf("service: failed to list songs: %w", err)
	}
	return out, nil
}

// DeleteSong removes the song and its analysis. Arrangements that reference
// it are left in place.
func (s *IngestionService) DeleteSong(ctx context.Context, id, ownerID string) error {
	song, err := s.songs.GetSong(ctx, id, ownerID)
	if err != nil {
		return fmt.Errorf("service: failed to load song: %w", err)
	}
	if err := s.songs.DeleteSong(ctx, id, ownerID); err != nil {
		return fmt.Errorf("service: failed to delete song: %w", err)
	}
	if song.File.ObjectKey != "" {
		s.removeBlob(song.File.ObjectKey)
	}
	s.events.Dispatch(ports.Event{
		Type:       ports.EventSongDeleted,
		OwnerID:    ownerID,
		EntityID:   id,
		OccurredAt: s.now(),
	})
	return nil
}

// outcomeOf names the error kind for the ingestion counter.
func outcomeOf(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid"
	case errors.Is(err, domain.ErrServiceUnavailable):
		return "unavailable"
	case errors.Is(err, domain.ErrTimeout):
		return "timeout"
	default:
		return "internal"
	}
}
