package services

import (
	"context"
	"fmt"

	"github.com/ewilliams-labs/songform/internal/core/domain"
	"github.com/ewilliams-labs/songform/internal/core/ports"
)

// CreateArrangement is the input of ArrangementService.Create.
type CreateArrangement struct {
	OwnerID     string
	Name        string
	Description string
	SongID      string
	Sections    domain.SectionsInput
	IsPublic    bool
	Tags        []string
}

// ArrangementService manages user arrangements. Every operation is scoped
// to the owner; another owner's arrangement is reported as not found.
type ArrangementService struct {
	songs ports.SongRepository
	repo  ports.ArrangementRepository
	settings
}

// NewArrangementService constructs an ArrangementService.
func NewArrangementService(songs ports.SongRepository, repo ports.ArrangementRepository, opts ...Option) *ArrangementService {
	return &ArrangementService{
		songs:    songs,
		repo:     repo,
		settings: newSettings("arrangements", opts),
	}
}

// Create builds an arrangement over one of the owner's songs. The timeline
// is seeded from the analysis unless explicit sections are supplied, and
// suggestions are computed once from the analysis.
func (s *ArrangementService) Create(ctx context.Context, in CreateArrangement) (domain.Arrangement, error) {
	name, err := domain.CleanName(in.Name)
	if err != nil {
		return domain.Arrangement{}, fmt.Errorf("service: %w", err)
	}
	desc, err := domain.CleanDescription(in.Description)
	if err != nil {
		return domain.Arrangement{}, fmt.Errorf("service: %w", err)
	}
	tags, err := domain.NormalizeTags(in.Tags)
	if err != nil {
		return domain.Arrangement{}, fmt.Errorf("service: %w", err)
	}
	if in.SongID == "" {
		return domain.Arrangement{}, fmt.Errorf("service: %w", domain.Invalid("songId", "is required"))
	}

	song, err := s.songs.GetSong(ctx, in.SongID, in.OwnerID)
	if err != nil {
		return domain.Arrangement{}, fmt.Errorf("service: failed to load song: %w", err)
	}

	sections, err := in.Sections.Resolve(song.Analysis)
	if err != nil {
		return domain.Arrangement{}, fmt.Errorf("service: %w", err)
	}
	suggestions := domain.GenerateSuggestions(song.Analysis)
	for _, sg := range suggestions {
		s.metrics.SuggestionGenerated(string(sg.Type))
	}

	now := s.now()
	a := domain.Arrangement{
		ID:          s.newID(),
		Name:        name,
		Description: desc,
		SongID:      song.ID,
		OwnerID:     in.OwnerID,
		Sections:    sections,
		Suggestions: suggestions,
		IsPublic:    in.IsPublic,
		Tags:        tags,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.CreateArrangement(ctx, a); err != nil {
		return domain.Arrangement{}, fmt.Errorf("service: failed to save arrangement: %w", err)
	}

	s.publish(ports.EventArrangementCreated, a)
	return a.Clone(), nil
}

// Get returns the owner's arrangement.
func (s *ArrangementService) Get(ctx context.Context, id, ownerID string) (domain.Arrangement, error) {
	a, err := s.repo.GetArrangement(ctx, id, ownerID)
	if err != nil {
		return domain.Arrangement{}, fmt.Errorf("service: failed to load arrangement: %w", err)
	}
	return a, nil
}

// List pages through the owner's arrangements, most recently updated first.
func (s *ArrangementService) List(ctx context.Context, ownerID string, page, limit int) (domain.Page[domain.Arrangement], error) {
	if err := domain.ValidatePaging(page, limit); err != nil {
		return domain.Page[domain.Arrangement]{}, fmt.Errorf("service: %w", err)
	}
	out, err := s.repo.ListArrangements(ctx, ownerID, page, limit)
	if err != nil {
		return domain.Page[domain.Arrangement]{}, fmt.Errorf("service: failed to list arrangements: %w", err)
	}
	return out, nil
}

// Update applies a partial patch. Supplied sections replace the timeline
// wholesale. Without ExpectedVersion concurrent updates are
// last-writer-wins.
func (s *ArrangementService) Update(ctx context.Context, id, ownerID string, patch domain.ArrangementPatch) (domain.Arrangement, error) {
	cur, err := s.repo.GetArrangement(ctx, id, ownerID)
	if err != nil {
		return domain.Arrangement{}, fmt.Errorf("service: failed to load arrangement: %w", err)
	}

	expected := 0
	if patch.ExpectedVersion != nil {
		expected = *patch.ExpectedVersion
		if expected != cur.Version {
			return domain.Arrangement{}, fmt.Errorf("service: arrangement %s is at version %d, not %d: %w", id, cur.Version, expected, domain.ErrConflict)
		}
	}

	next, err := patch.Apply(cur)
	if err != nil {
		return domain.Arrangement{}, fmt.Errorf("service: %w", err)
	}
	return s.save(ctx, cur, next, expected)
}

// ApplySuggestion sets the Applied flag of the suggestion at index. No
// other suggestion field can change after creation.
func (s *ArrangementService) ApplySuggestion(ctx context.Context, id, ownerID string, index int, applied bool) (domain.Arrangement, error) {
	cur, err := s.repo.GetArrangement(ctx, id, ownerID)
	if err != nil {
		return domain.Arrangement{}, fmt.Errorf("service: failed to load arrangement: %w", err)
	}
	if index < 0 || index >= len(cur.Suggestions) {
		return domain.Arrangement{}, fmt.Errorf("service: %w", domain.Invalid("index", "suggestion %d does not exist (have %d)", index, len(cur.Suggestions)))
	}

	next := cur.Clone()
	next.Suggestions[index].Applied = applied
	return s.save(ctx, cur, next, 0)
}

// Delete removes the owner's arrangement. The referenced song is untouched.
func (s *ArrangementService) Delete(ctx context.Context, id, ownerID string) error {
	if err := s.repo.DeleteArrangement(ctx, id, ownerID); err != nil {
		return fmt.Errorf("service: failed to delete arrangement: %w", err)
	}
	s.events.Dispatch(ports.Event{
		Type:       ports.EventArrangementDeleted,
		OwnerID:    ownerID,
		EntityID:   id,
		OccurredAt: s.now(),
	})
	return nil
}

func (s *ArrangementService) save(ctx context.Context, cur, next domain.Arrangement, expected int) (domain.Arrangement, error) {
	next.Version = cur.Version + 1
	next.UpdatedAt = s.now()
	if err := s.repo.UpdateArrangement(ctx, next, expected); err != nil {
		return domain.Arrangement{}, fmt.Errorf("service: failed to save arrangement: %w", err)
	}
	s.publish(ports.EventArrangementUpdated, next)
	return next.Clone(), nil
}

func (s *ArrangementService) publish(kind string, a domain.Arrangement) {
	s.events.Dispatch(ports.Event{
		Type:       kind,
		OwnerID:    a.OwnerID,
		EntityID:   a.ID,
		OccurredAt: a.UpdatedAt,
	})
}
