package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ewilliams-labs/songform/internal/core/domain"
)

// TestAdapter_Integration runs against a live Postgres.
// This test is skipped unless SONGFORM_TEST_DATABASE_URL is set.
func TestAdapter_Integration(t *testing.T) {
	dsn := os.Getenv("SONGFORM_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("Skipping Postgres test (set SONGFORM_TEST_DATABASE_URL to enable)")
	}

	ctx := context.Background()
	a, err := NewAdapter(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	owner := "it-" + uuid.NewString()
	now := time.Now().UTC().Truncate(time.Microsecond)

	song := domain.Song{
		ID:      uuid.NewString(),
		Title:   "Integration",
		OwnerID: owner,
		File:    domain.FileInfo{OriginalName: "a.wav", StoredName: "a.wav", ObjectKey: "uploads/a.wav", Size: 10, MimeType: "audio/wav"},
		Analysis: domain.AnalysisRecord{
			Duration: 30, Tempo: 100, Key: "C", TimeSignature: "4/4", Energy: 0.5, Danceability: 0.5,
			Sections: []domain.DetectedSection{{StartTime: 0, EndTime: 30, SectionType: "verse", Confidence: 0.9}},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, a.CreateSong(ctx, song))

	got, err := a.GetSong(ctx, song.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, song.Analysis, got.Analysis)
	assert.True(t, song.CreatedAt.Equal(got.CreatedAt))

	_, err = a.GetSong(ctx, song.ID, "someone-else")
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	ar := domain.Arrangement{
		ID:          uuid.NewString(),
		Name:        "Integration arrangement",
		SongID:      song.ID,
		OwnerID:     owner,
		Sections:    domain.SeedTimeline(song.Analysis),
		Suggestions: domain.GenerateSuggestions(song.Analysis),
		Tags:        []string{},
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, a.CreateArrangement(ctx, ar))

	next := ar.Clone()
	next.Name = "Renamed"
	next.Version = 2
	next.UpdatedAt = now.Add(time.Second)
	require.NoError(t, a.UpdateArrangement(ctx, next, 1))
	assert.True(t, errors.Is(a.UpdateArrangement(ctx, next, 1), domain.ErrConflict))

	page, err := a.ListArrangements(ctx, owner, 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Renamed", page.Items[0].Name)
	assert.Equal(t, ar.Sections, page.Items[0].Sections)

	require.NoError(t, a.DeleteSong(ctx, song.ID, owner))
	_, err = a.GetArrangement(ctx, ar.ID, owner)
	assert.NoError(t, err, "arrangement outlives its song")
	require.NoError(t, a.DeleteArrangement(ctx, ar.ID, owner))
}
