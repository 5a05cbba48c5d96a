package sqlite

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/ewilliams-labs/songform/internal/core/domain"
)

func newTestAdapter(t *testing.T) *Adapter {
	t.Helper()
	a, err := NewAdapter(":memory:")
	if err != nil {
		t.Fatalf("failed to create adapter: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a
}

var baseTime = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

func testSong(id, owner string, created time.Time) domain.Song {
	return domain.Song{
		ID:      id,
		Title:   "Song " + id,
		Artist:  "Artist",
		OwnerID: owner,
		File: domain.FileInfo{
			OriginalName:   "demo.mp3",
			StoredName:     id + ".mp3",
			ObjectKey:      "uploads/" + owner + "/" + id + ".mp3",
			Size:           2048,
			MimeType:       "audio/mpeg",
			ProbedDuration: 181.5,
		},
		Analysis: domain.AnalysisRecord{
			Duration:      181.5,
			Tempo:         124,
			Key:           "F#",
			TimeSignature: "4/4",
			Energy:        0.66,
			Danceability:  0.58,
			Sections: []domain.DetectedSection{
				{StartTime: 0, EndTime: 20, SectionType: "intro", Confidence: 0.8},
				{StartTime: 20, EndTime: 80, SectionType: "verse", Confidence: 0.9},
			},
			SpectralFeatures: domain.SpectralFeatures{SpectralCentroidMean: 1500.5, ZeroCrossingRateMean: 0.05},
			RhythmFeatures:   domain.RhythmFeatures{Tempo: 124, BeatCount: 370, OnsetCount: 410, RhythmRegularity: 0.02},
		},
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func testArrangement(id, owner string, updated time.Time) domain.Arrangement {
	return domain.Arrangement{
		ID:          id,
		Name:        "Arrangement " + id,
		Description: "notes",
		SongID:      "song-1",
		OwnerID:     owner,
		Sections: domain.SectionTimeline{
			{ID: "section-0", StartTime: 0, EndTime: 20, SectionType: "intro", CustomName: "Intro", Notes: "pads", Order: 0},
			{ID: "section-1", StartTime: 20, EndTime: 80, SectionType: "verse", CustomName: "verse", Order: 1},
		},
		Suggestions: []domain.Suggestion{
			{Type: domain.SuggestionTempo, Description: "Consider adding a breakdown section to create dynamic contrast", Confidence: 0.7},
		},
		IsPublic:  true,
		Tags:      []string{"house"},
		Version:   1,
		CreatedAt: baseTime,
		UpdatedAt: updated,
	}
}

func TestAdapter_SongRoundTrip(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()
	want := testSong("song-1", "user-1", baseTime)

	if err := a.CreateSong(ctx, want); err != nil {
		t.Fatalf("CreateSong: %v", err)
	}
	got, err := a.GetSong(ctx, "song-1", "user-1")
	if err != nil {
		t.Fatalf("GetSong: %v", err)
	}

	if !got.CreatedAt.Equal(want.CreatedAt) || !got.UpdatedAt.Equal(want.UpdatedAt) {
		t.Fatalf("timestamps: got %v/%v want %v", got.CreatedAt, got.UpdatedAt, want.CreatedAt)
	}
	got.CreatedAt, got.UpdatedAt = want.CreatedAt, want.UpdatedAt
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestAdapter_GetSongScopedToOwner(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		owner   string
		wantErr error
	}{
		{name: "owner", id: "song-1", owner: "user-1"},
		{name: "foreign owner", id: "song-1", owner: "user-2", wantErr: domain.ErrNotFound},
		{name: "missing", id: "nope", owner: "user-1", wantErr: domain.ErrNotFound},
	}

	a := newTestAdapter(t)
	if err := a.CreateSong(context.Background(), testSong("song-1", "user-1", baseTime)); err != nil {
		t.Fatalf("CreateSong: %v", err)
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := a.GetSong(context.Background(), tc.id, tc.owner)
			if tc.wantErr == nil {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestAdapter_ListSongsNewestFirst(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()
	for i, id := range []string{"a", "b", "c"} {
		if err := a.CreateSong(ctx, testSong(id, "user-1", baseTime.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("CreateSong: %v", err)
		}
	}
	if err := a.CreateSong(ctx, testSong("other", "user-2", baseTime)); err != nil {
		t.Fatalf("CreateSong: %v", err)
	}

	page, err := a.ListSongs(ctx, "user-1", 1, 2)
	if err != nil {
		t.Fatalf("ListSongs: %v", err)
	}
	if page.Total != 3 || len(page.Items) != 2 || page.Items[0].ID != "c" || page.Items[1].ID != "b" {
		t.Fatalf("page 1 = total %d items %+v", page.Total, page.Items)
	}

	page, err = a.ListSongs(ctx, "user-1", 2, 2)
	if err != nil {
		t.Fatalf("ListSongs: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].ID != "a" {
		t.Fatalf("page 2 = %+v", page.Items)
	}
}

func TestAdapter_DeleteSong(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()
	if err := a.CreateSong(ctx, testSong("song-1", "user-1", baseTime)); err != nil {
		t.Fatalf("CreateSong: %v", err)
	}
	if err := a.CreateArrangement(ctx, testArrangement("arr-1", "user-1", baseTime)); err != nil {
		t.Fatalf("CreateArrangement: %v", err)
	}

	if err := a.DeleteSong(ctx, "song-1", "user-2"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("foreign delete: expected ErrNotFound, got %v", err)
	}
	if err := a.DeleteSong(ctx, "song-1", "user-1"); err != nil {
		t.Fatalf("DeleteSong: %v", err)
	}
	if _, err := a.GetSong(ctx, "song-1", "user-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected song gone, got %v", err)
	}

	var analyses int
	if err := a.db.QueryRow("SELECT COUNT(*) FROM song_analyses").Scan(&analyses); err != nil {
		t.Fatalf("count analyses: %v", err)
	}
	if analyses != 0 {
		t.Fatalf("analysis outlived its song")
	}
	if _, err := a.GetArrangement(ctx, "arr-1", "user-1"); err != nil {
		t.Fatalf("arrangement should survive song deletion: %v", err)
	}
}

func TestAdapter_ArrangementRoundTrip(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()
	want := testArrangement("arr-1", "user-1", baseTime)

	if err := a.CreateArrangement(ctx, want); err != nil {
		t.Fatalf("CreateArrangement: %v", err)
	}
	got, err := a.GetArrangement(ctx, "arr-1", "user-1")
	if err != nil {
		t.Fatalf("GetArrangement: %v", err)
	}
	if !got.UpdatedAt.Equal(want.UpdatedAt) || !got.CreatedAt.Equal(want.CreatedAt) {
		t.Fatalf("timestamps differ: %v %v", got.CreatedAt, got.UpdatedAt)
	}
	got.CreatedAt, got.UpdatedAt = want.CreatedAt, want.UpdatedAt
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}

	if _, err := a.GetArrangement(ctx, "arr-1", "user-2"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("foreign get: expected ErrNotFound, got %v", err)
	}
}

func TestAdapter_UpdateArrangement(t *testing.T) {
	tests := []struct {
		name     string
		owner    string
		expected int
		wantErr  error
	}{
		{name: "last writer wins", owner: "user-1", expected: 0},
		{name: "matching version", owner: "user-1", expected: 1},
		{name: "stale version", owner: "user-1", expected: 3, wantErr: domain.ErrConflict},
		{name: "foreign owner", owner: "user-2", expected: 0, wantErr: domain.ErrNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a := newTestAdapter(t)
			ctx := context.Background()
			if err := a.CreateArrangement(ctx, testArrangement("arr-1", "user-1", baseTime)); err != nil {
				t.Fatalf("CreateArrangement: %v", err)
			}

			next := testArrangement("arr-1", tc.owner, baseTime.Add(time.Hour))
			next.Name = "Renamed"
			next.Sections = domain.SectionTimeline{}
			next.Version = 2

			err := a.UpdateArrangement(ctx, next, tc.expected)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				stored, _ := a.GetArrangement(ctx, "arr-1", "user-1")
				if stored.Name == "Renamed" {
					t.Fatal("rejected update was applied")
				}
				return
			}
			if err != nil {
				t.Fatalf("UpdateArrangement: %v", err)
			}
			stored, err := a.GetArrangement(ctx, "arr-1", "user-1")
			if err != nil {
				t.Fatalf("GetArrangement: %v", err)
			}
			if stored.Name != "Renamed" || stored.Version != 2 || len(stored.Sections) != 0 || stored.Sections == nil {
				t.Fatalf("update not stored: %+v", stored)
			}
			if !stored.UpdatedAt.Equal(next.UpdatedAt) {
				t.Fatalf("UpdatedAt = %v, want %v", stored.UpdatedAt, next.UpdatedAt)
			}
		})
	}
}

func TestAdapter_ListAndDeleteArrangements(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()
	for i, id := range []string{"old", "mid", "new"} {
		if err := a.CreateArrangement(ctx, testArrangement(id, "user-1", baseTime.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("CreateArrangement: %v", err)
		}
	}

	page, err := a.ListArrangements(ctx, "user-1", 1, 10)
	if err != nil {
		t.Fatalf("ListArrangements: %v", err)
	}
	ids := []string{}
	for _, ar := range page.Items {
		ids = append(ids, ar.ID)
	}
	if page.Total != 3 || !reflect.DeepEqual(ids, []string{"new", "mid", "old"}) {
		t.Fatalf("got total %d ids %v", page.Total, ids)
	}

	empty, err := a.ListArrangements(ctx, "user-2", 1, 10)
	if err != nil {
		t.Fatalf("ListArrangements: %v", err)
	}
	if empty.Total != 0 || empty.Items == nil || len(empty.Items) != 0 {
		t.Fatalf("expected empty page, got %+v", empty)
	}

	if err := a.DeleteArrangement(ctx, "mid", "user-2"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("foreign delete: expected ErrNotFound, got %v", err)
	}
	if err := a.DeleteArrangement(ctx, "mid", "user-1"); err != nil {
		t.Fatalf("DeleteArrangement: %v", err)
	}
	if err := a.DeleteArrangement(ctx, "mid", "user-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("second delete: expected ErrNotFound, got %v", err)
	}
}
