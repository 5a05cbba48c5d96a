package services

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/ewilliams-labs/songform/internal/core/domain"
	"github.com/ewilliams-labs/songform/internal/core/ports"
)

// --- Mocks ---

// memSongs is an in-memory SongRepository.
type memSongs struct {
	mu        sync.Mutex
	songs     map[string]domain.Song
	createErr error
}

func newMemSongs() *memSongs {
	return &memSongs{songs: map[string]domain.Song{}}
}

func (m *memSongs) CreateSong(ctx context.Context, s domain.Song) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.songs[s.ID] = s.Clone()
	return nil
}

func (m *memSongs) GetSong(ctx context.Context, id, ownerID string) (domain.Song, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.songs[id]
	if !ok || s.OwnerID != ownerID {
		return domain.Song{}, domain.ErrNotFound
	}
	return s.Clone(), nil
}

func (m *memSongs) ListSongs(ctx context.Context, ownerID string, page, limit int) (domain.Page[domain.Song], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []domain.Song
	for _, s := range m.songs {
		if s.OwnerID == ownerID {
			all = append(all, s.Clone())
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return paginate(all, page, limit), nil
}

func (m *memSongs) DeleteSong(ctx context.Context, id, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.songs[id]
	if !ok || s.OwnerID != ownerID {
		return domain.ErrNotFound
	}
	delete(m.songs, id)
	return nil
}

func (m *memSongs) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.songs)
}

// memArrangements is an in-memory ArrangementRepository.
type memArrangements struct {
	mu    sync.Mutex
	items map[string]domain.Arrangement
}

func newMemArrangements() *memArrangements {
	return &memArrangements{items: map[string]domain.Arrangement{}}
}

func (m *memArrangements) CreateArrangement(ctx context.Context, a domain.Arrangement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[a.ID] = a.Clone()
	return nil
}

func (m *memArrangements) GetArrangement(ctx context.Context, id, ownerID string) (domain.Arrangement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.items[id]
	if !ok || a.OwnerID != ownerID {
		return domain.Arrangement{}, domain.ErrNotFound
	}
	return a.Clone(), nil
}

func (m *memArrangements) ListArrangements(ctx context.Context, ownerID string, page, limit int) (domain.Page[domain.Arrangement], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []domain.Arrangement
	for _, a := range m.items {
		if a.OwnerID == ownerID {
			all = append(all, a.Clone())
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].UpdatedAt.After(all[j].UpdatedAt) })
	return paginate(all, page, limit), nil
}

func (m *memArrangements) UpdateArrangement(ctx context.Context, a domain.Arrangement, expectedVersion int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.items[a.ID]
	if !ok || cur.OwnerID != a.OwnerID {
		return domain.ErrNotFound
	}
	if expectedVersion != 0 && cur.Version != expectedVersion {
		return domain.ErrConflict
	}
	m.items[a.ID] = a.Clone()
	return nil
}

func (m *memArrangements) DeleteArrangement(ctx context.Context, id, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.items[id]
	if !ok || a.OwnerID != ownerID {
		return domain.ErrNotFound
	}
	delete(m.items, id)
	return nil
}

func paginate[T any](all []T, page, limit int) domain.Page[T] {
	out := domain.Page[T]{Items: []T{}, Total: len(all), Page: page, Limit: limit}
	start := (page - 1) * limit
	if start >= len(all) {
		return out
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	out.Items = append(out.Items, all[start:end]...)
	return out
}

// fakeAnalysis returns a canned record or error.
type fakeAnalysis struct {
	record domain.AnalysisRecord
	err    error
	calls  int
	last   ports.AudioUpload
}

func (f *fakeAnalysis) Analyze(ctx context.Context, in ports.AudioUpload) (domain.AnalysisRecord, error) {
	f.calls++
	f.last = in
	if f.err != nil {
		return domain.AnalysisRecord{}, f.err
	}
	return f.record.Clone(), nil
}

func (f *fakeAnalysis) Health(ctx context.Context) error { return f.err }

// memStore is an in-memory AudioStore.
type memStore struct {
	objects map[string][]byte
	putErr  error
	deleted []string
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}}
}

func (m *memStore) Put(ctx context.Context, key, contentType string, data []byte) error {
	if m.putErr != nil {
		return m.putErr
	}
	m.objects[key] = data
	return nil
}

func (m *memStore) Delete(ctx context.Context, key string) error {
	m.deleted = append(m.deleted, key)
	delete(m.objects, key)
	return nil
}

// recordingEvents captures dispatched events.
type recordingEvents struct {
	events []ports.Event
}

func (r *recordingEvents) Dispatch(e ports.Event) {
	r.events = append(r.events, e)
}

func (r *recordingEvents) types() []string {
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

// stepClock advances by one second on every call.
type stepClock struct {
	t time.Time
}

func newStepClock() *stepClock {
	return &stepClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

// seqIDs yields id-1, id-2, ...
func seqIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return prefix + "-" + strconv.Itoa(n)
	}
}

func sampleAnalysis() domain.AnalysisRecord {
	return domain.AnalysisRecord{
		Duration:      180,
		Tempo:         128,
		Key:           "C",
		TimeSignature: "4/4",
		Energy:        0.8,
		Danceability:  0.7,
		Sections: []domain.DetectedSection{
			{StartTime: 0, EndTime: 30, SectionType: "intro", Confidence: 0.8},
			{StartTime: 30, EndTime: 90, SectionType: "verse", Confidence: 0.9},
			{StartTime: 90, EndTime: 150, SectionType: "chorus", Confidence: 0.85},
			{StartTime: 150, EndTime: 180, SectionType: "outro", Confidence: 0.8},
		},
	}
}
