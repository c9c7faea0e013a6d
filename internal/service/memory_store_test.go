package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/school-calendar-api/internal/models"
)

// memEventRepo mirrors the SQL repository semantics closely enough for service tests.
type memEventRepo struct {
	mu      sync.Mutex
	nextID  int64
	events  map[int64]models.Event
	listErr error
	creates int
	// names stands in for the users join that fills status_updated_by_name.
	names map[int64]string
}

func newMemEventRepo() *memEventRepo {
	return &memEventRepo{events: map[int64]models.Event{}}
}

func (r *memEventRepo) List(ctx context.Context, filter models.EventFilter) ([]models.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	out := []models.Event{}
	for _, e := range r.events {
		if matchesFilter(e, filter) {
			out = append(out, r.withName(e))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartDate.Before(out[j].StartDate)
	})
	return out, nil
}

func (r *memEventRepo) GetByID(ctx context.Context, id int64) (*models.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	e = r.withName(e)
	return &e, nil
}

func (r *memEventRepo) withName(e models.Event) models.Event {
	e.StatusUpdatedByName = nil
	if e.StatusUpdatedBy != nil {
		if name, ok := r.names[*e.StatusUpdatedBy]; ok {
			e.StatusUpdatedByName = &name
		}
	}
	return e
}

func (r *memEventRepo) Create(ctx context.Context, event *models.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	r.creates++
	event.ID = r.nextID
	if event.Status == "" {
		event.Status = models.EventStatusPending
	}
	r.events[event.ID] = *event
	return nil
}

func (r *memEventRepo) Update(ctx context.Context, event *models.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.events[event.ID]
	if !ok {
		return sql.ErrNoRows
	}
	stored.Title = event.Title
	stored.Description = event.Description
	stored.StartDate = event.StartDate
	stored.EndDate = event.EndDate
	stored.Location = event.Location
	stored.ResponsiblePerson = event.ResponsiblePerson
	stored.EventType = event.EventType
	stored.TargetGroup = event.TargetGroup
	stored.UpdatedAt = event.UpdatedAt
	r.events[event.ID] = stored
	return nil
}

func (r *memEventRepo) UpdateStatus(ctx context.Context, id int64, status models.EventStatus, note *string, by int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.events[id]
	if !ok {
		return sql.ErrNoRows
	}
	stored.Status = status
	stored.StatusNote = note
	stored.StatusUpdatedBy = &by
	stored.StatusUpdatedAt = &at
	stored.UpdatedAt = at
	r.events[id] = stored
	return nil
}

func (r *memEventRepo) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.events[id]; !ok {
		return sql.ErrNoRows
	}
	delete(r.events, id)
	return nil
}

func (r *memEventRepo) CountByStatus(ctx context.Context, visible []models.TargetGroup) ([]models.StatusCount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := map[models.EventStatus]int{}
	for _, e := range r.events {
		if matchesFilter(e, models.EventFilter{Visible: visible}) {
			counts[e.Status]++
		}
	}
	out := []models.StatusCount{}
	for status, n := range counts {
		out = append(out, models.StatusCount{Status: status, Count: n})
	}
	return out, nil
}

func (r *memEventRepo) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func matchesFilter(e models.Event, f models.EventFilter) bool {
	if f.Month > 0 && f.Year > 0 && (int(e.StartDate.UTC().Month()) != f.Month || e.StartDate.UTC().Year() != f.Year) {
		return false
	}
	if f.EventType != nil && e.EventType != *f.EventType {
		return false
	}
	if f.TargetGroup != nil && e.TargetGroup != *f.TargetGroup && e.TargetGroup != models.TargetGroupAll {
		return false
	}
	if f.Status != nil && e.Status != *f.Status {
		return false
	}
	if f.Visible != nil {
		found := false
		for _, g := range f.Visible {
			if e.TargetGroup == g {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// memAuditRepo is an append-only event_history stand-in.
type memAuditRepo struct {
	mu      sync.Mutex
	entries []models.AuditEntry
	err     error
}

func (r *memAuditRepo) Create(ctx context.Context, entry *models.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	entry.ID = int64(len(r.entries) + 1)
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *memAuditRepo) ListByEvent(ctx context.Context, eventID int64) ([]models.AuditEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.AuditEntry{}
	for _, e := range r.entries {
		if e.EventID == eventID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID > out[j].ID
		}
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}

func (r *memAuditRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// memCache records cache traffic for the summary tests. Values round-trip through JSON like redis.
type memCache struct {
	mu          sync.Mutex
	values      map[string][]byte
	invalidated int
}

func newMemCache() *memCache {
	return &memCache{values: map[string][]byte{}}
}

func (c *memCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.values[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (c *memCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = raw
	return nil
}

func (c *memCache) Invalidate(ctx context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.values {
		if ok, _ := path.Match(pattern, key); ok {
			delete(c.values, key)
		}
	}
	c.invalidated++
	return nil
}

func (c *memCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.values[key]
	return ok
}

// testClock hands out strictly increasing instants.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 2, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}
