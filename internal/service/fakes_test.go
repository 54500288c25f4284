package service

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-shift-api/internal/models"
	"github.com/noah-isme/sma-shift-api/internal/repository"
)

type memShiftStore struct {
	mu       sync.Mutex
	shifts   map[string]models.TeachingShift
	rangeErr error
	inserts  int
	patches  int
}

func newMemShiftStore(existing ...models.TeachingShift) *memShiftStore {
	store := &memShiftStore{shifts: make(map[string]models.TeachingShift)}
	for _, s := range existing {
		store.shifts[s.ID] = s
	}
	return store
}

func (m *memShiftStore) FindByID(_ context.Context, id string) (*models.TeachingShift, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	shift, ok := m.shifts[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &shift, nil
}

func (m *memShiftStore) ListByTeacherInRange(_ context.Context, teacherID string, from, to time.Time) ([]models.TeachingShift, error) {
	if m.rangeErr != nil {
		return nil, m.rangeErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.TeachingShift
	for _, s := range m.shifts {
		if s.TeacherID == teacherID && !s.ShiftStart.Before(from) && s.ShiftStart.Before(to) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memShiftStore) ListByTeacher(_ context.Context, teacherID string) ([]models.TeachingShift, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.TeachingShift
	for _, s := range m.shifts {
		if s.TeacherID == teacherID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memShiftStore) InsertIfAbsent(_ context.Context, _ sqlx.ExtContext, shift *models.TeachingShift) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.shifts[shift.ID]; ok {
		return false, nil
	}
	m.shifts[shift.ID] = *shift
	m.inserts++
	return true, nil
}

func (m *memShiftStore) PatchGenerated(_ context.Context, _ sqlx.ExtContext, shift *models.TeachingShift) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.shifts[shift.ID]
	if !ok || !current.GeneratedFromTemplate || current.TeacherModified ||
		(current.Status != models.ShiftScheduled && current.Status != models.ShiftPending) {
		return false, nil
	}
	patched := *shift
	patched.Status = current.Status
	patched.CreatedAt = current.CreatedAt
	m.shifts[shift.ID] = patched
	m.patches++
	return true, nil
}

func (m *memShiftStore) ListCleanupCandidates(_ context.Context, templateID *string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, s := range m.shifts {
		if !s.GeneratedFromTemplate || s.TeacherModified || (s.Status != models.ShiftScheduled && s.Status != models.ShiftMissed) {
			continue
		}
		if templateID != nil && (s.TemplateID == nil || *s.TemplateID != *templateID) {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *memShiftStore) DeleteByIDs(_ context.Context, _ sqlx.ExtContext, ids []string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, id := range ids {
		if _, ok := m.shifts[id]; ok {
			delete(m.shifts, id)
			n++
		}
	}
	return n, nil
}

func (m *memShiftStore) all() []models.TeachingShift {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.TeachingShift, 0, len(m.shifts))
	for _, s := range m.shifts {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ShiftStart.Before(out[j].ShiftStart) })
	return out
}

type memTemplateStore struct {
	mu        sync.Mutex
	templates map[string]models.ShiftTemplate
	generated map[string]time.Time
}

func newMemTemplateStore(templates ...models.ShiftTemplate) *memTemplateStore {
	store := &memTemplateStore{
		templates: make(map[string]models.ShiftTemplate),
		generated: make(map[string]time.Time),
	}
	for _, t := range templates {
		store.templates[t.ID] = t
	}
	return store
}

func (m *memTemplateStore) Upsert(_ context.Context, tpl *models.ShiftTemplate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.templates[tpl.ID] = *tpl
	return nil
}

func (m *memTemplateStore) Update(_ context.Context, tpl *models.ShiftTemplate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.templates[tpl.ID]; !ok {
		return sql.ErrNoRows
	}
	m.templates[tpl.ID] = *tpl
	return nil
}

func (m *memTemplateStore) FindByID(_ context.Context, id string) (*models.ShiftTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tpl, ok := m.templates[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &tpl, nil
}

func (m *memTemplateStore) List(_ context.Context, filter repository.ShiftTemplateFilter) ([]models.ShiftTemplate, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ShiftTemplate
	for _, t := range m.templates {
		if filter.TeacherID != "" && t.TeacherID != filter.TeacherID {
			continue
		}
		if filter.ActiveOnly && !t.IsActive {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (m *memTemplateStore) ListActive(_ context.Context) ([]models.ShiftTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ShiftTemplate
	for _, t := range m.templates {
		if t.IsActive {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memTemplateStore) ListActiveIDsByTeacher(_ context.Context, teacherID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, t := range m.templates {
		if t.TeacherID == teacherID && t.IsActive {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *memTemplateStore) AppendExcludedDate(_ context.Context, id string, date time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tpl, ok := m.templates[id]
	if !ok {
		return false, nil
	}
	for _, d := range tpl.Recurrence.ExcludedDates {
		if d.Equal(date) {
			return false, nil
		}
	}
	tpl.Recurrence.ExcludedDates = append(tpl.Recurrence.ExcludedDates, date.UTC())
	m.templates[id] = tpl
	return true, nil
}

func (m *memTemplateStore) Deactivate(_ context.Context, _ sqlx.ExtContext, ids []string, reason string, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, id := range ids {
		tpl, ok := m.templates[id]
		if !ok {
			continue
		}
		r := reason
		ts := at
		tpl.IsActive = false
		tpl.DeactivatedReason = &r
		tpl.DeactivatedAt = &ts
		m.templates[id] = tpl
		n++
	}
	return n, nil
}

func (m *memTemplateStore) SetLastGeneratedDate(_ context.Context, id string, day time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generated[id] = day
	return nil
}

type fakeTx struct {
	calls int
}

func (f *fakeTx) RunInTx(_ context.Context, fn func(exec sqlx.ExtContext) error) error {
	f.calls++
	return fn(nil)
}

type fakeAdmins map[string]bool

func (f fakeAdmins) IsAdmin(_ context.Context, callerID string) (bool, error) {
	return f[callerID], nil
}

type recordingReporter struct {
	summaries []models.RunSummary
}

func (r *recordingReporter) Report(_ context.Context, summary models.RunSummary) error {
	r.summaries = append(r.summaries, summary)
	return nil
}
