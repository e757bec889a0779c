package application_test

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/organized-thot/brodev3-antidetect/internal/domain/model"
	"github.com/organized-thot/brodev3-antidetect/internal/domain/port/driven"
)

// --- Mock implementations ---

type patchCall struct {
	RowID  int64
	Record model.Record
}

// fakeTable is an in-memory driven.TableClient with substring search,
// pagination and per-method error injection.
type fakeTable struct {
	mu     sync.Mutex
	rows   []model.Row
	nextID int64

	pageSize int

	listErr   error
	createErr error
	patchErr  error
	deleteErr error

	// listFailures makes the first N List calls fail with errOutage.
	listFailures int

	// afterList runs (unlocked) after each List call with the 1-based call count.
	afterList func(call int)

	lists   []driven.ListQuery
	creates []model.Record
	patches []patchCall
	deletes []int64
}

func newFakeTable(records ...model.Record) *fakeTable {
	f := &fakeTable{nextID: 1}
	for _, r := range records {
		f.insert(r)
	}
	return f
}

func (f *fakeTable) insert(r model.Record) model.Row {
	fields := r.Clone()
	id := f.nextID
	if v, ok := fields[model.FieldID].(int); ok {
		id = int64(v)
	}
	if id >= f.nextID {
		f.nextID = id + 1
	}
	fields[model.FieldID] = id
	row := model.Row{ID: id, Fields: fields}
	f.rows = append(f.rows, row)
	return row
}

func matchesSearch(row model.Row, search string) bool {
	if search == "" {
		return true
	}
	needle := strings.ToLower(search)
	for _, v := range row.Fields {
		if s, ok := v.(string); ok && strings.Contains(strings.ToLower(s), needle) {
			return true
		}
	}
	return false
}

func (f *fakeTable) List(_ context.Context, query driven.ListQuery) (*driven.Page, error) {
	f.mu.Lock()
	f.lists = append(f.lists, query)
	call := len(f.lists)
	if f.listErr != nil {
		f.mu.Unlock()
		return nil, f.listErr
	}
	if call <= f.listFailures {
		f.mu.Unlock()
		return nil, errOutage
	}

	var matched []model.Row
	for _, row := range f.rows {
		if matchesSearch(row, query.Search) {
			matched = append(matched, model.Row{ID: row.ID, Fields: row.Fields.Clone()})
		}
	}

	size := f.pageSize
	if size == 0 {
		size = len(matched) + 1
	}
	page := max(query.Page, 1)
	start := min((page-1)*size, len(matched))
	end := min(start+size, len(matched))

	result := &driven.Page{Count: len(matched), Results: matched[start:end]}
	if end < len(matched) {
		result.Next = "next"
	}
	hook := f.afterList
	f.mu.Unlock()

	if hook != nil {
		hook(call)
	}
	return result, nil
}

func (f *fakeTable) Create(_ context.Context, record model.Record) (*model.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.creates = append(f.creates, record.Clone())
	if f.createErr != nil {
		return nil, f.createErr
	}
	row := f.insert(record)
	return &model.Row{ID: row.ID, Fields: row.Fields.Clone()}, nil
}

func (f *fakeTable) Patch(_ context.Context, rowID int64, record model.Record) (*model.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.patches = append(f.patches, patchCall{RowID: rowID, Record: record.Clone()})
	if f.patchErr != nil {
		return nil, f.patchErr
	}
	for i := range f.rows {
		if f.rows[i].ID == rowID {
			f.rows[i].Merge(record)
			return &model.Row{ID: rowID, Fields: f.rows[i].Fields.Clone()}, nil
		}
	}
	return nil, notFound("patch")
}

func (f *fakeTable) Delete(_ context.Context, rowID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.deletes = append(f.deletes, rowID)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	for i := range f.rows {
		if f.rows[i].ID == rowID {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			return nil
		}
	}
	return notFound("delete")
}

func (f *fakeTable) removeByName(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.rows {
		if f.rows[i].Name() == name {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			return
		}
	}
}

func (f *fakeTable) names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.rows))
	for _, r := range f.rows {
		out = append(out, r.Name())
	}
	return out
}

func notFound(op string) error {
	return &driven.RemoteError{Op: op, StatusCode: http.StatusNotFound, Err: errors.New("ERROR_ROW_DOES_NOT_EXIST")}
}

var errOutage = &driven.RemoteError{Op: "list", Err: errors.New("connection refused")}

// recordingLimiter admits immediately and records every acquisition.
type recordingLimiter struct {
	mu       sync.Mutex
	acquired []int
	err      error
}

func (l *recordingLimiter) Acquire(_ context.Context, n int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.acquired = append(l.acquired, n)
	return nil
}

func (l *recordingLimiter) costs() []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]int(nil), l.acquired...)
}

// fakeDirs records directory operations using the real sanitizer.
type fakeDirs struct {
	created []string
	deleted []string
	local   []string
	err     error
}

func (d *fakeDirs) Create(name string) error {
	if d.err != nil {
		return d.err
	}
	if safe := model.SanitizeName(name); safe != "" {
		d.created = append(d.created, safe)
	}
	return nil
}

func (d *fakeDirs) Delete(name string) error {
	if d.err != nil {
		return d.err
	}
	if safe := model.SanitizeName(name); safe != "" {
		d.deleted = append(d.deleted, safe)
	}
	return nil
}

func (d *fakeDirs) List() ([]string, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.local, nil
}

// fakeEvents is an in-memory driven.EventStore.
type fakeEvents struct {
	mu     sync.Mutex
	events []model.Event
	err    error
}

func (e *fakeEvents) Record(_ context.Context, event model.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	event.ID = int64(len(e.events) + 1)
	e.events = append(e.events, event)
	return nil
}

func (e *fakeEvents) ListRecent(_ context.Context, limit int) ([]model.Event, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := []model.Event{}
	for i := len(e.events) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		out = append(out, e.events[i])
	}
	return out, nil
}

func (e *fakeEvents) ListByProfile(_ context.Context, name string) ([]model.Event, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := []model.Event{}
	for i := len(e.events) - 1; i >= 0; i-- {
		if e.events[i].ProfileName == name {
			out = append(out, e.events[i])
		}
	}
	return out, nil
}

func (e *fakeEvents) actions() []model.EventAction {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]model.EventAction, 0, len(e.events))
	for _, ev := range e.events {
		out = append(out, ev.Action)
	}
	return out
}
