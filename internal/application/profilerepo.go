// Package application contains use-case orchestration services.
package application

import (
	"context"
	"log/slog"

	"github.com/organized-thot/brodev3-antidetect/internal/domain/model"
	"github.com/organized-thot/brodev3-antidetect/internal/domain/port/driven"
)

// Token costs charged to the rate limiter by each repository operation.
// Operations built on a lookup pay their own cost plus the lookup's, so an
// upsert of an existing profile costs CostUpsert+CostExists.
const (
	CostExists       = 4
	CostUpsert       = 5
	CostFetch        = 4
	CostMarkOpen     = 4
	CostMarkClosed   = 3
	CostRemove       = 2
	CostListNames    = 2
	CostListSelected = 3
	CostSaveRow      = 1
	CostDeleteRow    = 1
)

// listPageSize is the largest page the table API serves.
const listPageSize = 200

// ProfileRepository maps profile operations onto the remote table. Every
// operation first acquires its token cost from the limiter.
//
// Failure policy: the named operations (Exists, Upsert, Fetch, MarkOpen,
// MarkClosed, Remove, ListNames, ListSelected) never return remote failures.
// Each logs the error and degrades to its documented default, so an outage
// reads as "profile not found" rather than failing the caller. Save and
// Delete act on a row the caller already holds and do return errors.
//
// Name matching is exact string equality on the name field, applied to the
// server's search results. The server search is trusted to return a superset.
type ProfileRepository struct {
	client  driven.TableClient
	limiter driven.Limiter
	logger  *slog.Logger
	locks   *nameLocks
}

// NewProfileRepository creates a ProfileRepository. logger may be nil.
func NewProfileRepository(client driven.TableClient, limiter driven.Limiter, logger *slog.Logger) *ProfileRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProfileRepository{
		client:  client,
		limiter: limiter,
		logger:  logger,
		locks:   newNameLocks(),
	}
}

// Exists reports whether a row named exactly name exists.
// Default on failure: false. Callers must tolerate false negatives.
func (r *ProfileRepository) Exists(ctx context.Context, name string) bool {
	if name == "" {
		return false
	}
	if err := r.limiter.Acquire(ctx, CostExists); err != nil {
		r.fail("exists", name, err)
		return false
	}

	_, found, err := r.findRow(ctx, name)
	if err != nil {
		r.fail("exists", name, err)
		return false
	}
	return found
}

// Upsert creates the profile row from data when no row named name exists,
// otherwise patches the existing row with data. data without a name field
// gets name filled in. If the row disappears between the existence check and
// the re-lookup, nothing is written. Concurrent Upserts of the same name are
// serialized within this process; other writers can still race.
// Default on failure: no-op.
func (r *ProfileRepository) Upsert(ctx context.Context, name string, data model.Record) {
	if name == "" {
		return
	}

	unlock := r.locks.lock(name)
	defer unlock()

	if err := r.limiter.Acquire(ctx, CostUpsert); err != nil {
		r.fail("upsert", name, err)
		return
	}

	record := data.Clone()
	if _, ok := record[model.FieldName]; !ok {
		record[model.FieldName] = name
	}

	if !r.Exists(ctx, name) {
		if _, err := r.client.Create(ctx, record); err != nil {
			r.fail("upsert", name, err)
			return
		}
		r.logger.Debug("profile row created", "name", name)
		return
	}

	row, found, err := r.findRow(ctx, name)
	if err != nil {
		r.fail("upsert", name, err)
		return
	}
	if !found {
		r.logger.Debug("profile row vanished before update", "name", name)
		return
	}

	if _, err := r.client.Patch(ctx, row.ID, record); err != nil {
		r.fail("upsert", name, err)
		return
	}
	r.logger.Debug("profile row updated", "name", name, "row_id", row.ID)
}

// UpsertOutcome reports what CreateOrUpdate wrote.
type UpsertOutcome int

const (
	UpsertSkipped UpsertOutcome = iota
	UpsertCreated
	UpsertUpdated
)

// CreateOrUpdate is Upsert without the failure policy. It looks the row up
// once; a lookup failure is returned and nothing is written, so an outage is
// never mistaken for "absent". createDefaults fills fields missing from data
// only when a new row is created. Costs the same tokens as Upsert.
func (r *ProfileRepository) CreateOrUpdate(ctx context.Context, name string, data, createDefaults model.Record) (UpsertOutcome, error) {
	if name == "" {
		return UpsertSkipped, nil
	}

	unlock := r.locks.lock(name)
	defer unlock()

	if err := r.limiter.Acquire(ctx, CostUpsert); err != nil {
		return UpsertSkipped, err
	}
	if err := r.limiter.Acquire(ctx, CostExists); err != nil {
		return UpsertSkipped, err
	}

	row, found, err := r.findRow(ctx, name)
	if err != nil {
		return UpsertSkipped, err
	}

	record := data.Clone()
	if _, ok := record[model.FieldName]; !ok {
		record[model.FieldName] = name
	}

	if !found {
		for field, value := range createDefaults {
			if _, ok := record[field]; !ok {
				record[field] = value
			}
		}
		if _, err := r.client.Create(ctx, record); err != nil {
			return UpsertSkipped, err
		}
		return UpsertCreated, nil
	}

	if _, err := r.client.Patch(ctx, row.ID, record); err != nil {
		return UpsertSkipped, err
	}
	return UpsertUpdated, nil
}

// Fetch returns a snapshot of the first row named exactly name.
// Default on failure: (nil, false).
func (r *ProfileRepository) Fetch(ctx context.Context, name string) (*model.Row, bool) {
	row, found, err := r.Lookup(ctx, name)
	if err != nil {
		r.fail("fetch", name, err)
		return nil, false
	}
	return row, found
}

// Lookup is Fetch without the failure policy: remote and limiter failures
// are returned instead of reading as "not found".
func (r *ProfileRepository) Lookup(ctx context.Context, name string) (*model.Row, bool, error) {
	if name == "" {
		return nil, false, nil
	}
	if err := r.limiter.Acquire(ctx, CostFetch); err != nil {
		return nil, false, err
	}
	return r.findRow(ctx, name)
}

// MarkOpen sets the open marker on the profile. Unknown names are ignored.
// Default on failure: no-op.
func (r *ProfileRepository) MarkOpen(ctx context.Context, name string) {
	r.setField(ctx, "mark_open", CostMarkOpen, name, model.FieldOpen, model.OpenMarker)
}

// MarkClosed blanks the open marker on the profile. Unknown names are ignored.
// Default on failure: no-op.
func (r *ProfileRepository) MarkClosed(ctx context.Context, name string) {
	r.setField(ctx, "mark_closed", CostMarkClosed, name, model.FieldOpen, model.BlankMarker)
}

func (r *ProfileRepository) setField(ctx context.Context, op string, cost int, name, field string, value any) {
	if err := r.limiter.Acquire(ctx, cost); err != nil {
		r.fail(op, name, err)
		return
	}

	row, ok := r.Fetch(ctx, name)
	if !ok {
		return
	}

	row.Merge(model.Record{field: value})
	if err := r.saveRow(ctx, row); err != nil {
		r.fail(op, name, err)
	}
}

// Remove deletes the row named exactly name, if any.
// Default on failure: no-op.
func (r *ProfileRepository) Remove(ctx context.Context, name string) {
	if err := r.limiter.Acquire(ctx, CostRemove); err != nil {
		r.fail("remove", name, err)
		return
	}

	row, ok := r.Fetch(ctx, name)
	if !ok {
		return
	}

	if err := r.client.Delete(ctx, row.ID); err != nil {
		r.fail("remove", name, err)
		return
	}
	r.logger.Debug("profile row deleted", "name", name, "row_id", row.ID)
}

// ListNames returns the name of every row in table order.
// Default on failure: empty slice.
func (r *ProfileRepository) ListNames(ctx context.Context) []string {
	names, err := r.listNames(ctx)
	if err != nil {
		r.fail("list_names", "", err)
		return []string{}
	}
	return names
}

// listNames is ListNames without the failure policy.
func (r *ProfileRepository) listNames(ctx context.Context) ([]string, error) {
	if err := r.limiter.Acquire(ctx, CostListNames); err != nil {
		return nil, err
	}

	names := []string{}
	err := r.scan(ctx, "", func(row model.Row) bool {
		names = append(names, row.Name())
		return true
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

// ListSelected returns the names of rows carrying the selection marker, in table order.
// Default on failure: empty slice.
func (r *ProfileRepository) ListSelected(ctx context.Context) []string {
	if err := r.limiter.Acquire(ctx, CostListSelected); err != nil {
		r.fail("list_selected", "", err)
		return []string{}
	}

	names := []string{}
	err := r.scan(ctx, "", func(row model.Row) bool {
		if row.Fields.IsSelected() {
			names = append(names, row.Name())
		}
		return true
	})
	if err != nil {
		r.fail("list_selected", "", err)
		return []string{}
	}
	return names
}

// Save pushes the full snapshot of row back to its row id. The row is not
// re-validated first; saving a row deleted elsewhere yields a *driven.RemoteError.
func (r *ProfileRepository) Save(ctx context.Context, row *model.Row) error {
	if err := r.limiter.Acquire(ctx, CostSaveRow); err != nil {
		return err
	}
	return r.saveRow(ctx, row)
}

// Delete removes the remote row behind row. Like Save, it does not re-check existence.
func (r *ProfileRepository) Delete(ctx context.Context, row *model.Row) error {
	if err := r.limiter.Acquire(ctx, CostDeleteRow); err != nil {
		return err
	}
	return r.client.Delete(ctx, row.ID)
}

func (r *ProfileRepository) saveRow(ctx context.Context, row *model.Row) error {
	updated, err := r.client.Patch(ctx, row.ID, row.Fields)
	if err != nil {
		return err
	}
	if updated != nil && updated.Fields != nil {
		row.Fields = updated.Fields
	}
	return nil
}

// findRow searches by name and returns the first exact match.
func (r *ProfileRepository) findRow(ctx context.Context, name string) (*model.Row, bool, error) {
	var match *model.Row
	err := r.scan(ctx, name, func(row model.Row) bool {
		if row.Name() == name {
			match = &row
			return false
		}
		return true
	})
	if err != nil {
		return nil, false, err
	}
	return match, match != nil, nil
}

// scan walks every page of the listing for search, calling visit per row in
// table order until visit returns false or the pages run out.
func (r *ProfileRepository) scan(ctx context.Context, search string, visit func(model.Row) bool) error {
	for page := 1; ; page++ {
		p, err := r.client.List(ctx, driven.ListQuery{Search: search, Page: page, Size: listPageSize})
		if err != nil {
			return err
		}

		for _, row := range p.Results {
			if !visit(row) {
				return nil
			}
		}

		if p.Next == "" || len(p.Results) == 0 {
			return nil
		}
	}
}

// fail logs a remote failure that is being converted to a default value.
func (r *ProfileRepository) fail(op, name string, err error) {
	r.logger.Error("profile repository call failed, returning default",
		"op", op,
		"name", name,
		"remote", driven.IsRemoteError(err),
		"error", err,
	)
}
