package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/organized-thot/brodev3-antidetect/internal/domain/model"
	"github.com/organized-thot/brodev3-antidetect/internal/domain/port/driven"
)

var (
	// ErrInvalidName is returned when a profile name sanitizes to nothing usable.
	ErrInvalidName = errors.New("invalid profile name")
	// ErrProfileNotFound is returned when no record is named exactly as asked.
	ErrProfileNotFound = errors.New("profile not found")
)

// ProfileService keeps the remote profile record, the on-disk profile
// directory and the local journal in step. It is the entry point for driving
// adapters (REST API, CLI).
type ProfileService struct {
	repo   *ProfileRepository
	dirs   driven.ProfileDirs
	events driven.EventStore
	logger *slog.Logger
}

// NewProfileService creates a ProfileService. events may be nil to disable the journal.
func NewProfileService(repo *ProfileRepository, dirs driven.ProfileDirs, events driven.EventStore, logger *slog.Logger) *ProfileService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProfileService{
		repo:   repo,
		dirs:   dirs,
		events: events,
		logger: logger,
	}
}

// Repository exposes the underlying record repository.
func (s *ProfileService) Repository() *ProfileRepository { return s.repo }

// SanitizeName returns the directory-safe form of name.
func (s *ProfileService) SanitizeName(name any) string {
	return model.SanitizeName(name)
}

// CreateProfile creates the profile directory and creates or updates the
// remote record under the sanitized name. A new record without a select field
// starts unselected; an existing record keeps its selection. The journal gets
// "created" or "updated" only after the remote write succeeded. Returns the
// sanitized name.
func (s *ProfileService) CreateProfile(ctx context.Context, name string, fields model.Record) (string, error) {
	safe := model.SanitizeName(name)
	if safe == "" {
		return "", fmt.Errorf("create profile %q: %w", name, ErrInvalidName)
	}

	if err := s.dirs.Create(safe); err != nil {
		return "", fmt.Errorf("create profile %q: %w", safe, err)
	}

	record := fields.Clone()
	record[model.FieldName] = safe

	outcome, err := s.repo.CreateOrUpdate(ctx, safe, record, model.Record{model.FieldSelect: model.BlankMarker})
	if err != nil {
		return "", fmt.Errorf("save profile %q: %w", safe, err)
	}

	switch outcome {
	case UpsertCreated:
		s.record(ctx, safe, model.EventCreated, "")
	case UpsertUpdated:
		s.record(ctx, safe, model.EventUpdated, "")
	}
	return safe, nil
}

// GetProfile returns a snapshot of the named profile record.
func (s *ProfileService) GetProfile(ctx context.Context, name string) (*model.Row, bool) {
	return s.repo.Fetch(ctx, name)
}

// Exists reports whether the named profile record exists.
func (s *ProfileService) Exists(ctx context.Context, name string) bool {
	return s.repo.Exists(ctx, name)
}

// DeleteProfile removes the profile directory and the remote record. When
// the lookup fails nothing is touched. When no record exists the directory is
// still removed and ErrProfileNotFound is returned.
func (s *ProfileService) DeleteProfile(ctx context.Context, name string) error {
	safe := model.SanitizeName(name)
	if safe == "" {
		return fmt.Errorf("delete profile %q: %w", name, ErrInvalidName)
	}

	row, found, err := s.repo.Lookup(ctx, safe)
	if err != nil {
		return fmt.Errorf("look up profile %q: %w", safe, err)
	}

	if err := s.dirs.Delete(safe); err != nil {
		return fmt.Errorf("delete profile %q: %w", safe, err)
	}

	if !found {
		return fmt.Errorf("delete profile %q: %w", safe, ErrProfileNotFound)
	}
	if err := s.repo.Delete(ctx, row); err != nil {
		return fmt.Errorf("delete profile %q: %w", safe, err)
	}

	s.record(ctx, safe, model.EventDeleted, "")
	return nil
}

// OpenProfile marks the profile as in use.
func (s *ProfileService) OpenProfile(ctx context.Context, name string) error {
	return s.setField(ctx, name, model.FieldOpen, model.OpenMarker, model.EventOpened)
}

// CloseProfile clears the in-use marker.
func (s *ProfileService) CloseProfile(ctx context.Context, name string) error {
	return s.setField(ctx, name, model.FieldOpen, model.BlankMarker, model.EventClosed)
}

// SetSelected sets or clears the selection marker.
func (s *ProfileService) SetSelected(ctx context.Context, name string, selected bool) error {
	if selected {
		return s.setField(ctx, name, model.FieldSelect, model.SelectedMarker, model.EventSelected)
	}
	return s.setField(ctx, name, model.FieldSelect, model.BlankMarker, model.EventDeselected)
}

// setField fetches the row, writes one field back and journals action. Unknown
// names return ErrProfileNotFound; lookup and save failures are returned.
func (s *ProfileService) setField(ctx context.Context, name, field string, value any, action model.EventAction) error {
	row, found, err := s.repo.Lookup(ctx, name)
	if err != nil {
		return fmt.Errorf("look up profile %q: %w", name, err)
	}
	if !found {
		return fmt.Errorf("profile %q: %w", name, ErrProfileNotFound)
	}

	row.Merge(model.Record{field: value})
	if err := s.repo.Save(ctx, row); err != nil {
		return fmt.Errorf("save profile %q: %w", name, err)
	}

	s.record(ctx, name, action, "")
	return nil
}

// ListProfiles returns every profile name in table order.
func (s *ProfileService) ListProfiles(ctx context.Context) []string {
	return s.repo.ListNames(ctx)
}

// ListSelected returns the names of selected profiles in table order.
func (s *ProfileService) ListSelected(ctx context.Context) []string {
	return s.repo.ListSelected(ctx)
}

// Orphans returns local profile directories that have no remote record.
// Unlike ListProfiles, a remote failure is returned rather than read as "no
// records", which would report every directory as orphaned.
func (s *ProfileService) Orphans(ctx context.Context) ([]string, error) {
	local, err := s.dirs.List()
	if err != nil {
		return nil, err
	}

	remote, err := s.repo.listNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("list remote profiles: %w", err)
	}

	known := make(map[string]struct{}, len(remote))
	for _, name := range remote {
		known[name] = struct{}{}
	}

	orphans := []string{}
	for _, name := range local {
		if _, ok := known[name]; !ok {
			orphans = append(orphans, name)
		}
	}
	return orphans, nil
}

// Events returns recent journal entries, newest first.
func (s *ProfileService) Events(ctx context.Context, limit int) ([]model.Event, error) {
	if s.events == nil {
		return []model.Event{}, nil
	}
	return s.events.ListRecent(ctx, limit)
}

// ProfileEvents returns the journal entries of one profile, newest first.
func (s *ProfileService) ProfileEvents(ctx context.Context, name string) ([]model.Event, error) {
	if s.events == nil {
		return []model.Event{}, nil
	}
	return s.events.ListByProfile(ctx, name)
}

// record appends to the journal. Journal failures never fail the operation.
func (s *ProfileService) record(ctx context.Context, name string, action model.EventAction, detail string) {
	if s.events == nil {
		return
	}
	err := s.events.Record(ctx, model.Event{ProfileName: name, Action: action, Detail: detail})
	if err != nil {
		s.logger.Warn("failed to journal profile event", "name", name, "action", action, "error", err)
	}
}
