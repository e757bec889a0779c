package model

import "maps"

// Well-known profile record fields.
const (
	FieldID     = "id"
	FieldName   = "name"
	FieldProxy  = "proxy"
	FieldSelect = "select"
	FieldOpen   = "open"
	FieldTags   = "tags"
)

// Marker values stored in flag-like fields. The table stores flags as free-form
// text, so "selected" is the literal "X" and "unset" is a single blank.
const (
	SelectedMarker = "X"
	BlankMarker    = " "
)

// OpenMarker is written to the open field of a profile that is in use.
const OpenMarker = 1

// Record is one profile row as a field-name to value mapping. Values keep the
// JSON types of the remote table (string, json.Number, bool, nil, []any, map[string]any).
type Record map[string]any

// Name returns the string value of the name field, or "" when absent or not a string.
func (r Record) Name() string {
	name, _ := r[FieldName].(string)
	return name
}

// IsSelected reports whether the select field carries the selection marker.
func (r Record) IsSelected() bool {
	v, ok := r[FieldSelect].(string)
	return ok && v == SelectedMarker
}

// Clone returns a shallow copy of the record. A nil record clones to an empty one.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	maps.Copy(out, r)
	return out
}

// Row is an in-memory snapshot of one remote profile record together with its
// row identifier. It is never persisted by itself; pushing changes back is the
// job of the repository that produced it. Concurrent out-of-band edits are not
// detected and the last write wins.
type Row struct {
	ID     int64
	Fields Record
}

// Get returns the snapshot value of field, or nil when the field is absent.
func (r *Row) Get(field string) any {
	return r.Fields[field]
}

// Merge shallow-merges partial into the snapshot. It never touches the network.
func (r *Row) Merge(partial Record) {
	if r.Fields == nil {
		r.Fields = make(Record, len(partial))
	}
	maps.Copy(r.Fields, partial)
}

// Name returns the profile name held by the snapshot.
func (r *Row) Name() string {
	return r.Fields.Name()
}
