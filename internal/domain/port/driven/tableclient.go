package driven

import (
	"context"
	"errors"
	"fmt"

	"github.com/organized-thot/brodev3-antidetect/internal/domain/model"
)

// ListQuery narrows a table listing. Zero values mean "server default".
type ListQuery struct {
	// Search is matched by the server across row fields. Its matching rules
	// (substring, token) belong to the server; callers filter exact matches.
	Search string
	Page   int
	Size   int
}

// Page is one page of a table listing. Next is empty on the last page.
type Page struct {
	Count   int
	Next    string
	Results []model.Row
}

// TableClient defines the driven port for the remote table API. Implementations
// do not retry; every failure is reported as a *RemoteError.
type TableClient interface {
	List(ctx context.Context, query ListQuery) (*Page, error)
	Create(ctx context.Context, record model.Record) (*model.Row, error)
	Patch(ctx context.Context, rowID int64, record model.Record) (*model.Row, error)
	Delete(ctx context.Context, rowID int64) error
}

// RemoteError reports any failure reaching or parsing the remote table API:
// transport errors, non-2xx responses and undecodable bodies.
type RemoteError struct {
	Op         string
	StatusCode int // 0 when no response was received.
	Err        error
}

func (e *RemoteError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("remote table %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("remote table %s: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// IsRemoteError reports whether err is or wraps a *RemoteError.
func IsRemoteError(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}
