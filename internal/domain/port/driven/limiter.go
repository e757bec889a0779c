package driven

import "context"

// Limiter is the admission gate in front of every remote table call.
// Acquire blocks until n tokens are available and debits them. It returns an
// error only when ctx ends first or n can never be satisfied.
type Limiter interface {
	Acquire(ctx context.Context, n int) error
}
