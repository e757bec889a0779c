package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// newTestJournal opens a migrated in-memory journal private to the test.
func newTestJournal(t *testing.T) *DB {
	t.Helper()

	db, err := openDSN(context.Background(), MemoryPath, memoryDSN(t.Name()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Migrate()
	require.NoError(t, err)
	return db
}
