package application_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/organized-thot/brodev3-antidetect/internal/application"
	"github.com/organized-thot/brodev3-antidetect/internal/domain/model"
	"github.com/organized-thot/brodev3-antidetect/internal/domain/port/driven"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newRepo(table *fakeTable) (*application.ProfileRepository, *recordingLimiter) {
	limiter := &recordingLimiter{}
	return application.NewProfileRepository(table, limiter, quietLogger()), limiter
}

func TestExists_ExactMatchOnly(t *testing.T) {
	table := newFakeTable(model.Record{"name": "a"}, model.Record{"name": "ab"})
	repo, _ := newRepo(table)
	ctx := context.Background()

	assert.True(t, repo.Exists(ctx, "a"))
	assert.True(t, repo.Exists(ctx, "ab"))
	assert.False(t, repo.Exists(ctx, "b"), "substring hit on \"ab\" must not count")
	assert.False(t, repo.Exists(ctx, "A"), "matching is case-sensitive")

	require.NotEmpty(t, table.lists)
	assert.Equal(t, "a", table.lists[0].Search)
}

func TestExists_RemoteFailureIsFalse(t *testing.T) {
	table := newFakeTable(model.Record{"name": "a"})
	table.listErr = errOutage
	repo, _ := newRepo(table)

	assert.False(t, repo.Exists(context.Background(), "a"))
}

func TestExists_EmptyNameSkipsRemote(t *testing.T) {
	table := newFakeTable(model.Record{"name": ""})
	repo, limiter := newRepo(table)

	assert.False(t, repo.Exists(context.Background(), ""))
	assert.Empty(t, table.lists)
	assert.Empty(t, limiter.costs())
}

func TestExists_LimiterFailureIsFalse(t *testing.T) {
	table := newFakeTable(model.Record{"name": "a"})
	repo, limiter := newRepo(table)
	limiter.err = context.Canceled

	assert.False(t, repo.Exists(context.Background(), "a"))
	assert.Empty(t, table.lists, "no request may precede token acquisition")
}

func TestUpsert_CreatesWhenAbsent(t *testing.T) {
	table := newFakeTable(model.Record{"name": "other"})
	repo, _ := newRepo(table)

	repo.Upsert(context.Background(), "new_profile", model.Record{"name": "new_profile", "select": " "})

	require.Len(t, table.creates, 1)
	assert.Empty(t, table.patches)
	assert.Equal(t, model.Record{"name": "new_profile", "select": " "}, table.creates[0])
	assert.Equal(t, []string{"other", "new_profile"}, table.names())
}

func TestUpsert_FillsMissingName(t *testing.T) {
	table := newFakeTable()
	repo, _ := newRepo(table)

	data := model.Record{"proxy": "1.2.3.4:80"}
	repo.Upsert(context.Background(), "p", data)

	require.Len(t, table.creates, 1)
	assert.Equal(t, "p", table.creates[0].Name())
	assert.NotContains(t, data, "name", "caller data must not be mutated")
}

func TestUpsert_PatchesExistingRow(t *testing.T) {
	table := newFakeTable(
		model.Record{"id": 98, "name": "existing_profile_2"},
		model.Record{"id": 99, "name": "existing_profile"},
	)
	repo, _ := newRepo(table)

	repo.Upsert(context.Background(), "existing_profile", model.Record{"name": "existing_profile", "proxy": "test"})

	assert.Empty(t, table.creates)
	require.Len(t, table.patches, 1)
	assert.Equal(t, int64(99), table.patches[0].RowID)
	assert.Equal(t, model.Record{"name": "existing_profile", "proxy": "test"}, table.patches[0].Record)
}

func TestUpsert_RowVanishedBetweenChecksIsNoop(t *testing.T) {
	table := newFakeTable(model.Record{"id": 5, "name": "flaky"})
	table.afterList = func(call int) {
		if call == 1 {
			table.removeByName("flaky")
		}
	}
	repo, _ := newRepo(table)

	repo.Upsert(context.Background(), "flaky", model.Record{"proxy": "x"})

	assert.Empty(t, table.creates)
	assert.Empty(t, table.patches)
}

func TestUpsert_SwallowsRemoteFailure(t *testing.T) {
	table := newFakeTable()
	table.createErr = errors.New("boom")
	repo, _ := newRepo(table)

	assert.NotPanics(t, func() {
		repo.Upsert(context.Background(), "p", model.Record{"name": "p"})
	})
	assert.Len(t, table.creates, 1)
}

func TestUpsert_ConcurrentSameNameCreatesOnce(t *testing.T) {
	table := newFakeTable()
	repo, _ := newRepo(table)

	const callers = 8
	var wg sync.WaitGroup
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			repo.Upsert(context.Background(), "shared", model.Record{"name": "shared"})
		}()
	}
	wg.Wait()

	assert.Len(t, table.creates, 1)
	assert.Len(t, table.patches, callers-1)
	assert.Equal(t, []string{"shared"}, table.names())
}

func TestCreateOrUpdate_CreateAppliesDefaults(t *testing.T) {
	table := newFakeTable()
	repo, limiter := newRepo(table)

	outcome, err := repo.CreateOrUpdate(context.Background(), "p", model.Record{"proxy": "h:1"}, model.Record{"select": " ", "proxy": "unused"})

	require.NoError(t, err)
	assert.Equal(t, application.UpsertCreated, outcome)
	require.Len(t, table.creates, 1)
	assert.Equal(t, model.Record{"name": "p", "proxy": "h:1", "select": " "}, table.creates[0])
	assert.Equal(t, []int{5, 4}, limiter.costs())
}

func TestCreateOrUpdate_UpdateIgnoresDefaults(t *testing.T) {
	table := newFakeTable(model.Record{"id": 12, "name": "p", "select": "X"})
	repo, _ := newRepo(table)

	outcome, err := repo.CreateOrUpdate(context.Background(), "p", model.Record{"proxy": "h:1"}, model.Record{"select": " "})

	require.NoError(t, err)
	assert.Equal(t, application.UpsertUpdated, outcome)
	require.Len(t, table.patches, 1)
	assert.Equal(t, int64(12), table.patches[0].RowID)
	assert.Equal(t, model.Record{"name": "p", "proxy": "h:1"}, table.patches[0].Record)
}

func TestCreateOrUpdate_LookupFailureWritesNothing(t *testing.T) {
	table := newFakeTable(model.Record{"name": "p"})
	table.listFailures = 1
	repo, _ := newRepo(table)

	outcome, err := repo.CreateOrUpdate(context.Background(), "p", model.Record{}, nil)

	require.Error(t, err)
	assert.True(t, driven.IsRemoteError(err))
	assert.Equal(t, application.UpsertSkipped, outcome)
	assert.Empty(t, table.creates)
	assert.Empty(t, table.patches)
}

func TestCreateOrUpdate_ConcurrentSameNameCreatesOnce(t *testing.T) {
	table := newFakeTable()
	repo, _ := newRepo(table)

	const callers = 6
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, err := repo.CreateOrUpdate(context.Background(), "shared", model.Record{}, nil)
			if err == nil && outcome == application.UpsertCreated {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Len(t, table.creates, 1)
	assert.Len(t, table.patches, callers-1)
}

func TestLookup_ReturnsRemoteFailure(t *testing.T) {
	table := newFakeTable(model.Record{"name": "p"})
	repo, _ := newRepo(table)

	row, found, err := repo.Lookup(context.Background(), "p")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "p", row.Name())

	_, found, err = repo.Lookup(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, found)

	table.listErr = errOutage
	_, found, err = repo.Lookup(context.Background(), "p")
	assert.ErrorIs(t, err, errOutage)
	assert.False(t, found)
}

func TestFetch_RowHandle(t *testing.T) {
	table := newFakeTable(model.Record{"id": 42, "name": "test_profile", "proxy": "127.0.0.1:8080"})
	repo, _ := newRepo(table)
	ctx := context.Background()

	row, ok := repo.Fetch(ctx, "test_profile")
	require.True(t, ok)
	assert.Equal(t, int64(42), row.ID)
	assert.Equal(t, "test_profile", row.Get("name"))
	assert.Equal(t, "127.0.0.1:8080", row.Get("proxy"))

	row.Merge(model.Record{"proxy": "new_proxy"})
	assert.Equal(t, "new_proxy", row.Get("proxy"))
	assert.Empty(t, table.patches, "merge must not reach the network")

	require.NoError(t, repo.Save(ctx, row))
	require.Len(t, table.patches, 1)
	assert.Equal(t, int64(42), table.patches[0].RowID)
	assert.Equal(t, "new_proxy", table.patches[0].Record["proxy"])
	assert.Equal(t, "test_profile", table.patches[0].Record["name"])

	require.NoError(t, repo.Delete(ctx, row))
	assert.Equal(t, []int64{42}, table.deletes)
	assert.Empty(t, table.names())
}

func TestFetch_NotFoundAndFailure(t *testing.T) {
	table := newFakeTable(model.Record{"name": "abc"})
	repo, _ := newRepo(table)

	row, ok := repo.Fetch(context.Background(), "ab")
	assert.False(t, ok)
	assert.Nil(t, row)

	table.listErr = errOutage
	row, ok = repo.Fetch(context.Background(), "abc")
	assert.False(t, ok)
	assert.Nil(t, row)
}

func TestFetch_FindsMatchOnLaterPage(t *testing.T) {
	table := newFakeTable(
		model.Record{"name": "prof-1"},
		model.Record{"name": "prof-2"},
		model.Record{"name": "prof-3"},
		model.Record{"name": "prof"},
	)
	table.pageSize = 2
	repo, _ := newRepo(table)

	row, ok := repo.Fetch(context.Background(), "prof")
	require.True(t, ok)
	assert.Equal(t, "prof", row.Name())
	assert.Len(t, table.lists, 2)
	assert.Equal(t, 2, table.lists[1].Page)
}

func TestSaveAndDelete_StaleRowSurfaceRemoteError(t *testing.T) {
	table := newFakeTable(model.Record{"id": 7, "name": "gone"})
	repo, _ := newRepo(table)
	ctx := context.Background()

	row, ok := repo.Fetch(ctx, "gone")
	require.True(t, ok)
	table.removeByName("gone")

	err := repo.Save(ctx, row)
	require.Error(t, err)
	assert.True(t, driven.IsRemoteError(err))

	err = repo.Delete(ctx, row)
	require.Error(t, err)
	assert.True(t, driven.IsRemoteError(err))
}

func TestMarkOpenAndClosed(t *testing.T) {
	table := newFakeTable(model.Record{"id": 3, "name": "p", "open": " "})
	repo, _ := newRepo(table)
	ctx := context.Background()

	repo.MarkOpen(ctx, "p")
	require.Len(t, table.patches, 1)
	assert.Equal(t, int64(3), table.patches[0].RowID)
	assert.Equal(t, model.OpenMarker, table.patches[0].Record["open"])
	assert.Equal(t, "p", table.patches[0].Record["name"])

	repo.MarkClosed(ctx, "p")
	require.Len(t, table.patches, 2)
	assert.Equal(t, model.BlankMarker, table.patches[1].Record["open"])
}

func TestMarkOpen_UnknownOrFailingIsNoop(t *testing.T) {
	table := newFakeTable(model.Record{"name": "p"})
	repo, _ := newRepo(table)

	repo.MarkOpen(context.Background(), "missing")
	assert.Empty(t, table.patches)

	table.patchErr = errors.New("boom")
	assert.NotPanics(t, func() { repo.MarkClosed(context.Background(), "p") })
}

func TestRemove(t *testing.T) {
	table := newFakeTable(model.Record{"id": 10, "name": "keep"}, model.Record{"id": 11, "name": "drop"})
	repo, _ := newRepo(table)
	ctx := context.Background()

	repo.Remove(ctx, "drop")
	assert.Equal(t, []int64{11}, table.deletes)
	assert.Equal(t, []string{"keep"}, table.names())

	repo.Remove(ctx, "drop")
	assert.Equal(t, []int64{11}, table.deletes, "second remove finds nothing to delete")
}

func TestListNames_OrderAcrossPages(t *testing.T) {
	table := newFakeTable(
		model.Record{"name": "profile1"},
		model.Record{"name": "profile2"},
		model.Record{"name": "profile3"},
		model.Record{"name": "profile4"},
		model.Record{"name": "profile5"},
	)
	table.pageSize = 2
	repo, _ := newRepo(table)

	names := repo.ListNames(context.Background())
	assert.Equal(t, []string{"profile1", "profile2", "profile3", "profile4", "profile5"}, names)
	assert.Len(t, table.lists, 3)
	assert.Equal(t, "", table.lists[0].Search)
}

func TestListSelected(t *testing.T) {
	table := newFakeTable(
		model.Record{"name": "p1", "select": "X"},
		model.Record{"name": "p2", "select": " "},
		model.Record{"name": "p3", "select": "X"},
		model.Record{"name": "p4"},
	)
	repo, _ := newRepo(table)

	assert.Equal(t, []string{"p1", "p3"}, repo.ListSelected(context.Background()))
}

func TestListing_RemoteFailureIsEmpty(t *testing.T) {
	table := newFakeTable(model.Record{"name": "p1", "select": "X"})
	table.listErr = errOutage
	repo, _ := newRepo(table)
	ctx := context.Background()

	names := repo.ListNames(ctx)
	assert.NotNil(t, names)
	assert.Empty(t, names)

	selected := repo.ListSelected(ctx)
	assert.NotNil(t, selected)
	assert.Empty(t, selected)
}

func TestTokenCosts(t *testing.T) {
	tests := []struct {
		name string
		call func(ctx context.Context, repo *application.ProfileRepository)
		want []int
	}{
		{"exists", func(ctx context.Context, r *application.ProfileRepository) { r.Exists(ctx, "p") }, []int{4}},
		{"upsert", func(ctx context.Context, r *application.ProfileRepository) { r.Upsert(ctx, "p", model.Record{}) }, []int{5, 4}},
		{"fetch", func(ctx context.Context, r *application.ProfileRepository) { r.Fetch(ctx, "p") }, []int{4}},
		{"mark open", func(ctx context.Context, r *application.ProfileRepository) { r.MarkOpen(ctx, "p") }, []int{4, 4}},
		{"mark closed", func(ctx context.Context, r *application.ProfileRepository) { r.MarkClosed(ctx, "p") }, []int{3, 4}},
		{"remove", func(ctx context.Context, r *application.ProfileRepository) { r.Remove(ctx, "p") }, []int{2, 4}},
		{"list names", func(ctx context.Context, r *application.ProfileRepository) { r.ListNames(ctx) }, []int{2}},
		{"list selected", func(ctx context.Context, r *application.ProfileRepository) { r.ListSelected(ctx) }, []int{3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := newFakeTable(model.Record{"name": "p"})
			repo, limiter := newRepo(table)

			tt.call(context.Background(), repo)
			assert.Equal(t, tt.want, limiter.costs())
		})
	}
}
