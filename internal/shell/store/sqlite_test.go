package store

import (
	"context"
	"testing"
	"time"

	"github.com/artpar/flexdeploy/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Helpers
// =============================================================================

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

func testRecord(plugin, version string, at time.Time) domain.DeployRecord {
	return domain.NewDeployRecord(plugin, domain.DeployResult{
		ServiceSid:     "ZS00000000000000000000000000000001",
		AccountSid:     "AC00000000000000000000000000000001",
		EnvironmentSid: "ZE00000000000000000000000000000001",
		DomainName:     "default-1234-dev.example.io",
		IsPublic:       true,
		NextVersion:    version,
		PluginURL:      "https://default-1234-dev.example.io/plugins/" + plugin + "/" + version + "/bundle.js",
	}, at)
}

// =============================================================================
// Ledger Tests
// =============================================================================

func TestRecordAndGet(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	at := time.Date(2024, 3, 1, 12, 30, 0, 123, time.UTC)
	rec := testRecord("plugin-sample", "1.2.3", at)

	require.NoError(t, store.Record(ctx, rec))

	got, err := store.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec, *got)
}

func TestRecord_DuplicateID(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	rec := testRecord("plugin-sample", "1.0.0", time.Now())
	require.NoError(t, store.Record(ctx, rec))

	err := store.Record(ctx, rec)
	assert.ErrorIs(t, err, ErrDuplicateID)
}

func TestGet_NotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	var storeErr *StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "Get", storeErr.Op)
	assert.Equal(t, "missing", storeErr.ID)
}

func TestList_NewestFirst(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.Record(ctx, testRecord("plugin-a", "1.0.0", base)))
	require.NoError(t, store.Record(ctx, testRecord("plugin-a", "1.1.0", base.Add(time.Hour))))
	require.NoError(t, store.Record(ctx, testRecord("plugin-b", "0.0.1", base.Add(30*time.Minute))))

	all, err := store.List(ctx, DefaultListOptions())
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "1.1.0", all[0].Version)
	assert.Equal(t, "plugin-b", all[1].Plugin)
	assert.Equal(t, "1.0.0", all[2].Version)

	onlyA, err := store.List(ctx, ListOptions{Plugin: "plugin-a"})
	require.NoError(t, err)
	require.Len(t, onlyA, 2)
	for _, r := range onlyA {
		assert.Equal(t, "plugin-a", r.Plugin)
	}

	page, err := store.List(ctx, ListOptions{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "plugin-b", page[0].Plugin)
}

func TestList_Empty(t *testing.T) {
	store := setupTestStore(t)

	records, err := store.List(context.Background(), ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestListOptions_Normalize(t *testing.T) {
	tests := []struct {
		name string
		in   ListOptions
		want ListOptions
	}{
		{"zero limit", ListOptions{}, ListOptions{Limit: 100}},
		{"too large", ListOptions{Limit: 5000}, ListOptions{Limit: 1000}},
		{"negative offset", ListOptions{Limit: 10, Offset: -3}, ListOptions{Limit: 10}},
		{"plugin kept", ListOptions{Plugin: "p", Limit: 5}, ListOptions{Plugin: "p", Limit: 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Normalize())
		})
	}
}
