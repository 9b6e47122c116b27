package migration

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storefront/backend/migrations"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"add refund reason", "add_refund_reason"},
		{"Add-Refund-Reason", "add_refund_reason"},
		{"ADD__REFUND", "add_refund"},
		{"index 2", "index_2"},
		{"special!@#$chars", "specialchars"},
		{"trailing_", "trailing"},
		{"_leading", "leading"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeName(tt.input))
		})
	}
}

func TestCreateMigration_NumbersAfterExisting(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "000007_orders.up.sql"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "000007_orders.down.sql"), nil, 0o644))

	mf, err := CreateMigration(dir, "Add refund reason", "Stores the admin's reason")
	require.NoError(t, err)

	assert.Equal(t, uint(8), mf.Version)
	assert.Equal(t, filepath.Join(dir, "000008_add_refund_reason.up.sql"), mf.UpPath)
	assert.Equal(t, filepath.Join(dir, "000008_add_refund_reason.down.sql"), mf.DownPath)

	up, err := os.ReadFile(mf.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(up), "-- Migration: Add refund reason")
	assert.Contains(t, string(up), "-- Stores the admin's reason")

	down, err := os.ReadFile(mf.DownPath)
	require.NoError(t, err)
	assert.Contains(t, string(down), "-- Rollback: Add refund reason")
}

func TestCreateMigration_EmptyDirStartsAtOne(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "fresh")

	mf, err := CreateMigration(dir, "init", "")
	require.NoError(t, err)
	assert.Equal(t, uint(1), mf.Version)

	up, err := os.ReadFile(mf.UpPath)
	require.NoError(t, err)
	assert.NotContains(t, string(up), "-- \n")
}

func TestCreateMigration_RejectsEmptyName(t *testing.T) {
	_, err := CreateMigration(t.TempDir(), "!!!", "")
	assert.Error(t, err)
}

func TestListMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"000002_cart.up.sql":       {},
		"000002_cart.down.sql":     {},
		"000001_products.up.sql":   {},
		"000010_late.up.sql":       {},
		"README.md":                {},
		"notaversion_x.up.sql":     {},
		"000003_missing_dir.sql":   {},
		"000004_nested/file.sql":   {},
		"000001_products.down.sql": {},
	}

	entries, err := ListMigrations(fsys)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, Entry{Version: 1, Name: "products", HasDown: true}, entries[0])
	assert.Equal(t, Entry{Version: 2, Name: "cart", HasDown: true}, entries[1])
	assert.Equal(t, Entry{Version: 10, Name: "late", HasDown: false}, entries[2])
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := ListMigrations(migrations.FS)
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	for i, e := range entries {
		assert.Equal(t, uint(i+1), e.Version, "versions must be contiguous")
		assert.True(t, e.HasDown, "migration %d has no down file", e.Version)
	}
}
