package apl_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saleorapp/pkg/apl"
)

func TestFileAPL_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := apl.NewFileAPL(filepath.Join(t.TempDir(), "auth.json"))
	data := testAuthData()

	require.NoError(t, store.Set(ctx, data))

	got, err := store.Get(ctx, data.SaleorAPIURL)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, data, *got)
}

func TestFileAPL_GetAbsentBeforeFirstWrite(t *testing.T) {
	ctx := context.Background()
	store := apl.NewFileAPL(filepath.Join(t.TempDir(), "auth.json"))

	got, err := store.Get(ctx, "https://never-set.example.com")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFileAPL_DeleteIdempotent(t *testing.T) {
	ctx := context.Background()
	store := apl.NewFileAPL(filepath.Join(t.TempDir(), "auth.json"))
	data := testAuthData()

	require.NoError(t, store.Set(ctx, data))
	require.NoError(t, store.Delete(ctx, data.SaleorAPIURL))
	require.NoError(t, store.Delete(ctx, data.SaleorAPIURL))

	got, err := store.Get(ctx, data.SaleorAPIURL)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFileAPL_CorruptFileSurfaces(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "auth.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o600))
	store := apl.NewFileAPL(path)

	_, err := store.Get(ctx, "https://shop.example.com")
	var cerr *apl.CorruptionError
	require.ErrorAs(t, err, &cerr)
}

func TestFileAPL_Readiness(t *testing.T) {
	ctx := context.Background()

	ok := apl.NewFileAPL(filepath.Join(t.TempDir(), "auth.json"))
	assert.True(t, ok.IsReady(ctx).Ready)
	assert.True(t, ok.IsConfigured(ctx).Configured)

	missing := apl.NewFileAPL("")
	r := missing.IsReady(ctx)
	assert.False(t, r.Ready)
	assert.Equal(t, []string{"fileName"}, r.Missing)
	assert.False(t, missing.IsConfigured(ctx).Configured)
}

func TestFileAPL_GetAll(t *testing.T) {
	ctx := context.Background()
	store := apl.NewFileAPL(filepath.Join(t.TempDir(), "auth.json"))

	a := testAuthData()
	b := testAuthData()
	b.SaleorAPIURL = "https://other.example.com/graphql/"
	require.NoError(t, store.Set(ctx, a))
	require.NoError(t, store.Set(ctx, b))

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []apl.AuthData{a, b}, all)
}
