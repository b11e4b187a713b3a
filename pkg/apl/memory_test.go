package apl_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saleorapp/pkg/apl"
)

func testAuthData() apl.AuthData {
	return apl.AuthData{
		SaleorAPIURL: "https://shop.example.com/graphql/",
		Token:        "t1",
		AppID:        "app1",
		DashboardURL: "dash.example.com",
	}
}

func TestMemoryAPL_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := apl.NewMemoryAPL()
	data := testAuthData()

	require.NoError(t, store.Set(ctx, data))

	got, err := store.Get(ctx, data.SaleorAPIURL)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, data, *got)
}

func TestMemoryAPL_GetAbsent(t *testing.T) {
	ctx := context.Background()
	store := apl.NewMemoryAPL()

	got, err := store.Get(ctx, "https://never-set.example.com")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryAPL_SetOverwrites(t *testing.T) {
	ctx := context.Background()
	store := apl.NewMemoryAPL()
	data := testAuthData()

	require.NoError(t, store.Set(ctx, data))
	data.Token = "t2"
	require.NoError(t, store.Set(ctx, data))

	got, err := store.Get(ctx, data.SaleorAPIURL)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "t2", got.Token)
}

func TestMemoryAPL_DeleteIsTerminalAndIdempotent(t *testing.T) {
	ctx := context.Background()
	store := apl.NewMemoryAPL()
	data := testAuthData()

	require.NoError(t, store.Set(ctx, data))
	require.NoError(t, store.Delete(ctx, data.SaleorAPIURL))

	got, err := store.Get(ctx, data.SaleorAPIURL)
	require.NoError(t, err)
	assert.Nil(t, got)

	// deleting again (and deleting a never-set key) is not an error
	assert.NoError(t, store.Delete(ctx, data.SaleorAPIURL))
	assert.NoError(t, store.Delete(ctx, "https://never-set.example.com"))
}

func TestMemoryAPL_GetAll(t *testing.T) {
	ctx := context.Background()
	store := apl.NewMemoryAPL()

	a := testAuthData()
	b := testAuthData()
	b.SaleorAPIURL = "https://other.example.com/graphql/"
	require.NoError(t, store.Set(ctx, a))
	require.NoError(t, store.Set(ctx, b))

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []apl.AuthData{a, b}, all)
}

func TestMemoryAPL_AlwaysReady(t *testing.T) {
	ctx := context.Background()
	store := apl.NewMemoryAPL()

	assert.True(t, store.IsReady(ctx).Ready)
	assert.True(t, store.IsConfigured(ctx).Configured)
}
