package productset_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-storefront-cache/identity"
	"github.com/goliatone/go-storefront-cache/pkg/testsupport"
	"github.com/goliatone/go-storefront-cache/productset"
)

func TestSet_Contains(t *testing.T) {
	s := productset.Set{Kind: productset.Favorites, IDs: []int64{3, 9}}
	assert.True(t, s.Contains(9))
	assert.False(t, s.Contains(4))
	assert.Equal(t, 2, s.Len())
	assert.Zero(t, productset.Set{}.Len())
}

func TestCache_Toggle(t *testing.T) {
	ctx := context.Background()
	h := testsupport.NewHarness(t)
	favs := productset.New(productset.Favorites, h.Storefront, h.Identity, h.Queries, nil)

	present, err := favs.Toggle(ctx, 101)
	require.NoError(t, err)
	assert.True(t, present)

	ok, err := favs.Contains(ctx, 101)
	require.NoError(t, err)
	assert.True(t, ok)

	present, err = favs.Toggle(ctx, 101)
	require.NoError(t, err)
	assert.False(t, present)

	ok, err = favs.Contains(ctx, 101)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCache_RepeatedAddStillCallsServer(t *testing.T) {
	ctx := context.Background()
	h := testsupport.NewHarness(t)
	favs := productset.New(productset.Favorites, h.Storefront, h.Identity, h.Queries, nil)

	require.NoError(t, favs.Add(ctx, 102))
	require.NoError(t, favs.Add(ctx, 102))
	assert.Equal(t, 2, h.Storefront.Calls(testsupport.OpAddToSet))

	res, err := favs.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{102}, res.Data.IDs)
	assert.Equal(t, productset.Favorites, res.Data.Kind)

	require.NoError(t, favs.Remove(ctx, 999))
	res, err = favs.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{102}, res.Data.IDs)
}

func TestCache_KindsAreIndependent(t *testing.T) {
	ctx := context.Background()
	h := testsupport.NewHarness(t)
	favs := productset.New(productset.Favorites, h.Storefront, h.Identity, h.Queries, nil)
	cmp := productset.New(productset.Comparison, h.Storefront, h.Identity, h.Queries, nil)

	_, err := cmp.Snapshot(ctx)
	require.NoError(t, err)
	require.NoError(t, favs.Add(ctx, 201))

	// a favorites mutation leaves the cached comparison read alone
	res, err := cmp.Snapshot(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Data.Len())
	assert.Equal(t, 1, h.Storefront.Calls(testsupport.OpProductSet))
	assert.Equal(t, productset.Comparison, cmp.Kind())
}

func TestCache_SignedInUserHasOwnList(t *testing.T) {
	ctx := context.Background()
	h := testsupport.NewHarness(t)
	favs := productset.New(productset.Favorites, h.Storefront, h.Identity, h.Queries, nil)

	require.NoError(t, h.Identity.SignIn(ctx, identity.Credentials{Email: "alan@example.com", Password: "enigma-42"}))
	require.NoError(t, favs.Add(ctx, 301))

	require.NoError(t, h.Identity.SignOut(ctx))
	res, err := favs.Snapshot(ctx)
	require.NoError(t, err)
	assert.False(t, res.Data.Contains(301))
}
