package purchasebills

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var kgKey = LookupKey{SupplierID: 5, MasterMaterialID: 9, Unit: "kg", Date: "2024-01-10"}

func TestResolveOutcomes(t *testing.T) {
	api := newFakeAPI()
	lookup := NewPriceLookup(api, 0, time.Second, discardLogger)

	miss := lookup.Resolve(context.Background(), kgKey)
	require.False(t, miss.Found)
	require.NoError(t, miss.Err)
	require.Equal(t, "miss", miss.Outcome())

	api.setPrice(kgQuery, "2.5")
	found := lookup.Resolve(context.Background(), kgKey)
	require.True(t, found.Found)
	require.Equal(t, "2.5", found.Quote.Price.String())
	require.Equal(t, kgKey, found.Key)
	require.Equal(t, "found", found.Outcome())

	api.priceErr = errors.New("timeout")
	failed := lookup.Resolve(context.Background(), kgKey)
	require.False(t, failed.Found)
	require.Error(t, failed.Err)
	require.Equal(t, "error", failed.Outcome())
}

func TestResolveWithoutResolver(t *testing.T) {
	result := NewPriceLookup(nil, 0, 0, nil).Resolve(context.Background(), kgKey)
	require.Error(t, result.Err)
}

func TestScheduleReplacesPendingLookup(t *testing.T) {
	api := newFakeAPI()
	lookup := NewPriceLookup(api, 30*time.Millisecond, time.Second, discardLogger)

	var delivered atomic.Int32
	var last atomic.Value
	deliver := func(r LookupResult) {
		delivered.Add(1)
		last.Store(r.Key)
	}
	for _, unit := range []string{"g", "kg", "box"} {
		key := kgKey
		key.Unit = unit
		lookup.Schedule(key, deliver)
	}

	require.Eventually(t, func() bool { return delivered.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, int32(1), delivered.Load())
	require.Equal(t, "box", last.Load().(LookupKey).Unit)
	require.Len(t, api.lookups(), 1)
}

func TestCancelDropsPendingLookup(t *testing.T) {
	api := newFakeAPI()
	lookup := NewPriceLookup(api, 20*time.Millisecond, time.Second, discardLogger)

	var delivered atomic.Int32
	lookup.Schedule(kgKey, func(LookupResult) { delivered.Add(1) })
	lookup.Cancel()

	time.Sleep(50 * time.Millisecond)
	require.Zero(t, delivered.Load())
	require.Empty(t, api.lookups())
}
