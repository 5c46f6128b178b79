package forecast

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestCacheVersioning(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewCache(client, time.Minute)
	ctx := context.Background()

	ver, err := cache.Version(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), ver)

	key1, err := cache.BuildKey(ctx, "forecast", "dashboard", "a")
	require.NoError(t, err)

	loads := 0
	loader := func(context.Context) (interface{}, error) {
		loads++
		return []Projection{{SKU: "BOOT-41", TotalWeeks: 3}}, nil
	}

	var rows []Projection
	require.NoError(t, cache.FetchJSON(ctx, key1, &rows, loader))
	require.Equal(t, 1, loads)
	require.Equal(t, "BOOT-41", rows[0].SKU)

	// Second fetch is served from redis.
	rows = nil
	require.NoError(t, cache.FetchJSON(ctx, key1, &rows, loader))
	require.Equal(t, 1, loads)
	require.Equal(t, "BOOT-41", rows[0].SKU)

	// A bump orphans every old key.
	require.NoError(t, cache.Bump(ctx))
	key2, err := cache.BuildKey(ctx, "forecast", "dashboard", "a")
	require.NoError(t, err)
	require.NotEqual(t, key1, key2)

	rows = nil
	require.NoError(t, cache.FetchJSON(ctx, key2, &rows, loader))
	require.Equal(t, 2, loads)
}

func TestCacheNilClientFallsThrough(t *testing.T) {
	cache := NewCache(nil, time.Minute)
	ctx := context.Background()

	require.NoError(t, cache.Bump(ctx))

	loads := 0
	var rows []Projection
	loader := func(context.Context) (interface{}, error) {
		loads++
		return []Projection{{SKU: "BOOT-41"}}, nil
	}
	require.NoError(t, cache.FetchJSON(ctx, "any", &rows, loader))
	require.NoError(t, cache.FetchJSON(ctx, "any", &rows, loader))
	require.Equal(t, 2, loads)
}
