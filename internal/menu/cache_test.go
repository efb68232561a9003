package menu

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute)
}

func TestCacheServesStoredMenu(t *testing.T) {
	cache := newTestCache(t)
	builds := 0
	build := func(ctx context.Context) ([]Node, error) {
		builds++
		return []Node{{Title: "Dashboard", Href: "/dashboard"}}, nil
	}

	first, err := cache.VisibleMenu(context.Background(), 1, build)
	require.NoError(t, err)
	second, err := cache.VisibleMenu(context.Background(), 1, build)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, builds, "second call must come from cache")
}

func TestCacheIsolatesUsers(t *testing.T) {
	cache := newTestCache(t)

	menuFor := func(title string) func(context.Context) ([]Node, error) {
		return func(ctx context.Context) ([]Node, error) {
			return []Node{{Title: title, Href: "/" + title}}, nil
		}
	}

	one, err := cache.VisibleMenu(context.Background(), 1, menuFor("One"))
	require.NoError(t, err)
	two, err := cache.VisibleMenu(context.Background(), 2, menuFor("Two"))
	require.NoError(t, err)

	assert.Equal(t, "One", one[0].Title)
	assert.Equal(t, "Two", two[0].Title)
}

func TestCacheInvalidateForcesRebuild(t *testing.T) {
	cache := newTestCache(t)
	builds := 0
	build := func(ctx context.Context) ([]Node, error) {
		builds++
		return []Node{{Title: "Dashboard", Href: "/dashboard"}}, nil
	}

	_, err := cache.VisibleMenu(context.Background(), 1, build)
	require.NoError(t, err)
	require.NoError(t, cache.Invalidate(context.Background()))
	_, err = cache.VisibleMenu(context.Background(), 1, build)
	require.NoError(t, err)

	assert.Equal(t, 2, builds)
}

func TestCachePropagatesBuildErrors(t *testing.T) {
	cache := newTestCache(t)
	boom := errors.New("source down")

	_, err := cache.VisibleMenu(context.Background(), 1, func(ctx context.Context) ([]Node, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
}
