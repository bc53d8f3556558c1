package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ncolesummers/web-research-agent/pkg/domain"
)

func sampleContent(url string) *domain.ExtractedContent {
	return &domain.ExtractedContent{
		URL:       url,
		Title:     "Pricing",
		Domain:    "example.com",
		MainText:  "The Pro plan costs $20 per month.",
		WordCount: 7,
		FetchedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestMemoryCache_TTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c := NewMemoryCache(DefaultTTL).WithClock(func() time.Time { return now })

	require.NoError(t, c.Set(ctx, sampleContent("https://example.com/pricing")))

	got, ok := c.Get(ctx, "https://example.com/pricing")
	require.True(t, ok)
	assert.Equal(t, "Pricing", got.Title)

	_, ok = c.Get(ctx, "https://example.com/pricing/")
	assert.False(t, ok, "only exact urls match")

	now = now.Add(4*time.Minute + 59*time.Second)
	_, ok = c.Get(ctx, "https://example.com/pricing")
	assert.True(t, ok)

	now = now.Add(time.Second)
	_, ok = c.Get(ctx, "https://example.com/pricing")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len(), "expired entries are evicted on read")
}

func TestMemoryCache_IgnoresEmptyURL(t *testing.T) {
	c := NewMemoryCache(0)
	require.NoError(t, c.Set(context.Background(), &domain.ExtractedContent{}))
	require.NoError(t, c.Set(context.Background(), nil))
	assert.Equal(t, 0, c.Len())
}

func TestRedisCache(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := NewRedisCacheFromClient(client, DefaultTTL)
	defer c.Close()

	want := sampleContent("https://example.com/pricing")
	require.NoError(t, c.Set(ctx, want))

	got, ok := c.Get(ctx, want.URL)
	require.True(t, ok)
	assert.Equal(t, want.MainText, got.MainText)
	assert.True(t, want.FetchedAt.Equal(got.FetchedAt))

	assert.Equal(t, DefaultTTL, mr.TTL(keyPrefix+want.URL))

	mr.FastForward(DefaultTTL + time.Second)
	_, ok = c.Get(ctx, want.URL)
	assert.False(t, ok)
}

func TestNewRedisCache_Errors(t *testing.T) {
	_, err := NewRedisCache(RedisConfig{})
	assert.ErrorIs(t, err, ErrEmptyAddress)

	mr := miniredis.RunT(t)
	c, err := NewRedisCache(RedisConfig{Address: mr.Addr(), TTL: time.Minute})
	require.NoError(t, err)
	assert.NoError(t, c.Close())
}
