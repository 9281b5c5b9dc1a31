package cache

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	values map[string]string
	getErr error
	sets   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{values: map[string]string{}}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	if f.getErr != nil {
		return "", f.getErr
	}
	v, ok := f.values[key]
	if !ok {
		return "", goredis.Nil
	}
	return v, nil
}

func (f *fakeStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	f.sets++
	f.values[key] = value.(string)
	return nil
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.values, k)
	}
	return nil
}

func (f *fakeStore) DelByPrefix(_ context.Context, prefix string) error {
	for k := range f.values {
		if strings.HasPrefix(k, prefix) {
			delete(f.values, k)
		}
	}
	return nil
}

func (f *fakeStore) CacheKey(parts ...string) string {
	return "sr:cache:" + strings.Join(parts, ":")
}

type summary struct {
	Count int `json:"count"`
}

func TestGetOrComputeMissThenHit(t *testing.T) {
	store := newFakeStore()
	c := New(store, nil)
	ctx := context.Background()
	key := c.Key("inventory", "summary")

	computed := 0
	compute := func(context.Context) (any, error) {
		computed++
		return summary{Count: 7}, nil
	}

	var got summary
	require.NoError(t, c.GetOrCompute(ctx, key, time.Minute, &got, compute))
	assert.Equal(t, 7, got.Count)
	assert.Equal(t, 1, computed)

	got = summary{}
	require.NoError(t, c.GetOrCompute(ctx, key, time.Minute, &got, compute))
	assert.Equal(t, 7, got.Count)
	assert.Equal(t, 1, computed, "second read should be served from cache")
}

func TestGetOrComputeDegradesOnStoreFailure(t *testing.T) {
	store := newFakeStore()
	store.getErr = errors.New("connection refused")
	c := New(store, nil)

	var got summary
	err := c.GetOrCompute(context.Background(), "k", time.Minute, &got, func(context.Context) (any, error) {
		return summary{Count: 3}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, got.Count)
}

func TestGetOrComputePropagatesComputeError(t *testing.T) {
	c := New(newFakeStore(), nil)

	var got summary
	err := c.GetOrCompute(context.Background(), "k", time.Minute, &got, func(context.Context) (any, error) {
		return nil, errors.New("db down")
	})
	require.Error(t, err)
}

func TestInvalidatePrefix(t *testing.T) {
	store := newFakeStore()
	c := New(store, nil)
	ctx := context.Background()

	store.values["sr:cache:report:sales:a"] = "{}"
	store.values["sr:cache:report:sales:b"] = "{}"
	store.values["sr:cache:inventory:summary"] = "{}"

	require.NoError(t, c.InvalidatePrefix(ctx, "sr:cache:report:sales"))
	assert.Len(t, store.values, 1)
	assert.Contains(t, store.values, "sr:cache:inventory:summary")
}
