package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/sma-exam-scheduler/pkg/errors"
)

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, "exam-schedule")
	ctx := context.Background()

	var dest map[string]string
	err := repo.Get(ctx, "run-1", &dest)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrCacheMiss))

	assert.NoError(t, repo.Set(ctx, "run-1", map[string]string{"a": "b"}, time.Minute))
	assert.NoError(t, repo.Delete(ctx, "run-1"))
}

func TestCacheRepositoryKeyPrefix(t *testing.T) {
	assert.Equal(t, "exam-schedule:run-1", NewCacheRepository(nil, "exam-schedule").key("run-1"))
	assert.Equal(t, "run-1", NewCacheRepository(nil, "").key("run-1"))
}
