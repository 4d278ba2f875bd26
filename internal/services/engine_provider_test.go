package services

import (
	"errors"
	"testing"

	"github.com/djrag/backend-go/internal/rag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineProviderCachesSuccess(t *testing.T) {
	calls := 0
	provider := NewEngineProviderWithFactory(func() (*rag.Engine, error) {
		calls++
		return newStubEngine(t, rag.NewMemoryVectorStore(), "http://unused.invalid"), nil
	})

	first, err := provider.Get()
	require.NoError(t, err)
	second, err := provider.Get()
	require.NoError(t, err)

	// 成功后复用同一实例
	assert.Same(t, first, second)
	assert.Equal(t, 1, calls)
}

func TestEngineProviderRetriesAfterFailure(t *testing.T) {
	calls := 0
	provider := NewEngineProviderWithFactory(func() (*rag.Engine, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("missing api key")
		}
		return newStubEngine(t, rag.NewMemoryVectorStore(), "http://unused.invalid"), nil
	})

	// 失败不缓存
	_, err := provider.Get()
	require.Error(t, err)

	engine, err := provider.Get()
	require.NoError(t, err)
	assert.NotNil(t, engine)
	assert.Equal(t, 2, calls)
}
