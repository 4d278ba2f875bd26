package services

import (
	"sync"

	"github.com/djrag/backend-go/internal/config"
	"github.com/djrag/backend-go/internal/logger"
	"github.com/djrag/backend-go/internal/rag"
	"go.uber.org/zap"
)

// EngineProvider 惰性构造并缓存RAG引擎。
// 首次构造成功后进程内复用同一实例；构造失败不缓存，
// 下一个请求会重新尝试，避免把一次瞬时故障固化成永久故障。
type EngineProvider struct {
	mu      sync.Mutex
	engine  *rag.Engine
	factory func() (*rag.Engine, error)
}

// NewEngineProvider 创建引擎提供者
func NewEngineProvider() *EngineProvider {
	return &EngineProvider{
		factory: func() (*rag.Engine, error) {
			return rag.NewEngine(config.GetAppConfig())
		},
	}
}

// NewEngineProviderWithFactory 使用自定义构造函数（测试用）
func NewEngineProviderWithFactory(factory func() (*rag.Engine, error)) *EngineProvider {
	return &EngineProvider{factory: factory}
}

// Get 获取引擎实例
func (p *EngineProvider) Get() (*rag.Engine, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.engine != nil {
		return p.engine, nil
	}

	engine, err := p.factory()
	if err != nil {
		logger.Error("Failed to initialize RAG engine", zap.Error(err))
		return nil, err
	}

	p.engine = engine
	logger.Info("RAG engine initialized")
	return p.engine, nil
}
