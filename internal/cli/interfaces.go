package cli

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/Backland-Labs/docflow/internal/config"
	"github.com/Backland-Labs/docflow/internal/document"
	"github.com/Backland-Labs/docflow/internal/notify"
	"github.com/Backland-Labs/docflow/internal/output"
	"github.com/Backland-Labs/docflow/internal/transport"
)

// ConfigLoader interface for dependency injection in tests
type ConfigLoader interface {
	Load(path string) (*config.Config, error)
}

// DocumentLoader reads the file to analyze
type DocumentLoader interface {
	Load(path string) (*document.File, error)
}

// RedisConnector opens a verified Redis connection
type RedisConnector func(ctx context.Context, addr string) (*redis.Client, error)

// Real implementations for production use

// RealConfigLoader implements ConfigLoader using the real config package
type RealConfigLoader struct{}

func (r *RealConfigLoader) Load(path string) (*config.Config, error) {
	return config.Load(path)
}

// RealDocumentLoader implements DocumentLoader by reading from disk
type RealDocumentLoader struct{}

func (r *RealDocumentLoader) Load(path string) (*document.File, error) {
	return document.Load(path)
}

// NewRealDependencies creates production dependencies
func NewRealDependencies() *Dependencies {
	return &Dependencies{
		ConfigLoader: &RealConfigLoader{},
		Documents:    &RealDocumentLoader{},
		Sender:       transport.NewAdapter(),
		ConnectRedis: notify.NewClient,
		Color:        output.SupportsColor(),
	}
}

// Dependencies holds everything the commands reach outside the process for
type Dependencies struct {
	ConfigLoader ConfigLoader
	Documents    DocumentLoader
	Sender       transport.Sender
	ConnectRedis RedisConnector
	// Color enables ANSI colors in human readable output
	Color bool
}
