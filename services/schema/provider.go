// Package schema serves table column metadata to the rewriter from a short
// lived cache in front of information_schema.
package schema

import (
	"context"
	"time"

	"github.com/upb/leads-guard/models"
	"github.com/upb/leads-guard/repositories"
	"go.uber.org/zap"
)

// Config holds cache sizing for the provider
type Config struct {
	TTL        time.Duration
	MaxEntries int
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		TTL:        time.Minute,
		MaxEntries: 64,
	}
}

// CachedProvider implements repositories.SchemaRepository over another
// SchemaRepository. Lookup errors are never cached.
type CachedProvider struct {
	repo   repositories.SchemaRepository
	cache  *columnCache
	logger *zap.Logger
}

// NewCachedProvider wraps repo with an LRU+TTL cache
func NewCachedProvider(repo repositories.SchemaRepository, logger *zap.Logger, config Config) *CachedProvider {
	def := DefaultConfig()
	if config.TTL <= 0 {
		config.TTL = def.TTL
	}
	if config.MaxEntries <= 0 {
		config.MaxEntries = def.MaxEntries
	}
	return &CachedProvider{
		repo:   repo,
		cache:  newColumnCache(config.MaxEntries, config.TTL),
		logger: logger,
	}
}

// DescribeTable returns the table's columns, from cache when fresh
func (p *CachedProvider) DescribeTable(ctx context.Context, table string) ([]models.ColumnInfo, error) {
	if cols, ok := p.cache.get(table); ok {
		return cols, nil
	}

	cols, err := p.repo.DescribeTable(ctx, table)
	if err != nil {
		return nil, err
	}

	p.cache.set(table, cols)
	p.logger.Debug("schema cached", zap.String("table", table), zap.Int("columns", len(cols)))
	return cols, nil
}

// ColumnsOf returns the table's column names in ordinal order
func (p *CachedProvider) ColumnsOf(ctx context.Context, table string) ([]string, error) {
	cols, err := p.DescribeTable(ctx, table)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names, nil
}

// Invalidate drops the cached columns of table
func (p *CachedProvider) Invalidate(table string) {
	p.cache.invalidate(table)
}

// Clear drops every cached table
func (p *CachedProvider) Clear() {
	p.cache.clear()
}

// Stats returns cache statistics
func (p *CachedProvider) Stats() CacheStats {
	return p.cache.stats()
}

// StartCleanupWorker removes expired entries every interval until stopCh closes
func (p *CachedProvider) StartCleanupWorker(interval time.Duration, stopCh <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := p.cache.cleanupExpired(); n > 0 {
				p.logger.Debug("expired schema entries removed", zap.Int("count", n))
			}
		case <-stopCh:
			return
		}
	}
}
