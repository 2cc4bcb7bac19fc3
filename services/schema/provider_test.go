package schema

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/upb/leads-guard/models"
	"github.com/upb/leads-guard/repositories"
	"go.uber.org/zap"
)

type MockSchemaRepository struct {
	mock.Mock
}

func (m *MockSchemaRepository) ColumnsOf(ctx context.Context, table string) ([]string, error) {
	args := m.Called(ctx, table)
	if cols := args.Get(0); cols != nil {
		return cols.([]string), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockSchemaRepository) DescribeTable(ctx context.Context, table string) ([]models.ColumnInfo, error) {
	args := m.Called(ctx, table)
	if cols := args.Get(0); cols != nil {
		return cols.([]models.ColumnInfo), args.Error(1)
	}
	return nil, args.Error(1)
}

var leadColumns = []models.ColumnInfo{
	{Name: "id", DataType: "bigint"},
	{Name: "name", DataType: "text"},
	{Name: "value", DataType: "numeric", Nullable: true},
}

func newTestProvider(repo repositories.SchemaRepository, cfg Config) (*CachedProvider, *time.Time) {
	p := NewCachedProvider(repo, zap.NewNop(), cfg)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	p.cache.now = func() time.Time { return now }
	return p, &now
}

func TestCachedProvider_CachesDescribe(t *testing.T) {
	repo := new(MockSchemaRepository)
	repo.On("DescribeTable", mock.Anything, "leads").Return(leadColumns, nil).Once()

	p, _ := newTestProvider(repo, DefaultConfig())
	ctx := context.Background()

	cols, err := p.DescribeTable(ctx, "leads")
	require.NoError(t, err)
	assert.Equal(t, leadColumns, cols)

	names, err := p.ColumnsOf(ctx, "leads")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "value"}, names)

	repo.AssertNumberOfCalls(t, "DescribeTable", 1)

	stats := p.Stats()
	assert.Equal(t, 1, stats.Size)
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, 0.5, stats.HitRate)
}

func TestCachedProvider_ReturnsCopies(t *testing.T) {
	repo := new(MockSchemaRepository)
	repo.On("DescribeTable", mock.Anything, "leads").Return(append([]models.ColumnInfo(nil), leadColumns...), nil).Once()

	p, _ := newTestProvider(repo, DefaultConfig())

	cols, err := p.DescribeTable(context.Background(), "leads")
	require.NoError(t, err)
	cols[0].Name = "tampered"

	again, err := p.DescribeTable(context.Background(), "leads")
	require.NoError(t, err)
	assert.Equal(t, "id", again[0].Name)
}

func TestCachedProvider_TTLExpiration(t *testing.T) {
	repo := new(MockSchemaRepository)
	repo.On("DescribeTable", mock.Anything, "leads").Return(leadColumns, nil).Twice()

	p, now := newTestProvider(repo, Config{TTL: time.Minute, MaxEntries: 4})
	ctx := context.Background()

	_, err := p.ColumnsOf(ctx, "leads")
	require.NoError(t, err)

	*now = now.Add(30 * time.Second)
	_, err = p.ColumnsOf(ctx, "leads")
	require.NoError(t, err)
	repo.AssertNumberOfCalls(t, "DescribeTable", 1)

	*now = now.Add(31 * time.Second)
	_, err = p.ColumnsOf(ctx, "leads")
	require.NoError(t, err)
	repo.AssertNumberOfCalls(t, "DescribeTable", 2)
}

func TestCachedProvider_ErrorsNotCached(t *testing.T) {
	repo := new(MockSchemaRepository)
	notFound := fmt.Errorf("table %q: %w", "ghosts", repositories.ErrNotFound)
	repo.On("DescribeTable", mock.Anything, "ghosts").Return(nil, notFound).Twice()

	p, _ := newTestProvider(repo, DefaultConfig())

	for i := 0; i < 2; i++ {
		_, err := p.ColumnsOf(context.Background(), "ghosts")
		assert.True(t, errors.Is(err, repositories.ErrNotFound))
	}
	repo.AssertNumberOfCalls(t, "DescribeTable", 2)
	assert.Equal(t, 0, p.Stats().Size)
}

func TestCachedProvider_LRUEviction(t *testing.T) {
	repo := new(MockSchemaRepository)
	for _, table := range []string{"a", "b", "c"} {
		repo.On("DescribeTable", mock.Anything, table).Return(leadColumns, nil)
	}

	p, _ := newTestProvider(repo, Config{TTL: time.Hour, MaxEntries: 2})
	ctx := context.Background()

	_, _ = p.DescribeTable(ctx, "a")
	_, _ = p.DescribeTable(ctx, "b")
	_, _ = p.DescribeTable(ctx, "a") // a is now most recent
	_, _ = p.DescribeTable(ctx, "c") // evicts b

	assert.Equal(t, 2, p.Stats().Size)

	_, _ = p.DescribeTable(ctx, "a")
	repo.AssertNumberOfCalls(t, "DescribeTable", 3)

	_, _ = p.DescribeTable(ctx, "b")
	repo.AssertNumberOfCalls(t, "DescribeTable", 4)
}

func TestCachedProvider_Invalidate(t *testing.T) {
	repo := new(MockSchemaRepository)
	repo.On("DescribeTable", mock.Anything, "leads").Return(leadColumns, nil)

	p, _ := newTestProvider(repo, DefaultConfig())
	ctx := context.Background()

	_, _ = p.DescribeTable(ctx, "leads")
	p.Invalidate("leads")
	_, _ = p.DescribeTable(ctx, "leads")
	repo.AssertNumberOfCalls(t, "DescribeTable", 2)

	p.Clear()
	assert.Equal(t, 0, p.Stats().Size)
}

func TestCachedProvider_CleanupExpired(t *testing.T) {
	repo := new(MockSchemaRepository)
	repo.On("DescribeTable", mock.Anything, mock.Anything).Return(leadColumns, nil)

	p, now := newTestProvider(repo, Config{TTL: time.Minute, MaxEntries: 8})
	ctx := context.Background()

	_, _ = p.DescribeTable(ctx, "a")
	*now = now.Add(45 * time.Second)
	_, _ = p.DescribeTable(ctx, "b")
	*now = now.Add(30 * time.Second)

	assert.Equal(t, 1, p.cache.cleanupExpired())
	assert.Equal(t, 1, p.Stats().Size)
}

func TestCachedProvider_CleanupWorkerStops(t *testing.T) {
	p := NewCachedProvider(new(MockSchemaRepository), zap.NewNop(), DefaultConfig())
	stop := make(chan struct{})
	done := make(chan struct{})

	go func() {
		p.StartCleanupWorker(time.Millisecond, stop)
		close(done)
	}()

	close(stop)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup worker did not stop")
	}
}

func TestNewCachedProvider_Defaults(t *testing.T) {
	p := NewCachedProvider(new(MockSchemaRepository), zap.NewNop(), Config{})
	assert.Equal(t, 64, p.Stats().MaxSize)
	assert.Equal(t, time.Minute, p.cache.ttl)
}
