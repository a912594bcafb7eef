package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewRegistry(t *testing.T) {
	registry := NewRegistry()

	if registry == nil {
		t.Fatal("NewRegistry returned nil")
	}
	if registry.registry == nil {
		t.Fatal("registry.registry is nil")
	}
}

func TestRegistry_WriteToTextfile(t *testing.T) {
	registry := NewRegistry()
	RecordRepositoryOperation("textfile_books", "PaginateByFilter", OutcomeOK, time.Millisecond)
	RecordCacheResult("textfile_books", CacheHit)

	path := filepath.Join(t.TempDir(), "docstore.prom")
	if err := registry.WriteToTextfile(path); err != nil {
		t.Fatalf("WriteToTextfile() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	if !strings.Contains(string(data), `collection="textfile_books"`) {
		t.Errorf("expected textfile_books series in output, got:\n%s", data)
	}
	for _, metric := range []string{
		"docstore_repository_operation_duration_seconds",
		"docstore_repository_operations_total",
		"docstore_cache_results_total",
		"go_goroutines",
	} {
		if !strings.Contains(string(data), metric) {
			t.Errorf("expected metric %s in output", metric)
		}
	}
}

func TestRecordRepositoryOperation(t *testing.T) {
	before := testutil.ToFloat64(repositoryOperationsTotal.WithLabelValues("record_books", "Insert", OutcomeError))

	RecordRepositoryOperation("record_books", "Insert", OutcomeError, 10*time.Millisecond)
	RecordRepositoryOperation("record_books", "Insert", OutcomeError, 20*time.Millisecond)

	after := testutil.ToFloat64(repositoryOperationsTotal.WithLabelValues("record_books", "Insert", OutcomeError))
	if after-before != 2 {
		t.Fatalf("counter delta = %v, want 2", after-before)
	}
	if n := testutil.CollectAndCount(repositoryOperationDuration, "docstore_repository_operation_duration_seconds"); n == 0 {
		t.Fatal("expected histogram series")
	}
}

func TestRecordCacheResult(t *testing.T) {
	RecordCacheResult("cache_books", CacheMiss)
	RecordCacheResult("cache_books", CacheMiss)
	RecordCacheResult("cache_books", CacheHit)

	if got := testutil.ToFloat64(cacheResultsTotal.WithLabelValues("cache_books", CacheMiss)); got != 2 {
		t.Fatalf("misses = %v, want 2", got)
	}
	if got := testutil.ToFloat64(cacheResultsTotal.WithLabelValues("cache_books", CacheHit)); got != 1 {
		t.Fatalf("hits = %v, want 1", got)
	}
}
