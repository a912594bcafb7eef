package document

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	doc "github.com/nimburion/docstore/pkg/document"
	"github.com/nimburion/docstore/pkg/observability/logger"
	"github.com/nimburion/docstore/pkg/repository"
	"github.com/nimburion/docstore/pkg/store/mongodb"
	"github.com/nimburion/docstore/pkg/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func startMongo(t *testing.T) *mongodb.Adapter {
	t.Helper()
	testutil.RequireIntegration(t)

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        testutil.EnvOrDefault("DOCSTORE_TEST_MONGO_IMAGE", "mongo:7"),
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForListeningPort("27017/tcp").WithStartupTimeout(90 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "27017/tcp")
	require.NoError(t, err)

	adapter, err := mongodb.NewAdapter(mongodb.Config{
		URL:              fmt.Sprintf("mongodb://%s:%s", host, port.Port()),
		Database:         "docstore_it",
		ConnectTimeout:   20 * time.Second,
		OperationTimeout: 5 * time.Second,
	}, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = adapter.Close() })
	return adapter
}

func TestMongoRepository_Integration(t *testing.T) {
	adapter := startMongo(t)
	ctx := context.Background()

	bindings := doc.NewBindings()
	require.NoError(t, doc.Bind[*testBook](bindings, "books_it"))
	repo, err := NewMongoRepository[*testBook](adapter, bindings)
	require.NoError(t, err)

	for _, b := range numberedBooks(25) {
		require.NoError(t, repo.Insert(ctx, b))
	}

	t.Run("insert assigns id and round-trips", func(t *testing.T) {
		b := &testBook{Title: "Anna Karenina", Author: "Tolstoy"}
		require.NoError(t, repo.Insert(ctx, b))
		require.NotEmpty(t, b.ID)

		got, err := repo.GetByID(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, b, got)

		require.NoError(t, repo.DeleteByID(ctx, b.ID))
		assert.ErrorIs(t, repo.DeleteByID(ctx, b.ID), repository.ErrNotFound)
	})

	t.Run("duplicate insert", func(t *testing.T) {
		err := repo.Insert(ctx, &testBook{ID: "doc-01", Title: "dup"})
		assert.ErrorIs(t, err, repository.ErrIntegrity)
	})

	t.Run("page three of ten", func(t *testing.T) {
		page, err := repo.PaginateByFilter(ctx, repository.PageRequest{
			Page: 3, PageSize: 10, SortField: "_id", SortDirection: repository.SortAsc,
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"doc-21", "doc-22", "doc-23", "doc-24", "doc-25"}, ids(page.Items))
		assert.EqualValues(t, 25, page.TotalRows)
		assert.EqualValues(t, 3, page.TotalPages)
	})

	t.Run("descending sort reverses ascending", func(t *testing.T) {
		asc, err := repo.PaginateByFilter(ctx, repository.PageRequest{Page: 1, PageSize: 25, SortField: "year", SortDirection: repository.SortAsc})
		require.NoError(t, err)
		desc, err := repo.PaginateByFilter(ctx, repository.PageRequest{Page: 1, PageSize: 25, SortField: "year", SortDirection: repository.SortDesc})
		require.NoError(t, err)

		reversed := ids(desc.Items)
		for i, j := 0, len(reversed)-1; i < j; i, j = i+1, j-1 {
			reversed[i], reversed[j] = reversed[j], reversed[i]
		}
		assert.Equal(t, ids(asc.Items), reversed)
	})

	t.Run("case-insensitive substring filter", func(t *testing.T) {
		require.NoError(t, repo.Insert(ctx, &testBook{ID: "f-1", Title: "Anna"}))
		require.NoError(t, repo.Insert(ctx, &testBook{ID: "f-2", Title: "ANNUAL report"}))
		require.NoError(t, repo.Insert(ctx, &testBook{ID: "f-3", Title: "Bob"}))

		page, err := repo.PaginateByFilter(ctx, repository.PageRequest{
			Page: 1, PageSize: 10, SortField: "_id", SortDirection: repository.SortAsc,
			FilterField: "title", FilterValue: "ann",
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"f-1", "f-2"}, ids(page.Items))
		assert.EqualValues(t, 2, page.TotalRows)
	})

	t.Run("expression pagination", func(t *testing.T) {
		page, err := repo.PaginateWithExpression(ctx, bson.M{"year": bson.M{"$gt": 2020}}, repository.PageRequest{
			Page: 1, PageSize: 2, SortField: "year", SortDirection: repository.SortAsc,
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"doc-21", "doc-22"}, ids(page.Items))
		assert.EqualValues(t, 5, page.TotalRows)
		assert.EqualValues(t, 3, page.TotalPages)
	})

	t.Run("update replaces the whole document", func(t *testing.T) {
		require.NoError(t, repo.Update(ctx, &testBook{ID: "doc-02", Title: "Rewritten"}))
		got, err := repo.GetByID(ctx, "doc-02")
		require.NoError(t, err)
		assert.Equal(t, &testBook{ID: "doc-02", Title: "Rewritten"}, got)

		err = repo.Update(ctx, &testBook{ID: "missing", Title: "x"})
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("concurrent paginations stay isolated", func(t *testing.T) {
		filters := []string{"Title 1", "Title 2"}
		results := make([][]string, len(filters))
		var wg sync.WaitGroup
		for i, f := range filters {
			wg.Add(1)
			go func() {
				defer wg.Done()
				page, err := repo.PaginateByFilter(ctx, repository.PageRequest{
					Page: 1, PageSize: 20, SortField: "_id", SortDirection: repository.SortAsc,
					FilterField: "title", FilterValue: f,
				})
				if assert.NoError(t, err) {
					results[i] = ids(page.Items)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, []string{"doc-10", "doc-11", "doc-12", "doc-13", "doc-14", "doc-15", "doc-16", "doc-17", "doc-18", "doc-19"}, results[0])
		assert.Equal(t, []string{"doc-20", "doc-21", "doc-22", "doc-23", "doc-24", "doc-25"}, results[1])
	})
}

func TestMongoRepository_ObjectIDKeys(t *testing.T) {
	adapter := startMongo(t)
	ctx := context.Background()

	bindings := doc.NewBindings()
	require.NoError(t, doc.Bind[*testBook](bindings, "books_oid"))
	repo, err := NewMongoRepository[*testBook](adapter, bindings)
	require.NoError(t, err)

	oid := primitive.NewObjectID()
	_, err = adapter.Collection("books_oid").InsertOne(ctx, bson.M{"_id": oid, "title": "Written elsewhere", "author": "Ext"})
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, oid.Hex())
	require.NoError(t, err)
	assert.Equal(t, &testBook{ID: oid.Hex(), Title: "Written elsewhere", Author: "Ext"}, got)

	require.NoError(t, repo.Update(ctx, &testBook{ID: oid.Hex(), Title: "Rewritten"}))
	var stored bson.M
	require.NoError(t, adapter.Collection("books_oid").FindOne(ctx, bson.M{"_id": oid}).Decode(&stored))
	assert.Equal(t, oid, stored["_id"])
	assert.Equal(t, "Rewritten", stored["title"])

	require.NoError(t, repo.DeleteByID(ctx, oid.Hex()))
	_, err = repo.GetByID(ctx, oid.Hex())
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
