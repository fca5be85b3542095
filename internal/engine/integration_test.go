package engine

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veldtdata/unisearch/internal/backend"
)

// scriptedSession drives the real Elasticsearch backend end to end.
type scriptedSession struct {
	stackWideErr error
	hitsByIndex  map[string][]backend.IndexHit
	buckets      []string
}

func (s *scriptedSession) Search(_ context.Context, q backend.IndexQuery) ([]backend.IndexHit, error) {
	if len(q.Indices) == 1 && q.Indices[0] == "*" {
		if s.stackWideErr != nil {
			return nil, s.stackWideErr
		}
		var all []backend.IndexHit
		for _, hits := range s.hitsByIndex {
			all = append(all, hits...)
		}
		return all, nil
	}
	return s.hitsByIndex[q.Indices[0]], nil
}

func (s *scriptedSession) ListBuckets(context.Context) ([]string, error) {
	return s.buckets, nil
}

func (s *scriptedSession) Ping(context.Context) error { return nil }

func TestIntegration_GraphQLDown_ElasticsearchFallbackServes(t *testing.T) {
	// GraphQL endpoint is dead; the stack-wide index query is denied, so
	// the search must be served by the per-bucket fallback and still
	// succeed from the caller's perspective.
	session := &scriptedSession{
		stackWideErr: fmt.Errorf("error 403"),
		buckets:      []string{"bucket-a", "bucket-b"},
		hitsByIndex: map[string][]backend.IndexHit{
			"bucket-a": {{ID: "a1", Index: "bucket-a", Score: 1.0, Key: "data/a1.csv"}},
			"bucket-b": {{ID: "b1", Index: "bucket-b", Score: 2.5, Key: "data/b1.csv"}},
		},
	}
	es := backend.NewElasticsearchBackend(session)
	gql := backend.NewGraphQLBackend("http://127.0.0.1:1/graphql", "")

	e := New(backend.NewRegistry([]backend.SearchBackend{es, gql}), DefaultConfig())

	result := e.Search(context.Background(), Params{Query: "find csv files", Scope: "catalog"})

	require.True(t, result.Success, "fallback results must be returned, not the 403")
	assert.Equal(t, "elasticsearch", result.BackendUsed)
	require.Len(t, result.Results, 2)
	assert.Equal(t, "b1", result.Results[0].ID)
}

func TestIntegration_GraphQLPrimaryServesPackages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data": {"searchPackages": {"hits": [
			{"id": "p1", "score": 2.0, "bucket": "bucket-a", "name": "team/genomics", "comment": "study"}
		]}}}`))
	}))
	defer srv.Close()

	session := &scriptedSession{hitsByIndex: map[string][]backend.IndexHit{}}
	es := backend.NewElasticsearchBackend(session)
	gql := backend.NewGraphQLBackend(srv.URL, "token")

	e := New(backend.NewRegistry([]backend.SearchBackend{es, gql}), DefaultConfig())

	result := e.Search(context.Background(), Params{Query: "packages about genomics"})

	require.True(t, result.Success)
	assert.Equal(t, "graphql", result.BackendUsed, "graphql preferred when both are available")
	require.Len(t, result.Results, 1)
	assert.Equal(t, backend.KindPackage, result.Results[0].Kind)
}

func TestIntegration_NetworkErrorIsExplicitFailure(t *testing.T) {
	session := &scriptedSession{stackWideErr: fmt.Errorf("Network timeout")}
	es := backend.NewElasticsearchBackend(session)
	gql := backend.NewGraphQLBackend("http://127.0.0.1:1/graphql", "")

	e := New(backend.NewRegistry([]backend.SearchBackend{es, gql}), DefaultConfig())

	result := e.Search(context.Background(), Params{Query: "q", Scope: "global"})

	require.False(t, result.Success)
	assert.Contains(t, result.Error, "Network timeout")
	assert.Empty(t, result.Results)
	require.NotNil(t, result.BackendStatus)
	assert.Equal(t, "error", result.BackendStatus.Status)
}
