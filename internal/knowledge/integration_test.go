package knowledge

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hades-kb/hades/internal/chunk"
	"github.com/hades-kb/hades/internal/testutil"
)

// Integration tests run the full pipeline against a pgvector container.
// The embedder is a deterministic fake with hand-picked vectors so
// similarity scores are exact and ranking is under test control.

type integrationEnv struct {
	tdb        *testutil.TestDBContainer
	embedder   *testutil.StaticEmbedder
	docStore   *DocumentStore
	slackStore *SlackStore
	documents  *DocumentClient
	slack      *SlackClient
}

func setupIntegration(t *testing.T) *integrationEnv {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-backed integration test in short mode")
	}

	tdb, cleanup := testutil.SetupTestDB(t)
	t.Cleanup(cleanup)

	logger := testutil.DiscardLogger()
	embedder := testutil.NewStaticEmbedder(int(VectorDimension))
	chunker := chunk.New(logger)

	docStore, err := NewDocumentStore(tdb.Pool, logger)
	require.NoError(t, err)
	slackStore, err := NewSlackStore(tdb.Pool, logger)
	require.NoError(t, err)

	documents, err := NewDocumentClient(docStore, embedder, chunker, logger)
	require.NoError(t, err)
	slack, err := NewSlackClient(slackStore, embedder, chunker, logger)
	require.NoError(t, err)

	return &integrationEnv{
		tdb:        tdb,
		embedder:   embedder,
		docStore:   docStore,
		slackStore: slackStore,
		documents:  documents,
		slack:      slack,
	}
}

// sparseVector builds a dimension-length vector with the given
// components set; everything else is zero. Inner products between
// sparse vectors are then trivial to compute by hand.
func sparseVector(components map[int]float32) []float32 {
	v := make([]float32, int(VectorDimension))
	for i, w := range components {
		v[i] = w
	}
	return v
}

func TestDocumentIngestSearchRoundTrip(t *testing.T) {
	env := setupIntegration(t)
	ctx := context.Background()

	coll, err := env.documents.CreateCollection(ctx, "runbooks", "operational runbooks")
	require.NoError(t, err)

	// One chunk per document; the chunker lower-cases before embedding.
	env.embedder.Register("kubernetes pod scheduling basics", sparseVector(map[int]float32{0: 1}))
	env.embedder.Register("postgres vacuum tuning notes", sparseVector(map[int]float32{1: 1}))
	env.embedder.Register("how are pods scheduled?", sparseVector(map[int]float32{0: 0.8, 1: 0.6}))

	docA, err := env.documents.Ingest(ctx, DocumentIngestParams{
		FileName:     "k8s.md",
		StoragePath:  "/docs/k8s.md",
		FileType:     "md",
		Content:      "Kubernetes Pod Scheduling Basics",
		CollectionID: coll.ID,
	})
	require.NoError(t, err)

	docB, err := env.documents.Ingest(ctx, DocumentIngestParams{
		FileName:     "vacuum.md",
		StoragePath:  "/docs/vacuum.md",
		FileType:     "md",
		Content:      "Postgres Vacuum Tuning Notes",
		CollectionID: coll.ID,
	})
	require.NoError(t, err)

	results, err := env.documents.Search(ctx, DocumentSearchParams{
		Query:         "How are Pods scheduled?",
		CollectionIDs: []string{coll.ID},
		Threshold:     0.5,
		Limit:         10,
	})
	require.NoError(t, err)
	require.Len(t, results, 2)

	// Ranked by sign-corrected inner product: 0.8 then 0.6.
	assert.Equal(t, docA.ID, results[0].Document.ID)
	assert.InDelta(t, 0.8, results[0].Similarity, 1e-6)
	assert.Equal(t, "/docs/k8s.md", results[0].Document.StoragePath)
	assert.Equal(t, "kubernetes pod scheduling basics", results[0].Snippet)

	assert.Equal(t, docB.ID, results[1].Document.ID)
	assert.InDelta(t, 0.6, results[1].Similarity, 1e-6)

	// A tighter threshold drops the weaker match.
	results, err = env.documents.Search(ctx, DocumentSearchParams{
		Query:         "How are Pods scheduled?",
		CollectionIDs: []string{coll.ID},
		Threshold:     0.7,
		Limit:         10,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, docA.ID, results[0].Document.ID)

	// A collection with no documents yields nothing, as does an
	// unscoped search.
	empty, err := env.documents.CreateCollection(ctx, "empty", "")
	require.NoError(t, err)
	results, err = env.documents.Search(ctx, DocumentSearchParams{
		Query:         "How are Pods scheduled?",
		CollectionIDs: []string{empty.ID},
		Threshold:     0.5,
	})
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = env.documents.Search(ctx, DocumentSearchParams{
		Query:     "How are Pods scheduled?",
		Threshold: 0.5,
	})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestDocumentSearchSoftDeleteScoping(t *testing.T) {
	env := setupIntegration(t)
	ctx := context.Background()

	coll, err := env.documents.CreateCollection(ctx, "scoping", "")
	require.NoError(t, err)

	env.embedder.Register("incident response checklist", sparseVector(map[int]float32{2: 1}))
	env.embedder.Register("incident checklist", sparseVector(map[int]float32{2: 0.9}))

	doc, err := env.documents.Ingest(ctx, DocumentIngestParams{
		FileName:     "incidents.md",
		StoragePath:  "/docs/incidents.md",
		FileType:     "md",
		Content:      "Incident Response Checklist",
		CollectionID: coll.ID,
	})
	require.NoError(t, err)

	search := func() []DocumentResult {
		t.Helper()
		results, err := env.documents.Search(ctx, DocumentSearchParams{
			Query:         "incident checklist",
			CollectionIDs: []string{coll.ID},
			Threshold:     0.5,
		})
		require.NoError(t, err)
		return results
	}

	require.Len(t, search(), 1)

	// Inactive mapping: removed from the collection.
	require.NoError(t, env.documents.RemoveFromCollection(ctx, coll.ID, doc.ID))
	assert.Empty(t, search())

	// Reactivated by mapping upsert.
	require.NoError(t, env.docStore.UpsertMapping(ctx, coll.ID, doc.ID))
	require.Len(t, search(), 1)

	// Inactive document.
	require.NoError(t, env.docStore.UpdateDocumentStatus(ctx, doc.ID, StatusInactive))
	assert.Empty(t, search())
	require.NoError(t, env.docStore.UpdateDocumentStatus(ctx, doc.ID, StatusActive))
	require.Len(t, search(), 1)

	// Inactive collection short-circuits before any vector work.
	inactive := StatusInactive
	_, err = env.documents.UpdateCollection(ctx, coll.ID, nil, nil, &inactive)
	require.NoError(t, err)
	assert.Empty(t, search())
}

func TestDocumentReingestInvalidatesEmbeddings(t *testing.T) {
	env := setupIntegration(t)
	ctx := context.Background()

	coll, err := env.documents.CreateCollection(ctx, "reingest", "")
	require.NoError(t, err)

	env.embedder.Register("old revision body", sparseVector(map[int]float32{3: 1}))
	env.embedder.Register("new revision body", sparseVector(map[int]float32{4: 1}))
	env.embedder.Register("old query", sparseVector(map[int]float32{3: 1}))
	env.embedder.Register("new query", sparseVector(map[int]float32{4: 1}))

	first, err := env.documents.Ingest(ctx, DocumentIngestParams{
		FileName:     "doc.md",
		StoragePath:  "/docs/doc.md",
		FileType:     "md",
		Content:      "Old Revision Body",
		CollectionID: coll.ID,
	})
	require.NoError(t, err)

	second, err := env.documents.Ingest(ctx, DocumentIngestParams{
		FileName:     "doc.md",
		StoragePath:  "/docs/doc.md",
		FileType:     "md",
		Content:      "New Revision Body",
		CollectionID: coll.ID,
	})
	require.NoError(t, err)

	// Same storage path reuses the document row.
	assert.Equal(t, first.ID, second.ID)

	results, err := env.documents.Search(ctx, DocumentSearchParams{
		Query:         "old query",
		CollectionIDs: []string{coll.ID},
		Threshold:     0.5,
	})
	require.NoError(t, err)
	assert.Empty(t, results, "superseded chunks must not match")

	results, err = env.documents.Search(ctx, DocumentSearchParams{
		Query:         "new query",
		CollectionIDs: []string{coll.ID},
		Threshold:     0.5,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "new revision body", results[0].Snippet)

	// The old chunk is still on disk, flipped to inactive.
	var inactiveCount int
	err = env.tdb.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM document_embeddings WHERE document_id = $1 AND status = 'inactive'`,
		first.ID,
	).Scan(&inactiveCount)
	require.NoError(t, err)
	assert.Equal(t, 1, inactiveCount)
}

func TestCollectionLifecycle(t *testing.T) {
	env := setupIntegration(t)
	ctx := context.Background()

	coll, err := env.documents.CreateCollection(ctx, "lifecycle", "initial description")
	require.NoError(t, err)
	assert.Equal(t, StatusActive, coll.Status)

	got, err := env.documents.GetCollection(ctx, coll.ID)
	require.NoError(t, err)
	assert.Equal(t, coll.ID, got.ID)
	assert.Equal(t, "lifecycle", got.Name)

	name := "renamed"
	desc := "updated description"
	updated, err := env.documents.UpdateCollection(ctx, coll.ID, &name, &desc, nil)
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Name)
	assert.Equal(t, "updated description", updated.Description)
	assert.Equal(t, StatusActive, updated.Status, "nil status leaves status unchanged")

	inactive := StatusInactive
	updated, err = env.documents.UpdateCollection(ctx, coll.ID, nil, nil, &inactive)
	require.NoError(t, err)
	assert.Equal(t, StatusInactive, updated.Status)

	active, err := env.documents.ListCollections(ctx, StatusActive)
	require.NoError(t, err)
	for _, c := range active {
		assert.NotEqual(t, coll.ID, c.ID, "deactivated collection must not list as active")
	}

	all, err := env.documents.ListCollections(ctx, "")
	require.NoError(t, err)
	found := false
	for _, c := range all {
		if c.ID == coll.ID {
			found = true
		}
	}
	assert.True(t, found, "deactivated collection still exists")

	_, err = env.documents.GetCollection(ctx, "no-such-collection")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = env.documents.UpdateCollection(ctx, "no-such-collection", &name, nil, nil)
	assert.ErrorIs(t, err, ErrNotFound)

	err = env.documents.RemoveFromCollection(ctx, coll.ID, 424242)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSlackIngestSearchRoundTrip(t *testing.T) {
	env := setupIntegration(t)
	ctx := context.Background()

	env.embedder.Register("deploy rollback discussion", sparseVector(map[int]float32{0: 1}))
	env.embedder.Register("database failover runthrough", sparseVector(map[int]float32{1: 1}))
	env.embedder.Register("lunch plans", sparseVector(map[int]float32{2: 1}))
	env.embedder.Register("how do we roll back a deploy?", sparseVector(map[int]float32{0: 0.9, 1: 0.7, 2: 0.3}))

	threads := []SlackIngestParams{
		{ChannelID: "C01", ThreadTS: "1724900000.000100", Summary: "Deploy Rollback Discussion",
			History: []SlackChatEntry{{User: "U01", Text: "rolling back now"}}},
		{ChannelID: "C01", ThreadTS: "1724900000.000200", Summary: "Database Failover Runthrough"},
		{ChannelID: "C02", ThreadTS: "1724900000.000300", Summary: "Lunch Plans"},
	}
	var ingested []*SlackMessage
	for _, p := range threads {
		msg, err := env.slack.Ingest(ctx, p)
		require.NoError(t, err)
		assert.True(t, msg.IsEmbedded)
		ingested = append(ingested, msg)
	}

	page1, err := env.slack.Search(ctx, SlackSearchParams{
		Query:     "How do we roll back a deploy?",
		Threshold: 0.5,
		Limit:     10,
		Page:      1,
		PageSize:  10,
	})
	require.NoError(t, err)
	require.Len(t, page1.Results, 2, "threshold 0.5 keeps two of three threads")

	assert.Equal(t, ingested[0].ID, page1.Results[0].Message.ID)
	assert.InDelta(t, 0.9, page1.Results[0].Similarity, 1e-6)
	assert.Equal(t, ingested[1].ID, page1.Results[1].Message.ID)
	assert.InDelta(t, 0.7, page1.Results[1].Similarity, 1e-6)
	assert.Equal(t, "C01", page1.Results[0].Message.ChannelID)
	require.Len(t, page1.Results[0].Message.History, 1)
	assert.Equal(t, "rolling back now", page1.Results[0].Message.History[0].Text)

	assert.Equal(t, 1, page1.Pagination.CurrentPage)
	assert.Equal(t, 1, page1.Pagination.TotalPages)
	assert.Equal(t, 2, page1.Pagination.TotalItems)

	// Every search leaves an audit record with per-match scores.
	var queryText string
	var matchCount int
	var queryID int64
	err = env.tdb.Pool.QueryRow(ctx,
		`SELECT id, query_text, match_count FROM slack_query_records ORDER BY id DESC LIMIT 1`,
	).Scan(&queryID, &queryText, &matchCount)
	require.NoError(t, err)
	assert.Equal(t, "how do we roll back a deploy?", queryText)
	assert.Equal(t, 2, matchCount)

	rows, err := env.tdb.Pool.Query(ctx,
		`SELECT message_id, similarity FROM slack_query_mappings WHERE query_id = $1 ORDER BY similarity DESC`,
		queryID,
	)
	require.NoError(t, err)
	defer rows.Close()
	type mapping struct {
		messageID  int64
		similarity float64
	}
	var mappings []mapping
	for rows.Next() {
		var m mapping
		require.NoError(t, rows.Scan(&m.messageID, &m.similarity))
		mappings = append(mappings, m)
	}
	require.NoError(t, rows.Err())
	require.Len(t, mappings, 2)
	assert.Equal(t, ingested[0].ID, mappings[0].messageID)
	assert.InDelta(t, 0.9, mappings[0].similarity, 1e-6)
	assert.InDelta(t, 0.7, mappings[1].similarity, 1e-6)

	// Page 2 at size 1 returns the second-ranked thread only.
	page2, err := env.slack.Search(ctx, SlackSearchParams{
		Query:     "How do we roll back a deploy?",
		Threshold: 0.5,
		Limit:     10,
		Page:      2,
		PageSize:  1,
	})
	require.NoError(t, err)
	require.Len(t, page2.Results, 1)
	assert.Equal(t, ingested[1].ID, page2.Results[0].Message.ID)
	assert.Equal(t, 2, page2.Pagination.CurrentPage)
	assert.Equal(t, 2, page2.Pagination.TotalPages)
	assert.Equal(t, 2, page2.Pagination.TotalItems)
}

func TestSlackReingestAndDedup(t *testing.T) {
	env := setupIntegration(t)
	ctx := context.Background()

	msg, created, err := env.slackStore.UpsertMessage(ctx, "C03", "1724900000.000400", "first summary", nil)
	require.NoError(t, err)
	assert.True(t, created)

	// Two chunks of the same thread, both close to the query.
	best := sparseVector(map[int]float32{5: 1})
	near := sparseVector(map[int]float32{5: 0.9})
	_, err = env.slackStore.InsertEmbedding(ctx, msg.ID, best, 2, "chunk one")
	require.NoError(t, err)
	_, err = env.slackStore.InsertEmbedding(ctx, msg.ID, near, 2, "chunk two")
	require.NoError(t, err)

	matches, err := env.slackStore.QueryNearest(ctx, best, OperatorInnerProduct, 0.5, 10)
	require.NoError(t, err)
	require.Len(t, matches, 1, "a thread appears at most once per result set")
	assert.InDelta(t, 1.0, matches[0].Similarity, 1e-6, "dedup keeps the highest-ranked chunk")
	assert.Equal(t, "chunk one", matches[0].Snippet)
	assert.Len(t, matches[0].Vector, int(VectorDimension))

	// Re-upserting the same (channel, thread) reuses the row; the
	// ingest pipeline then retires the prior chunks.
	again, created, err := env.slackStore.UpsertMessage(ctx, "C03", "1724900000.000400", "second summary", nil)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, msg.ID, again.ID)
	assert.Equal(t, "second summary", again.Summary)

	retired, err := env.slackStore.InvalidateEmbeddings(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), retired)

	matches, err = env.slackStore.QueryNearest(ctx, best, OperatorInnerProduct, 0.5, 10)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestSlackAuditCapsMappings(t *testing.T) {
	env := setupIntegration(t)
	ctx := context.Background()

	// Seven matching threads; the audit trail records all seven in
	// match_count but persists at most five mapping rows.
	queryVec := make([]float32, int(VectorDimension))
	for i := 0; i < 7; i++ {
		ts := fmt.Sprintf("1724900000.%06d", 500+i)
		msg, _, err := env.slackStore.UpsertMessage(ctx, "C04", ts, "thread summary", nil)
		require.NoError(t, err)
		_, err = env.slackStore.InsertEmbedding(ctx, msg.ID, sparseVector(map[int]float32{i: 1}), 2, "thread chunk")
		require.NoError(t, err)
		queryVec[i] = float32(0.9) - float32(i)*0.05
	}
	env.embedder.Register("which threads match?", queryVec)

	page, err := env.slack.Search(ctx, SlackSearchParams{
		Query:     "Which Threads Match?",
		Threshold: 0.2,
		Limit:     20,
		PageSize:  20,
	})
	require.NoError(t, err)
	require.Len(t, page.Results, 7)

	var queryID int64
	var matchCount int
	err = env.tdb.Pool.QueryRow(ctx,
		`SELECT id, match_count FROM slack_query_records ORDER BY id DESC LIMIT 1`,
	).Scan(&queryID, &matchCount)
	require.NoError(t, err)
	assert.Equal(t, 7, matchCount)

	var mappingCount int
	err = env.tdb.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM slack_query_mappings WHERE query_id = $1`, queryID,
	).Scan(&mappingCount)
	require.NoError(t, err)
	assert.Equal(t, 5, mappingCount)
}

func TestInnerProductScoreMatchesStoreRanking(t *testing.T) {
	env := setupIntegration(t)
	ctx := context.Background()

	// Neither vector is normalized; the client-side score must still
	// agree with what the SQL expression computed for the ranking.
	stored := sparseVector(map[int]float32{0: 0.3, 1: -0.5, 2: 0.2})
	query := sparseVector(map[int]float32{0: 0.7, 1: 0.25, 2: -0.4})

	msg, _, err := env.slackStore.UpsertMessage(ctx, "C05", "1724900000.000600", "score check", nil)
	require.NoError(t, err)
	_, err = env.slackStore.InsertEmbedding(ctx, msg.ID, stored, 2, "score check chunk")
	require.NoError(t, err)

	matches, err := env.slackStore.QueryNearest(ctx, query, OperatorInnerProduct, -10, 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)

	// 0.3*0.7 + (-0.5)*0.25 + 0.2*(-0.4) = 0.005
	assert.InDelta(t, 0.005, matches[0].Similarity, 1e-4)
	assert.InDelta(t, matches[0].Similarity, InnerProductScore(query, matches[0].Vector), 1e-6)
}
