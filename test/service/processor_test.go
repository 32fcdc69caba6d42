package service_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/solenhart/docingest/internal/ingest"
	"github.com/solenhart/docingest/internal/model"
	appErr "github.com/solenhart/docingest/internal/pkg/errors"
	"github.com/solenhart/docingest/internal/repo"
	"github.com/solenhart/docingest/internal/service"
	"github.com/solenhart/docingest/internal/vector"
	"github.com/solenhart/docingest/test/testutil"
)

// fakeVectorStore records the call order so tests can assert the
// delete-then-insert contract.
type fakeVectorStore struct {
	mu      sync.Mutex
	calls   []string
	addedBy map[string][]string
	addErr  error
}

func newFakeVectorStore() *fakeVectorStore {
	return &fakeVectorStore{addedBy: make(map[string][]string)}
}

func (f *fakeVectorStore) AddDocuments(_ context.Context, texts []string, metas []vector.Meta, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "add")
	if f.addErr != nil {
		return f.addErr
	}
	for i := range ids {
		f.addedBy[metas[i].DocumentID] = append(f.addedBy[metas[i].DocumentID], ids[i])
	}
	return nil
}

func (f *fakeVectorStore) DeleteDocument(_ context.Context, documentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "delete")
	delete(f.addedBy, documentID)
	return nil
}

func (f *fakeVectorStore) Search(context.Context, string, int) ([]vector.Match, error) {
	return nil, nil
}

func (f *fakeVectorStore) callOrder() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeVectorStore) idsFor(docID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.addedBy[docID]...)
}

type processorFixture struct {
	docs      *repo.DocumentRepo
	chunks    *repo.ChunkRepo
	store     *fakeVectorStore
	processor *service.Processor
	uploadDir string
}

func newProcessorFixture(t *testing.T, store *fakeVectorStore) *processorFixture {
	t.Helper()
	db, cleanup := testutil.OpenTestDB(t)
	t.Cleanup(cleanup)

	docs := repo.NewDocumentRepo(db)
	chunks := repo.NewChunkRepo(db)
	var vectors vector.Store
	if store != nil {
		vectors = store
	}
	processor := service.NewProcessor(docs, chunks, ingest.NewPipeline(nil), vectors, nil, service.ProcessorOptions{
		ChunkSize:       200,
		ChunkOverlap:    40,
		AutoRename:      true,
		CheckDuplicates: true,
		MaxFilenameLen:  80,
	})
	return &processorFixture{
		docs:      docs,
		chunks:    chunks,
		store:     store,
		processor: processor,
		uploadDir: t.TempDir(),
	}
}

// registerDocument stores a real text file and its uploaded-state row, the
// shape a document has right after upload.
func (fx *processorFixture) registerDocument(t *testing.T, name, content string) *model.Document {
	t.Helper()
	path := filepath.Join(fx.uploadDir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	hash, err := ingest.ContentHash(path)
	require.NoError(t, err)
	doc := &model.Document{
		ID:               uuid.NewString(),
		OriginalFilename: name,
		StoredFilename:   name,
		FilePath:         path,
		FileType:         "txt",
		FileSize:         int64(len(content)),
		ContentHash:      hash,
		Status:           model.DocStatusUploaded,
		ProcessingStatus: model.ProcStatusPending,
		Ctime:            time.Now().Unix(),
	}
	require.NoError(t, fx.docs.Create(context.Background(), doc))
	t.Cleanup(func() { _ = fx.docs.Delete(context.Background(), doc.ID) })
	return doc
}

func TestProcessorRunCompletes(t *testing.T) {
	store := newFakeVectorStore()
	fx := newProcessorFixture(t, store)
	content := "Migration Plan Overview\nStep one moves the data. Step two flips the traffic. Step three retires the old cluster. Id " + uuid.NewString() + "."
	doc := fx.registerDocument(t, "migration_plan.txt", content)

	require.NoError(t, fx.processor.Run(context.Background(), doc.ID, false))

	done, err := fx.docs.GetByID(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Equal(t, model.DocStatusCompleted, done.Status)
	require.Equal(t, model.ProcStatusCompleted, done.ProcessingStatus)
	require.Equal(t, "Migration Plan Overview", done.Title)
	require.NotZero(t, done.ProcessedAt)
	require.Positive(t, done.TotalChunks)
	require.Positive(t, done.WordCount)

	rows, err := fx.chunks.ListByDocument(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Len(t, rows, done.TotalChunks)

	ids := store.idsFor(doc.ID)
	require.Len(t, ids, done.TotalChunks)
	require.Equal(t, vector.ChunkVectorID(doc.ID, 0), ids[0])
	// old vectors are always cleared before the new ones land
	require.Equal(t, []string{"delete", "add"}, store.callOrder())
}

func TestProcessorPersistsRenameAndExtractorMetadata(t *testing.T) {
	fx := newProcessorFixture(t, newFakeVectorStore())
	content := "Quarterly Latency Report\nservice, p99_ms\ncheckout, 412\nsearch, 87\nid, " + uuid.NewString() + "\n"
	doc := fx.registerDocument(t, "export_001.csv", content)

	require.NoError(t, fx.processor.Run(context.Background(), doc.ID, false))

	done, err := fx.docs.GetByID(context.Background(), doc.ID)
	require.NoError(t, err)
	require.True(t, done.WasRenamed)
	require.NotEmpty(t, done.RenameReason)
	require.Equal(t, "Quarterly_Latency_Report.csv", done.StoredFilename)
	// extractor meta rides along untouched
	require.Equal(t, "Quarterly Latency Report", done.Metadata["header"])
}

func TestProcessorKeepsMeaningfulNameUnrenamed(t *testing.T) {
	fx := newProcessorFixture(t, newFakeVectorStore())
	content := "Oncall Handover Notes\nThe pager is quiet. Two tickets carry over. Id " + uuid.NewString() + "."
	doc := fx.registerDocument(t, "oncall_handover_week12.txt", content)

	require.NoError(t, fx.processor.Run(context.Background(), doc.ID, false))

	done, err := fx.docs.GetByID(context.Background(), doc.ID)
	require.NoError(t, err)
	require.False(t, done.WasRenamed)
	require.Empty(t, done.RenameReason)
	require.Equal(t, "oncall_handover_week12.txt", done.StoredFilename)
}

func TestProcessorIndexingFailureSettlesNoVectors(t *testing.T) {
	store := newFakeVectorStore()
	store.addErr = errors.New("vector service down")
	fx := newProcessorFixture(t, store)
	content := "Capacity Planning Notes\nThe cluster holds steady. Disk usage grows slowly. Id " + uuid.NewString() + "."
	doc := fx.registerDocument(t, "capacity_notes_2025.txt", content)

	require.NoError(t, fx.processor.Run(context.Background(), doc.ID, false))

	done, err := fx.docs.GetByID(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Equal(t, model.DocStatusCompletedNoVectors, done.Status)
	require.Equal(t, model.ProcStatusCompleted, done.ProcessingStatus)
	require.Empty(t, done.ErrorMessage)

	// extraction work is not wasted: chunk rows are still there
	rows, err := fx.chunks.ListByDocument(context.Background(), doc.ID)
	require.NoError(t, err)
	require.NotEmpty(t, rows)
}

func TestProcessorWithoutVectorStoreSettlesNoVectors(t *testing.T) {
	fx := newProcessorFixture(t, nil)
	content := "Incident Review Summary\nThe outage lasted nine minutes. Alerting fired late. Id " + uuid.NewString() + "."
	doc := fx.registerDocument(t, "incident_review_draft2.txt", content)

	require.NoError(t, fx.processor.Run(context.Background(), doc.ID, false))

	done, err := fx.docs.GetByID(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Equal(t, model.DocStatusCompletedNoVectors, done.Status)
	require.Equal(t, model.ProcStatusCompleted, done.ProcessingStatus)
}

func TestProcessorEmptyContentFails(t *testing.T) {
	fx := newProcessorFixture(t, newFakeVectorStore())
	doc := fx.registerDocument(t, "blank_upload.txt", "   \n \t ")

	err := fx.processor.Run(context.Background(), doc.ID, false)
	require.ErrorIs(t, err, appErr.ErrEmptyContent)

	done, getErr := fx.docs.GetByID(context.Background(), doc.ID)
	require.NoError(t, getErr)
	require.Equal(t, model.DocStatusFailed, done.Status)
	require.Equal(t, model.ProcStatusFailed, done.ProcessingStatus)
	require.NotEmpty(t, done.ErrorMessage)

	rows, err := fx.chunks.ListByDocument(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestProcessorReentrancyGuard(t *testing.T) {
	fx := newProcessorFixture(t, newFakeVectorStore())
	content := "Deployment Checklist Items\nCheck the migrations. Check the flags. Id " + uuid.NewString() + "."
	doc := fx.registerDocument(t, "deployment_checklist.txt", content)

	require.NoError(t, fx.docs.SetProcessing(context.Background(), doc.ID))
	err := fx.processor.Run(context.Background(), doc.ID, false)
	require.ErrorIs(t, err, appErr.ErrAlreadyProcessing)

	// force recovers a document stuck in processing
	require.NoError(t, fx.processor.Run(context.Background(), doc.ID, true))
	done, err := fx.docs.GetByID(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Equal(t, model.DocStatusCompleted, done.Status)
}

func TestProcessorReprocessReplacesChunksAndVectors(t *testing.T) {
	store := newFakeVectorStore()
	fx := newProcessorFixture(t, store)
	content := "Retention Policy Update\nLogs keep for thirty days. Metrics keep for one year. Id " + uuid.NewString() + "."
	doc := fx.registerDocument(t, "retention_policy.txt", content)

	require.NoError(t, fx.processor.Run(context.Background(), doc.ID, false))
	firstRows, err := fx.chunks.ListByDocument(context.Background(), doc.ID)
	require.NoError(t, err)

	require.NoError(t, fx.processor.Run(context.Background(), doc.ID, false))
	secondRows, err := fx.chunks.ListByDocument(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Len(t, secondRows, len(firstRows))
	for i := range secondRows {
		require.Equal(t, i, secondRows[i].ChunkIndex)
	}

	// two full cycles, each delete-then-insert, never merge
	require.Equal(t, []string{"delete", "add", "delete", "add"}, store.callOrder())
	require.Len(t, store.idsFor(doc.ID), len(secondRows))
}

func TestProcessorRetryIndexing(t *testing.T) {
	store := newFakeVectorStore()
	fx := newProcessorFixture(t, store)
	content := "Access Review Findings\nTwo stale accounts remain. One key needs rotation. Id " + uuid.NewString() + "."
	doc := fx.registerDocument(t, "access_review_q1.txt", content)

	require.NoError(t, fx.chunks.InsertBatch(context.Background(), []model.Chunk{
		{DocumentID: doc.ID, ChunkIndex: 0, Content: "Two stale accounts remain.", WordCount: 4, CharCount: 26, SentenceCount: 1, Ctime: time.Now().Unix()},
		{DocumentID: doc.ID, ChunkIndex: 1, Content: "One key needs rotation.", WordCount: 4, CharCount: 23, SentenceCount: 1, Ctime: time.Now().Unix()},
	}))
	require.NoError(t, fx.docs.SetStatus(context.Background(), doc.ID, model.DocStatusCompletedNoVectors, model.ProcStatusCompleted))

	require.NoError(t, fx.processor.RetryIndexing(context.Background(), doc.ID))

	done, err := fx.docs.GetByID(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Equal(t, model.DocStatusCompleted, done.Status)
	require.Len(t, store.idsFor(doc.ID), 2)

	// only completed_no_vectors documents qualify
	require.ErrorIs(t, fx.processor.RetryIndexing(context.Background(), doc.ID), appErr.ErrInvalid)
}
