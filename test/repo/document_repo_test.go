package repo_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/solenhart/docingest/internal/model"
	appErr "github.com/solenhart/docingest/internal/pkg/errors"
	"github.com/solenhart/docingest/internal/repo"
	"github.com/solenhart/docingest/test/testutil"
)

func newTestDocument() *model.Document {
	id := uuid.NewString()
	return &model.Document{
		ID:               id,
		OriginalFilename: "report.txt",
		StoredFilename:   "report.txt",
		FilePath:         "/tmp/uploads/report.txt",
		FileType:         "txt",
		FileSize:         42,
		ContentHash:      "hash-" + id,
		Title:            "report",
		Status:           model.DocStatusUploaded,
		ProcessingStatus: model.ProcStatusPending,
		Ctime:            time.Now().Unix(),
	}
}

func TestDocumentRepoCreateAndGet(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	docs := repo.NewDocumentRepo(db)
	doc := newTestDocument()
	require.NoError(t, docs.Create(context.Background(), doc))
	defer func() { _ = docs.Delete(context.Background(), doc.ID) }()

	fetched, err := docs.GetByID(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Equal(t, doc.OriginalFilename, fetched.OriginalFilename)
	require.Equal(t, doc.ContentHash, fetched.ContentHash)
	require.Equal(t, model.DocStatusUploaded, fetched.Status)

	byHash, err := docs.GetByHash(context.Background(), doc.ContentHash)
	require.NoError(t, err)
	require.Equal(t, doc.ID, byHash.ID)

	_, err = docs.GetByID(context.Background(), "no-such-id")
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestDocumentRepoContentHashUnique(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	docs := repo.NewDocumentRepo(db)
	first := newTestDocument()
	require.NoError(t, docs.Create(context.Background(), first))
	defer func() { _ = docs.Delete(context.Background(), first.ID) }()

	second := newTestDocument()
	second.ContentHash = first.ContentHash
	err := docs.Create(context.Background(), second)
	require.ErrorIs(t, err, appErr.ErrConflict)
}

func TestDocumentRepoStatusTransitions(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	docs := repo.NewDocumentRepo(db)
	doc := newTestDocument()
	require.NoError(t, docs.Create(context.Background(), doc))
	defer func() { _ = docs.Delete(context.Background(), doc.ID) }()

	// the CAS guard: only one claim from uploaded may win
	updated, err := docs.UpdateStatusIf(context.Background(), doc.ID, model.DocStatusUploaded, model.DocStatusProcessing)
	require.NoError(t, err)
	require.True(t, updated)
	updated, err = docs.UpdateStatusIf(context.Background(), doc.ID, model.DocStatusUploaded, model.DocStatusProcessing)
	require.NoError(t, err)
	require.False(t, updated)

	require.NoError(t, docs.SetProcessing(context.Background(), doc.ID))
	mid, err := docs.GetByID(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Equal(t, model.DocStatusProcessing, mid.Status)
	require.Equal(t, model.ProcStatusProcessing, mid.ProcessingStatus)
	require.Empty(t, mid.ErrorMessage)

	doc.Status = model.DocStatusCompleted
	doc.Title = "Quarterly Report"
	doc.TotalChunks = 3
	doc.WordCount = 120
	doc.CharCount = 800
	doc.WasRenamed = true
	doc.RenameReason = "generic filename replaced with content-derived title"
	doc.Metadata = map[string]string{"pages": "4", "title": "Quarterly Report"}
	doc.ProcessedAt = time.Now().Unix()
	require.NoError(t, docs.Complete(context.Background(), doc))
	done, err := docs.GetByID(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Equal(t, model.DocStatusCompleted, done.Status)
	require.Equal(t, model.ProcStatusCompleted, done.ProcessingStatus)
	require.Equal(t, 3, done.TotalChunks)
	require.Equal(t, "Quarterly Report", done.Title)
	require.True(t, done.WasRenamed)
	require.Equal(t, doc.RenameReason, done.RenameReason)
	require.Equal(t, doc.Metadata, done.Metadata)

	require.NoError(t, docs.Fail(context.Background(), doc.ID, "extraction broke", time.Now().Unix()))
	failed, err := docs.GetByID(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Equal(t, model.DocStatusFailed, failed.Status)
	require.Equal(t, model.ProcStatusFailed, failed.ProcessingStatus)
	require.Equal(t, "extraction broke", failed.ErrorMessage)

	// reclaiming for reprocess clears the failure residue
	require.NoError(t, docs.SetProcessing(context.Background(), doc.ID))
	reclaimed, err := docs.GetByID(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Empty(t, reclaimed.ErrorMessage)
	require.Zero(t, reclaimed.ProcessedAt)
}

func TestDocumentRepoListAndCatalog(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	docs := repo.NewDocumentRepo(db)
	completed := newTestDocument()
	completed.Status = model.DocStatusCompleted
	uploaded := newTestDocument()
	require.NoError(t, docs.Create(context.Background(), completed))
	require.NoError(t, docs.Create(context.Background(), uploaded))
	defer func() {
		_ = docs.Delete(context.Background(), completed.ID)
		_ = docs.Delete(context.Background(), uploaded.ID)
	}()

	listed, err := docs.List(context.Background(), model.DocStatusCompleted, 100, 0)
	require.NoError(t, err)
	ids := make(map[string]bool, len(listed))
	for _, d := range listed {
		require.Equal(t, model.DocStatusCompleted, d.Status)
		ids[d.ID] = true
	}
	require.True(t, ids[completed.ID])
	require.False(t, ids[uploaded.ID])

	count, err := docs.Count(context.Background(), model.DocStatusCompleted)
	require.NoError(t, err)
	require.GreaterOrEqual(t, count, 1)

	catalog, err := docs.ListCatalog(context.Background())
	require.NoError(t, err)
	found := 0
	for _, entry := range catalog {
		if entry.DocumentID == completed.ID || entry.DocumentID == uploaded.ID {
			found += 1
			require.NotEmpty(t, entry.ContentHash)
			require.NotEmpty(t, entry.Filename)
		}
	}
	require.Equal(t, 2, found)
}

func TestDocumentRepoDeleteCascadesChunks(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	docs := repo.NewDocumentRepo(db)
	chunks := repo.NewChunkRepo(db)
	doc := newTestDocument()
	require.NoError(t, docs.Create(context.Background(), doc))
	require.NoError(t, chunks.InsertBatch(context.Background(), []model.Chunk{
		{DocumentID: doc.ID, ChunkIndex: 0, Content: "first part", WordCount: 2, CharCount: 10, SentenceCount: 1, Ctime: time.Now().Unix()},
		{DocumentID: doc.ID, ChunkIndex: 1, Content: "second part", WordCount: 2, CharCount: 11, SentenceCount: 1, Ctime: time.Now().Unix()},
	}))

	require.NoError(t, docs.Delete(context.Background(), doc.ID))
	require.ErrorIs(t, docs.Delete(context.Background(), doc.ID), appErr.ErrNotFound)

	left, err := chunks.ListByDocument(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Empty(t, left)
}
