package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lawspark-go/internal/config"
	"lawspark-go/internal/model"
	"lawspark-go/pkg/apperrors"
)

type documentFixture struct {
	docs      *fakeDocRepo
	records   *fakeEmbeddingRepo
	jobs      *fakeJobRepo
	metadata  *fakeMetadataRepo
	audit     *fakeAuditRepo
	indexer   *fakeIndexer
	store     *fakeStore
	publisher *fakePublisher
	llm       *fakeLLM
	svc       DocumentService
	owner     Requester
}

func newDocumentFixture(autoEmbed bool) *documentFixture {
	f := &documentFixture{
		docs:      newFakeDocRepo(),
		records:   newFakeEmbeddingRepo(),
		jobs:      newFakeJobRepo(),
		metadata:  &fakeMetadataRepo{},
		audit:     &fakeAuditRepo{},
		indexer:   &fakeIndexer{},
		store:     newFakeStore(),
		publisher: &fakePublisher{},
		llm:       &fakeLLM{text: "analysis"},
		owner:     Requester{UserID: uuid.New()},
	}
	f.svc = NewDocumentService(DocumentDeps{
		Documents:  f.docs,
		Embeddings: f.records,
		Jobs:       f.jobs,
		Metadata:   f.metadata,
		Audit:      f.audit,
		Indexer:    f.indexer,
		Store:      f.store,
		Extractor:  &fakeExtractor{text: "This employment agreement binds the employer. Contact jane@example.com."},
		Publisher:  f.publisher,
		Answers:    NewAnswerService(f.llm),
		Pipeline:   config.PipelineConfig{AutoEmbed: autoEmbed, ChunkSize: 800, ChunkOverlap: 100},
	})
	return f
}

func TestCreateFromText(t *testing.T) {
	f := newDocumentFixture(true)

	doc, err := f.svc.CreateFromText(context.Background(), f.owner, model.CreateTextDocumentRequest{
		Title:        "NDA",
		Content:      "The confidential information shall remain private.",
		DocumentType: "contract",
		Categories:   []string{"privacy"},
		DocumentDate: "2023-05-01",
	})
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, doc.ID)
	assert.Equal(t, f.owner.UserID, doc.UserID)
	assert.Equal(t, "en", doc.Language)
	require.NotNil(t, doc.DocumentDate)
	assert.Equal(t, 2023, doc.DocumentDate.Year())
	assert.Contains(t, []string(doc.LegalDomains), "privacy")

	require.Len(t, f.metadata.upserts, 1)
	require.Len(t, f.indexer.indexed, 1)
	assert.False(t, f.indexer.indexed[0].Embedded)
	require.Len(t, f.publisher.published, 1)
	assert.Equal(t, doc.ID.String(), f.publisher.published[0].DocumentID)
	assert.Equal(t, 800, f.publisher.published[0].ChunkSize)
	assert.Equal(t, []string{model.ActionDocumentCreate}, f.audit.actions())
}

func TestCreateFromText_Validation(t *testing.T) {
	f := newDocumentFixture(false)
	ctx := context.Background()

	_, err := f.svc.CreateFromText(ctx, f.owner, model.CreateTextDocumentRequest{Title: "x", Content: " "})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))

	_, err = f.svc.CreateFromText(ctx, f.owner, model.CreateTextDocumentRequest{Title: "x", Content: "y", DocumentDate: "May 1"})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))

	assert.Empty(t, f.publisher.published)
}

func TestUpload(t *testing.T) {
	f := newDocumentFixture(false)

	doc, err := f.svc.Upload(context.Background(), f.owner, UploadInput{
		Meta:     model.CreateTextDocumentRequest{Title: "Employment Agreement"},
		FileName: "../../contracts/agreement.pdf",
		File:     strings.NewReader("%PDF-1.4 binary"),
	})
	require.NoError(t, err)

	assert.Equal(t, "agreement.pdf", doc.FileName)
	assert.Equal(t, "documents/"+doc.ID.String()+"/agreement.pdf", doc.ObjectKey)
	assert.Equal(t, []byte("%PDF-1.4 binary"), f.store.objects[doc.ObjectKey])
	assert.Contains(t, doc.Content, "employment agreement")
	assert.Empty(t, f.publisher.published, "auto embed is off")

	info, err := f.svc.DownloadURL(context.Background(), f.owner, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "agreement.pdf", info.FileName)
	assert.Contains(t, info.DownloadURL, doc.ObjectKey)
}

func TestUpload_EmptyFile(t *testing.T) {
	f := newDocumentFixture(false)

	_, err := f.svc.Upload(context.Background(), f.owner, UploadInput{
		Meta:     model.CreateTextDocumentRequest{Title: "x"},
		FileName: "a.pdf",
		File:     strings.NewReader(""),
	})

	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
	assert.Empty(t, f.store.objects)
}

func TestAccessControl(t *testing.T) {
	f := newDocumentFixture(false)
	ctx := context.Background()
	doc, err := f.svc.CreateFromText(ctx, f.owner, model.CreateTextDocumentRequest{Title: "t", Content: "c"})
	require.NoError(t, err)

	stranger := Requester{UserID: uuid.New()}
	_, err = f.svc.Get(ctx, stranger, doc.ID)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	err = f.svc.Delete(ctx, stranger, doc.ID)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))

	admin := Requester{UserID: uuid.New(), IsAdmin: true}
	got, err := f.svc.Get(ctx, admin, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, got.ID)

	page, err := f.svc.List(ctx, f.owner, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
	assert.Equal(t, 20, page.Size)
	page, err = f.svc.List(ctx, stranger, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
}

func TestDelete_RemovesEverything(t *testing.T) {
	f := newDocumentFixture(false)
	ctx := context.Background()
	doc, err := f.svc.Upload(ctx, f.owner, UploadInput{
		Meta:     model.CreateTextDocumentRequest{Title: "Lease"},
		FileName: "lease.docx",
		File:     strings.NewReader("bytes"),
	})
	require.NoError(t, err)
	require.NoError(t, f.records.Insert(ctx, &model.EmbeddingRecord{DocumentID: doc.ID, ChunkIndex: 0}))
	_, err = f.jobs.Claim(ctx, &model.EmbeddingJob{DocumentID: doc.ID, Status: model.JobComplete})
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, f.owner, doc.ID))

	_, err = f.docs.FindByID(ctx, doc.ID)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	n, _ := f.records.CountByDocument(ctx, doc.ID)
	assert.Zero(t, n)
	_, err = f.jobs.FindByDocument(ctx, doc.ID)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	assert.Equal(t, []uuid.UUID{doc.ID}, f.metadata.deleted)
	assert.Equal(t, []string{doc.ID.String()}, f.indexer.deleted)
	assert.Equal(t, []string{doc.ObjectKey}, f.store.removed)
	assert.Equal(t, []string{model.ActionDocumentCreate, model.ActionDocumentDelete}, f.audit.actions())
}

func TestDeleteAndAnonymize_RefuseWhileEmbedding(t *testing.T) {
	f := newDocumentFixture(false)
	ctx := context.Background()
	doc, err := f.svc.CreateFromText(ctx, f.owner, model.CreateTextDocumentRequest{
		Title:   "Offer",
		Content: "The employee Jane Doe (jane@example.com) earns $85,000.00 per year.",
	})
	require.NoError(t, err)
	f.jobs.seed(model.EmbeddingJob{DocumentID: doc.ID, Status: model.JobPending, RunID: uuid.New(), StartedAt: time.Now()})

	_, err = f.svc.Anonymize(ctx, f.owner, doc.ID)
	assert.True(t, errors.Is(err, apperrors.ErrConflict))
	err = f.svc.Delete(ctx, f.owner, doc.ID)
	assert.True(t, errors.Is(err, apperrors.ErrConflict))

	stored, err := f.docs.FindByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsAnonymized)
	assert.Contains(t, stored.Content, "jane@example.com")
	job, err := f.jobs.FindByDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobPending, job.Status)

	// 超过租约的任务视为已中断
	f.jobs.seed(model.EmbeddingJob{DocumentID: doc.ID, Status: model.JobPending, RunID: uuid.New(), StartedAt: time.Now().Add(-2 * DefaultJobLease)})
	out, err := f.svc.Anonymize(ctx, f.owner, doc.ID)
	require.NoError(t, err)
	assert.True(t, out.IsAnonymized)
	require.NoError(t, f.svc.Delete(ctx, f.owner, doc.ID))
}

func TestDownloadURL_TextDocumentHasNoFile(t *testing.T) {
	f := newDocumentFixture(false)
	doc, err := f.svc.CreateFromText(context.Background(), f.owner, model.CreateTextDocumentRequest{Title: "t", Content: "c"})
	require.NoError(t, err)

	_, err = f.svc.DownloadURL(context.Background(), f.owner, doc.ID)

	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestAnonymize(t *testing.T) {
	f := newDocumentFixture(true)
	ctx := context.Background()
	doc, err := f.svc.CreateFromText(ctx, f.owner, model.CreateTextDocumentRequest{
		Title:   "Offer",
		Content: "The employee Jane Doe (jane@example.com) earns $85,000.00 per year.",
	})
	require.NoError(t, err)
	require.NoError(t, f.records.Insert(ctx, &model.EmbeddingRecord{DocumentID: doc.ID, ChunkIndex: 0}))

	out, err := f.svc.Anonymize(ctx, f.owner, doc.ID)
	require.NoError(t, err)

	assert.True(t, out.IsAnonymized)
	assert.NotContains(t, out.Content, "jane@example.com")
	assert.NotContains(t, out.Content, "$85,000.00")
	assert.NotContains(t, out.Content, "Jane Doe")
	assert.Contains(t, []string(out.LegalDomains), "employment")
	n, _ := f.records.CountByDocument(ctx, doc.ID)
	assert.Zero(t, n, "embeddings of the original text are dropped")
	assert.Len(t, f.publisher.published, 2)

	stored, err := f.docs.FindByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsAnonymized)
	assert.Contains(t, f.audit.actions(), model.ActionDocumentAnonymize)
}

func TestAnalyzeDocument(t *testing.T) {
	f := newDocumentFixture(false)
	doc, err := f.svc.CreateFromText(context.Background(), f.owner, model.CreateTextDocumentRequest{Title: "Lease", Content: "The lease term is one year."})
	require.NoError(t, err)

	res, err := f.svc.Analyze(context.Background(), f.owner, doc.ID)
	require.NoError(t, err)

	assert.Equal(t, doc.ID, res.DocumentID)
	assert.Equal(t, "analysis", res.Analysis)
}
