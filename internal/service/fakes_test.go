package service

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"lawspark-go/internal/model"
	"lawspark-go/internal/repository"
	"lawspark-go/pkg/apperrors"
	"lawspark-go/pkg/llm"
	"lawspark-go/pkg/tasks"
)

// ---- repositories ----

type fakeDocRepo struct {
	mu   sync.Mutex
	docs map[uuid.UUID]*model.LegalDocument
}

func newFakeDocRepo(docs ...*model.LegalDocument) *fakeDocRepo {
	r := &fakeDocRepo{docs: map[uuid.UUID]*model.LegalDocument{}}
	for _, d := range docs {
		r.docs[d.ID] = d
	}
	return r
}

func (r *fakeDocRepo) Create(_ context.Context, doc *model.LegalDocument) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	cp := *doc
	r.docs[doc.ID] = &cp
	return nil
}

func (r *fakeDocRepo) FindByID(_ context.Context, id uuid.UUID) (*model.LegalDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[id]
	if !ok {
		return nil, apperrors.NotFoundf("document %s not found", id)
	}
	cp := *d
	return &cp, nil
}

func (r *fakeDocRepo) ListByUser(_ context.Context, userID uuid.UUID, page, size int) ([]model.LegalDocument, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.LegalDocument
	for _, d := range r.docs {
		if d.UserID == userID {
			out = append(out, *d)
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeDocRepo) Update(_ context.Context, doc *model.LegalDocument) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *doc
	r.docs[doc.ID] = &cp
	return nil
}

func (r *fakeDocRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.docs, id)
	return nil
}

func (r *fakeDocRepo) Count(context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.docs)), nil
}

type fakeEmbeddingRepo struct {
	mu      sync.Mutex
	records map[uuid.UUID][]model.EmbeddingRecord
	inserts int

	rows       []model.MatchedChunk
	matchErr   error
	lastFilter repository.MatchFilter
}

func newFakeEmbeddingRepo() *fakeEmbeddingRepo {
	return &fakeEmbeddingRepo{records: map[uuid.UUID][]model.EmbeddingRecord{}}
}

func (r *fakeEmbeddingRepo) CountByDocument(_ context.Context, id uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.records[id])), nil
}

func (r *fakeEmbeddingRepo) Insert(_ context.Context, rec *model.EmbeddingRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.records[rec.DocumentID] {
		if existing.ChunkIndex == rec.ChunkIndex {
			return fmt.Errorf("duplicate chunk %d", rec.ChunkIndex)
		}
	}
	r.records[rec.DocumentID] = append(r.records[rec.DocumentID], *rec)
	r.inserts++
	return nil
}

func (r *fakeEmbeddingRepo) DeleteByDocument(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, id)
	return nil
}

func (r *fakeEmbeddingRepo) DeleteByRun(_ context.Context, id, runID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kept []model.EmbeddingRecord
	for _, rec := range r.records[id] {
		if rec.RunID != runID {
			kept = append(kept, rec)
		}
	}
	r.records[id] = kept
	return nil
}

func (r *fakeEmbeddingRepo) CountAll(context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, recs := range r.records {
		n += int64(len(recs))
	}
	return n, nil
}

// Match 按所有者、相似度、类型过滤后截断到 limit，与 SQL 的行为一致。
func (r *fakeEmbeddingRepo) Match(_ context.Context, _ pgvector.Vector, threshold float64, limit int, filter repository.MatchFilter) ([]model.MatchedChunk, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastFilter = filter
	if r.matchErr != nil {
		return nil, r.matchErr
	}
	var out []model.MatchedChunk
	for _, row := range r.rows {
		if filter.UserID != nil && row.UserID != *filter.UserID {
			continue
		}
		if row.Similarity < threshold {
			continue
		}
		if len(filter.DocumentTypes) > 0 && !containsString(filter.DocumentTypes, row.DocumentType) {
			continue
		}
		out = append(out, row)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeEmbeddingRepo) indices(id uuid.UUID) []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	var idx []int
	for _, rec := range r.records[id] {
		idx = append(idx, rec.ChunkIndex)
	}
	sort.Ints(idx)
	return idx
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

type fakeJobRepo struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]model.EmbeddingJob
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{jobs: map[uuid.UUID]model.EmbeddingJob{}}
}

func (r *fakeJobRepo) Claim(_ context.Context, job *model.EmbeddingJob) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[job.DocumentID]; ok {
		return false, nil
	}
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	r.jobs[job.DocumentID] = *job
	return true, nil
}

func (r *fakeJobRepo) Reclaim(_ context.Context, job *model.EmbeddingJob, staleBefore time.Time, from ...string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.jobs[job.DocumentID]
	if !ok {
		return false, nil
	}
	stale := cur.Status == model.JobPending && cur.StartedAt.Before(staleBefore)
	if !containsString(from, cur.Status) && !stale {
		return false, nil
	}
	cur.Status = model.JobPending
	cur.RunID = job.RunID
	cur.StartedAt = job.StartedAt
	cur.ChunkSize = job.ChunkSize
	cur.ChunkOverlap = job.ChunkOverlap
	cur.StoredChunks = 0
	cur.TotalChunks = 0
	cur.Failures = nil
	r.jobs[job.DocumentID] = cur
	return true, nil
}

func (r *fakeJobRepo) FindByDocument(_ context.Context, id uuid.UUID) (*model.EmbeddingJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, apperrors.NotFoundf("embedding job for document %s", id)
	}
	return &job, nil
}

func (r *fakeJobRepo) Finish(_ context.Context, job *model.EmbeddingJob) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.jobs[job.DocumentID]
	if !ok || cur.RunID != job.RunID || cur.Status != model.JobPending {
		return false, nil
	}
	r.jobs[job.DocumentID] = *job
	return true, nil
}

// seed 直接写入一行任务，模拟其他进程留下的状态。
func (r *fakeJobRepo) seed(job model.EmbeddingJob) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	r.jobs[job.DocumentID] = job
}

func (r *fakeJobRepo) DeleteByDocument(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, id)
	return nil
}

func (r *fakeJobRepo) List(_ context.Context, status string, page, size int) ([]model.EmbeddingJob, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.EmbeddingJob
	for _, j := range r.jobs {
		if status == "" || j.Status == status {
			out = append(out, j)
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeJobRepo) CountByStatus(context.Context) (map[string]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := map[string]int64{model.JobPending: 0, model.JobPartial: 0, model.JobComplete: 0, model.JobFailed: 0}
	for _, j := range r.jobs {
		counts[j.Status]++
	}
	return counts, nil
}

type fakeMetadataRepo struct {
	mu      sync.Mutex
	upserts []model.DocumentMetadata
	deleted []uuid.UUID
}

func (r *fakeMetadataRepo) Upsert(_ context.Context, meta *model.DocumentMetadata) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upserts = append(r.upserts, *meta)
	return nil
}

func (r *fakeMetadataRepo) DeleteByDocument(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, id)
	return nil
}

type fakeAuditRepo struct {
	mu      sync.Mutex
	entries []model.AuditLog
}

func (r *fakeAuditRepo) Create(_ context.Context, entry *model.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *fakeAuditRepo) List(_ context.Context, action string, page, size int) ([]model.AuditLog, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.AuditLog
	for _, e := range r.entries {
		if action == "" || e.Action == action {
			out = append(out, e)
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeAuditRepo) Count(context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.entries)), nil
}

func (r *fakeAuditRepo) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.entries {
		out = append(out, e.Action)
	}
	return out
}

type fakeSearchLogRepo struct {
	mu      sync.Mutex
	entries []model.VectorSearchLog
	err     error
}

func (r *fakeSearchLogRepo) Create(_ context.Context, entry *model.VectorSearchLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *fakeSearchLogRepo) List(context.Context, int, int) ([]model.VectorSearchLog, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.VectorSearchLog(nil), r.entries...), int64(len(r.entries)), nil
}

func (r *fakeSearchLogRepo) Count(context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.entries)), nil
}

type fakeConversationRepo struct {
	mu      sync.Mutex
	history map[string][]model.ChatMessage
}

func newFakeConversationRepo() *fakeConversationRepo {
	return &fakeConversationRepo{history: map[string][]model.ChatMessage{}}
}

func (r *fakeConversationRepo) GetHistory(_ context.Context, userID string) ([]model.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.ChatMessage(nil), r.history[userID]...), nil
}

func (r *fakeConversationRepo) Append(_ context.Context, userID string, msgs ...model.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history[userID] = append(r.history[userID], msgs...)
	return nil
}

func (r *fakeConversationRepo) Clear(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.history, userID)
	return nil
}

// ---- remote clients ----

type fakeEmbedder struct {
	calls int32
	fn    func(text string) ([]float32, error)
}

func (e *fakeEmbedder) CreateEmbedding(_ context.Context, text string) ([]float32, error) {
	atomic.AddInt32(&e.calls, 1)
	if e.fn != nil {
		return e.fn(text)
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func (e *fakeEmbedder) Model() string { return "text-embedding-004" }

func (e *fakeEmbedder) callCount() int { return int(atomic.LoadInt32(&e.calls)) }

func intPtr(v int) *int { return &v }

type fakeLLM struct {
	mu      sync.Mutex
	text    string
	err     error
	chunks  []string
	prompts []string
}

func (l *fakeLLM) Generate(_ context.Context, prompt string, _ *llm.GenerationParams) (string, error) {
	l.mu.Lock()
	l.prompts = append(l.prompts, prompt)
	l.mu.Unlock()
	if l.err != nil {
		return "", l.err
	}
	return l.text, nil
}

func (l *fakeLLM) StreamGenerate(_ context.Context, prompt string, _ *llm.GenerationParams, w llm.MessageWriter) (string, error) {
	l.mu.Lock()
	l.prompts = append(l.prompts, prompt)
	l.mu.Unlock()
	if l.err != nil {
		return "", l.err
	}
	var full strings.Builder
	for _, c := range l.chunks {
		full.WriteString(c)
		if err := w.WriteMessage(1, []byte(`{"chunk":"`+c+`"}`)); err != nil {
			return full.String(), err
		}
	}
	return full.String(), nil
}

func (l *fakeLLM) Model() string { return "gemini-1.5-flash" }

type recordingWriter struct {
	mu       sync.Mutex
	messages []string
}

func (w *recordingWriter) WriteMessage(_ int, data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.messages = append(w.messages, string(data))
	return nil
}

// ---- infrastructure ----

type fakeIndexer struct {
	mu      sync.Mutex
	indexed []model.EsMetadataDocument
	deleted []string
	hits    []model.KeywordHit
}

func (f *fakeIndexer) IndexMetadata(_ context.Context, doc model.EsMetadataDocument) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexed = append(f.indexed, doc)
	return nil
}

func (f *fakeIndexer) DeleteMetadata(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeIndexer) SearchMetadata(_ context.Context, _, _ string, _ int) ([]model.KeywordHit, error) {
	return f.hits, nil
}

type fakeStore struct {
	objects map[string][]byte
	removed []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}}
}

func (s *fakeStore) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.objects[key] = data
	return nil
}

func (s *fakeStore) PresignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "http://minio.local/" + key + "?sig=x", nil
}

func (s *fakeStore) Remove(_ context.Context, key string) error {
	s.removed = append(s.removed, key)
	delete(s.objects, key)
	return nil
}

type fakeExtractor struct {
	text string
}

func (e *fakeExtractor) ExtractText(_ context.Context, r io.Reader, _ string) (string, error) {
	if _, err := io.ReadAll(r); err != nil {
		return "", err
	}
	return e.text, nil
}

type fakePublisher struct {
	published []tasks.EmbeddingTask
}

func (p *fakePublisher) PublishEmbeddingTask(_ context.Context, task tasks.EmbeddingTask) error {
	p.published = append(p.published, task)
	return nil
}
