package pipeline

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lawspark-go/internal/model"
	"lawspark-go/internal/service"
	"lawspark-go/pkg/apperrors"
	"lawspark-go/pkg/tasks"
)

type stubEmbeddingService struct {
	calls  []service.GenerateParams
	result *model.EmbeddingResult
	err    error
}

func (s *stubEmbeddingService) Generate(_ context.Context, params service.GenerateParams) (*model.EmbeddingResult, error) {
	s.calls = append(s.calls, params)
	return s.result, s.err
}

func (s *stubEmbeddingService) Regenerate(context.Context, service.GenerateParams) (*model.EmbeddingResult, error) {
	panic("not used")
}

func (s *stubEmbeddingService) Status(context.Context, uuid.UUID, *service.Requester) (*model.EmbeddingStatus, error) {
	panic("not used")
}

func TestProcess(t *testing.T) {
	docID := uuid.New()
	userID := uuid.New()

	tests := []struct {
		name    string
		result  *model.EmbeddingResult
		err     error
		wantErr bool
	}{
		{"complete", &model.EmbeddingResult{Status: model.JobComplete, StoredChunks: 4}, nil, false},
		{"already embedded", &model.EmbeddingResult{Status: model.JobComplete, AlreadyEmbedded: true}, nil, false},
		{"partial is retried", &model.EmbeddingResult{Status: model.JobPartial}, nil, true},
		{"failed is retried", &model.EmbeddingResult{Status: model.JobFailed}, nil, true},
		{"missing document is dropped", nil, apperrors.NotFoundf("document %s not found", docID), false},
		{"in progress elsewhere", nil, apperrors.Conflictf("busy"), false},
		{"remote error is retried", nil, &apperrors.RemoteServiceError{Service: "gemini-embedding", StatusCode: 503}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubEmbeddingService{result: tt.result, err: tt.err}
			p := NewProcessor(stub)
			overlap := 80

			err := p.Process(context.Background(), tasks.EmbeddingTask{
				DocumentID:   docID.String(),
				ChunkSize:    800,
				ChunkOverlap: &overlap,
				RequestedBy:  userID.String(),
			})

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			require.Len(t, stub.calls, 1)
			assert.Equal(t, docID, stub.calls[0].DocumentID)
			assert.Equal(t, 800, stub.calls[0].ChunkSize)
			require.NotNil(t, stub.calls[0].ChunkOverlap)
			assert.Equal(t, 80, *stub.calls[0].ChunkOverlap)
			assert.Nil(t, stub.calls[0].Requester)
			require.NotNil(t, stub.calls[0].RequestedBy)
			assert.Equal(t, userID, *stub.calls[0].RequestedBy)
		})
	}
}

func TestProcess_ZeroOverlapIsKept(t *testing.T) {
	stub := &stubEmbeddingService{result: &model.EmbeddingResult{Status: model.JobComplete}}
	zero := 0

	err := NewProcessor(stub).Process(context.Background(), tasks.EmbeddingTask{DocumentID: uuid.NewString(), ChunkOverlap: &zero})

	require.NoError(t, err)
	require.Len(t, stub.calls, 1)
	require.NotNil(t, stub.calls[0].ChunkOverlap)
	assert.Equal(t, 0, *stub.calls[0].ChunkOverlap)
}

func TestProcess_InvalidDocumentID(t *testing.T) {
	stub := &stubEmbeddingService{}

	err := NewProcessor(stub).Process(context.Background(), tasks.EmbeddingTask{DocumentID: "not-a-uuid"})

	assert.NoError(t, err)
	assert.Empty(t, stub.calls)
}
