package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"lawspark-go/internal/model"
	"lawspark-go/internal/repository"
	"lawspark-go/pkg/apperrors"
	"lawspark-go/pkg/llm"
	"lawspark-go/pkg/log"
)

// ChatService 定义了聊天操作的接口。
type ChatService interface {
	// Ask 检索 → 拼接上下文 → 生成回答，并把本轮问答写入对话历史。
	// 检索范围与 SearchService.Search 相同。
	Ask(ctx context.Context, requester Requester, req model.ChatAskRequest) (*model.ChatAnswer, error)
	// StreamResponse 以 {"chunk": "..."} 帧流式写出回答，最后写一个完成帧。
	StreamResponse(ctx context.Context, requester Requester, query string, writer llm.MessageWriter) error
	History(ctx context.Context, userID uuid.UUID) ([]model.ChatMessage, error)
	ClearHistory(ctx context.Context, userID uuid.UUID) error
}

type chatService struct {
	searchService    SearchService
	answerService    AnswerService
	llmClient        llm.Client
	conversationRepo repository.ConversationRepository
}

// NewChatService 创建一个新的 ChatService 实例。
func NewChatService(searchService SearchService, answerService AnswerService, llmClient llm.Client, conversationRepo repository.ConversationRepository) ChatService {
	return &chatService{
		searchService:    searchService,
		answerService:    answerService,
		llmClient:        llmClient,
		conversationRepo: conversationRepo,
	}
}

func (s *chatService) Ask(ctx context.Context, requester Requester, req model.ChatAskRequest) (*model.ChatAnswer, error) {
	// 1. 检索上下文
	found, err := s.searchService.Search(ctx, model.SearchRequest{
		Query:         req.Query,
		Limit:         req.Limit,
		Threshold:     req.Threshold,
		DocumentTypes: req.DocumentTypes,
	}, requester)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve context: %w", err)
	}

	// 2. 生成回答
	answer, err := s.answerService.Synthesize(ctx, req.Query, BuildContextText(found.Results), nil)
	if err != nil {
		return nil, err
	}
	sources := sourcesOf(found.Results)

	// 3. 保存对话
	s.saveExchange(ctx, requester.UserID, req.Query, answer.Text, sources)

	return &model.ChatAnswer{Answer: *answer, Sources: sources}, nil
}

// StreamResponse 协调 RAG 流程并流式传输 LLM 响应。
func (s *chatService) StreamResponse(ctx context.Context, requester Requester, query string, writer llm.MessageWriter) error {
	if strings.TrimSpace(query) == "" {
		return apperrors.Invalidf("query must not be empty")
	}
	found, err := s.searchService.Search(ctx, model.SearchRequest{Query: query}, requester)
	if err != nil {
		return fmt.Errorf("failed to retrieve context: %w", err)
	}

	prompt := BuildAnswerPrompt(query, BuildContextText(found.Results))
	full, err := s.llmClient.StreamGenerate(ctx, prompt, nil, writer)
	if err != nil {
		return err
	}

	sources := sourcesOf(found.Results)
	sendCompletion(writer, sources)
	s.saveExchange(ctx, requester.UserID, query, full, sources)
	return nil
}

func (s *chatService) History(ctx context.Context, userID uuid.UUID) ([]model.ChatMessage, error) {
	history, err := s.conversationRepo.GetHistory(ctx, userID.String())
	if err != nil {
		return nil, err
	}
	if history == nil {
		history = []model.ChatMessage{}
	}
	return history, nil
}

func (s *chatService) ClearHistory(ctx context.Context, userID uuid.UUID) error {
	return s.conversationRepo.Clear(ctx, userID.String())
}

// saveExchange 即使请求已取消也保存已经生成的回答。
func (s *chatService) saveExchange(ctx context.Context, userID uuid.UUID, question, answer string, sources []model.Source) {
	if answer == "" || s.conversationRepo == nil {
		return
	}
	now := time.Now()
	err := s.conversationRepo.Append(context.WithoutCancel(ctx), userID.String(),
		model.ChatMessage{Role: "user", Content: question, Timestamp: now},
		model.ChatMessage{Role: "assistant", Content: answer, Sources: sources, Timestamp: now},
	)
	if err != nil {
		// 回答已经返回给用户，这里只记录
		log.Errorf("[ChatService] 保存对话历史失败: %v", err)
	}
}

// BuildContextText 把检索结果格式化为 "[n] (title) chunk" 行，分块原文不截断。
func BuildContextText(rows []model.MatchedChunk) string {
	if len(rows) == 0 {
		return "(no relevant documents found)"
	}
	var b strings.Builder
	for i, r := range rows {
		title := r.Title
		if title == "" {
			title = "untitled"
		}
		fmt.Fprintf(&b, "[%d] (%s) %s\n", i+1, title, r.ChunkText)
	}
	return b.String()
}

func sourcesOf(rows []model.MatchedChunk) []model.Source {
	sources := make([]model.Source, 0, len(rows))
	for _, r := range rows {
		sources = append(sources, model.Source{
			DocumentID: r.DocumentID.String(),
			Title:      r.Title,
			ChunkIndex: r.ChunkIndex,
			Similarity: r.Similarity,
		})
	}
	return sources
}

// sendCompletion 发送完成通知 JSON
func sendCompletion(writer llm.MessageWriter, sources []model.Source) {
	notif := map[string]interface{}{
		"type":      "completion",
		"status":    "finished",
		"sources":   sources,
		"timestamp": time.Now().UnixMilli(),
	}
	b, _ := json.Marshal(notif)
	if err := writer.WriteMessage(websocket.TextMessage, b); err != nil {
		log.Warnf("[ChatService] 发送完成通知失败: %v", err)
	}
}
