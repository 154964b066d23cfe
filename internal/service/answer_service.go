package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"lawspark-go/internal/model"
	"lawspark-go/pkg/apperrors"
	"lawspark-go/pkg/legaltext"
	"lawspark-go/pkg/llm"
	"lawspark-go/pkg/log"
)

// maxAnalysisChars 截断送入合同分析 prompt 的正文。
const maxAnalysisChars = 12000

// AnswerService 基于检索上下文生成回答。
type AnswerService interface {
	// Synthesize 只根据 contextText 回答 query，失败时不会返回空字符串冒充答案。
	Synthesize(ctx context.Context, query, contextText string, gen *llm.GenerationParams) (*model.Answer, error)
	// Analyze 生成合同分析（摘要、义务、风险、异常条款）。
	Analyze(ctx context.Context, doc *model.LegalDocument) (*model.ContractAnalysis, error)
}

type answerService struct {
	llmClient llm.Client
}

// NewAnswerService 创建一个新的 AnswerService 实例。
func NewAnswerService(llmClient llm.Client) AnswerService {
	return &answerService{llmClient: llmClient}
}

// BuildAnswerPrompt 拼接问答 prompt，context 与 query 原样放入。
func BuildAnswerPrompt(query, contextText string) string {
	var b strings.Builder
	b.WriteString("You are LawSpark AI, a legal research assistant.\n\n")
	b.WriteString("Context:\n")
	b.WriteString(contextText)
	b.WriteString("\n\nQuestion:\n")
	b.WriteString(query)
	b.WriteString("\n\nInstructions:\n")
	b.WriteString("- Answer using only the information in the context above.\n")
	b.WriteString("- If the context is insufficient to answer, say so plainly.\n")
	b.WriteString("- Cite the documents you used by their reference number and title, e.g. [1] (Title).\n")
	return b.String()
}

// buildAnalysisPrompt 为单个文档构造合同分析 prompt。
func buildAnalysisPrompt(doc *model.LegalDocument) string {
	content := doc.Content
	if utf8.RuneCountInString(content) > maxAnalysisChars {
		content = string([]rune(content)[:maxAnalysisChars])
	}
	var b strings.Builder
	b.WriteString("You are LawSpark AI, a legal analyst reviewing a contract.\n\n")
	fmt.Fprintf(&b, "Title: %s\n", doc.Title)
	if doc.DocumentType != "" {
		fmt.Fprintf(&b, "Type: %s\n", doc.DocumentType)
	}
	if doc.Jurisdiction != "" {
		fmt.Fprintf(&b, "Jurisdiction: %s\n", doc.Jurisdiction)
	}
	b.WriteString("\nDocument:\n")
	b.WriteString(content)
	b.WriteString("\n\nProvide:\n")
	b.WriteString("1. A short summary.\n")
	b.WriteString("2. The key obligations of each party.\n")
	b.WriteString("3. Potential risks.\n")
	b.WriteString("4. Unusual or non-standard clauses.\n")
	return b.String()
}

// estimateTokens 粗略估算：字符数 / 4。
func estimateTokens(s string) int {
	return utf8.RuneCountInString(s) / 4
}

func (s *answerService) Synthesize(ctx context.Context, query, contextText string, gen *llm.GenerationParams) (*model.Answer, error) {
	if strings.TrimSpace(query) == "" {
		return nil, apperrors.Invalidf("query must not be empty")
	}
	prompt := BuildAnswerPrompt(query, contextText)

	text, err := s.llmClient.Generate(ctx, prompt, gen)
	if err != nil {
		log.Errorf("[AnswerService] 生成回答失败: %v", err)
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, &apperrors.RemoteServiceError{Service: llm.ServiceName, Message: "empty completion"}
	}

	return &model.Answer{
		Text:             text,
		Model:            s.llmClient.Model(),
		PromptTokens:     estimateTokens(prompt),
		CompletionTokens: estimateTokens(text),
	}, nil
}

func (s *answerService) Analyze(ctx context.Context, doc *model.LegalDocument) (*model.ContractAnalysis, error) {
	if strings.TrimSpace(doc.Content) == "" {
		return nil, apperrors.Invalidf("document %s has no text content", doc.ID)
	}
	text, err := s.llmClient.Generate(ctx, buildAnalysisPrompt(doc), nil)
	if err != nil {
		log.Errorf("[AnswerService] 合同分析失败, document=%s: %v", doc.ID, err)
		return nil, err
	}

	domains := []string(doc.LegalDomains)
	if len(domains) == 0 {
		domains = legaltext.DetectDomains(doc.Content)
	}
	complexity := doc.Complexity
	if complexity == "" {
		complexity = legaltext.AssessComplexity(doc.Content)
	}
	return &model.ContractAnalysis{
		DocumentID: doc.ID,
		Analysis:   text,
		Complexity: complexity,
		Domains:    domains,
		Model:      s.llmClient.Model(),
	}, nil
}
