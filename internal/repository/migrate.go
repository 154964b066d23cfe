package repository

import (
	"fmt"

	"gorm.io/gorm"

	"lawspark-go/internal/model"
	"lawspark-go/pkg/log"
)

// dropLegacyMatchFunctionSQL 删除没有 owner 参数的旧版本，避免重载后按旧签名调用。
const dropLegacyMatchFunctionSQL = `DROP FUNCTION IF EXISTS match_document_embeddings(vector, float8, int)`

// matchFunctionSQL 安装相似度检索函数。结果列与 model.MatchedChunk 对应。
// filter_user_id 为 NULL 时不限制文档所有者（管理员与内部调用）。
const matchFunctionSQL = `
CREATE OR REPLACE FUNCTION match_document_embeddings(
	query_embedding vector,
	match_threshold float8,
	match_count int,
	filter_user_id uuid DEFAULT NULL
)
RETURNS TABLE (
	id uuid,
	document_id uuid,
	user_id uuid,
	chunk_index bigint,
	chunk_text text,
	metadata jsonb,
	similarity float8,
	title text,
	document_type text,
	categories text[],
	document_date date
)
LANGUAGE sql STABLE
AS $$
	SELECT
		e.id,
		e.document_id,
		d.user_id,
		e.chunk_index::bigint,
		e.chunk_text,
		e.metadata,
		(1 - (e.embedding <=> query_embedding))::float8 AS similarity,
		d.title::text,
		d.document_type::text,
		d.categories,
		d.document_date
	FROM document_embeddings e
	JOIN legal_documents d ON d.id = e.document_id
	WHERE 1 - (e.embedding <=> query_embedding) > match_threshold
		AND (filter_user_id IS NULL OR d.user_id = filter_user_id)
	ORDER BY e.embedding <=> query_embedding
	LIMIT match_count;
$$;`

// Migrate 创建 vector 扩展、同步表结构并安装检索函数。
func Migrate(db *gorm.DB) error {
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}

	err := db.AutoMigrate(
		&model.LegalDocument{},
		&model.DocumentMetadata{},
		&model.EmbeddingRecord{},
		&model.EmbeddingJob{},
		&model.AuditLog{},
		&model.VectorSearchLog{},
	)
	if err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	if err := db.Exec(dropLegacyMatchFunctionSQL).Error; err != nil {
		return fmt.Errorf("drop legacy match function: %w", err)
	}
	if err := db.Exec(matchFunctionSQL).Error; err != nil {
		return fmt.Errorf("install match function: %w", err)
	}

	log.Info("[Migrate] 数据库结构迁移完成")
	return nil
}
