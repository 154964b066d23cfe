// Package es 提供了与 Elasticsearch 交互的客户端功能，用于文档元数据的关键词检索。
package es

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"lawspark-go/internal/config"
	"lawspark-go/internal/model"
	"lawspark-go/pkg/log"
)

const metadataMapping = `{
	"mappings": {
		"properties": {
			"document_id":   { "type": "keyword" },
			"user_id":       { "type": "keyword" },
			"title":         { "type": "text", "analyzer": "english" },
			"description":   { "type": "text", "analyzer": "english" },
			"document_type": { "type": "keyword" },
			"jurisdiction":  { "type": "keyword" },
			"language":      { "type": "keyword" },
			"source":        { "type": "keyword" },
			"categories":    { "type": "keyword" },
			"keywords":      { "type": "text" },
			"legal_domains": { "type": "keyword" },
			"embedded":      { "type": "boolean" }
		}
	}
}`

// Client 包装了 Elasticsearch 客户端与元数据索引名。
type Client struct {
	es    *elasticsearch.Client
	index string
}

// NewClient 初始化 Elasticsearch 客户端，并在索引不存在时创建它。
func NewClient(esCfg config.ElasticsearchConfig) (*Client, error) {
	cfg := elasticsearch.Config{
		Addresses: strings.Split(esCfg.Addresses, ","),
		Username:  esCfg.Username,
		Password:  esCfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
	es, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	c := &Client{es: es, index: esCfg.IndexName}
	if err := c.createIndexIfNotExists(context.Background()); err != nil {
		return nil, err
	}
	return c, nil
}

// createIndexIfNotExists 检查索引是否存在，如果不存在则创建它
func (c *Client) createIndexIfNotExists(ctx context.Context) error {
	res, err := c.es.Indices.Exists([]string{c.index}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("检查索引是否存在时出错: %w", err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		log.Infof("[ES] 索引 '%s' 已存在", c.index)
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("检查索引 '%s' 时收到意外的状态码: %d", c.index, res.StatusCode)
	}

	res, err = c.es.Indices.Create(
		c.index,
		c.es.Indices.Create.WithBody(strings.NewReader(metadataMapping)),
		c.es.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("创建索引 '%s' 失败: %w", c.index, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("创建索引 '%s' 时 Elasticsearch 返回错误: %s", c.index, res.String())
	}

	log.Infof("[ES] 索引 '%s' 创建成功", c.index)
	return nil
}

// IndexMetadata 以 document_id 为 ID 写入（覆盖）一条元数据文档。
func (c *Client) IndexMetadata(ctx context.Context, doc model.EsMetadataDocument) error {
	docBytes, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	req := esapi.IndexRequest{
		Index:      c.index,
		DocumentID: doc.DocumentID,
		Body:       bytes.NewReader(docBytes),
		Refresh:    "true",
	}
	res, err := req.Do(ctx, c.es)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("failed to index metadata: %s", res.String())
	}
	return nil
}

// DeleteMetadata 删除文档的元数据，文档不存在时视为成功。
func (c *Client) DeleteMetadata(ctx context.Context, documentID string) error {
	req := esapi.DeleteRequest{Index: c.index, DocumentID: documentID}
	res, err := req.Do(ctx, c.es)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("failed to delete metadata: %s", res.String())
	}
	return nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Score  float64                  `json:"_score"`
			Source model.EsMetadataDocument `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// SearchMetadata 在标题、描述、关键词与分类上做多字段匹配，仅返回 userID 的文档。
func (c *Client) SearchMetadata(ctx context.Context, query, userID string, size int) ([]model.KeywordHit, error) {
	body := map[string]interface{}{
		"size": size,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": map[string]interface{}{
					"multi_match": map[string]interface{}{
						"query":  query,
						"fields": []string{"title^3", "description", "keywords^2", "categories"},
					},
				},
				"filter": []interface{}{
					map[string]interface{}{"term": map[string]interface{}{"user_id": userID}},
				},
			},
		},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, err
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch search failed: %s", res.String())
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	hits := make([]model.KeywordHit, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		hits = append(hits, model.KeywordHit{
			DocumentID:   h.Source.DocumentID,
			Title:        h.Source.Title,
			DocumentType: h.Source.DocumentType,
			Keywords:     h.Source.Keywords,
			Score:        h.Score,
		})
	}
	return hits, nil
}
