package service

import (
	"context"
	"fmt"

	"rag-web-go/pkg/log"
	"rag-web-go/pkg/rag"
)

// QueryService 接口定义了知识库查询的业务操作（转发到 RAG 服务）。
type QueryService interface {
	Query(ctx context.Context, query, mode string) (string, error)
}

type queryService struct {
	ragClient *rag.Client
}

// NewQueryService 创建一个新的 QueryService 实例。
func NewQueryService(ragClient *rag.Client) QueryService {
	return &queryService{ragClient: ragClient}
}

// Query 先探测引擎可用性，再把查询原样转发给 RAG 服务。
func (s *queryService) Query(ctx context.Context, query, mode string) (string, error) {
	if _, err := s.ragClient.Health(ctx); err != nil {
		return "", fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}

	result, err := s.ragClient.Query(ctx, query, mode)
	if err != nil {
		return "", err
	}
	log.Infof("[QueryService] 查询完成, mode=%s, 结果长度=%d", mode, len(result))
	return result, nil
}
