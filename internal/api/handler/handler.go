package handler

import "github.com/vasuki20/suss-student-discussion-data/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Query   *QueryHandler
	Catalog *CatalogHandler
	Ingest  *IngestHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Query:   NewQueryHandler(svc.Query),
		Catalog: NewCatalogHandler(svc.Catalog),
		Ingest:  NewIngestHandler(svc.Ingest),
	}
}
