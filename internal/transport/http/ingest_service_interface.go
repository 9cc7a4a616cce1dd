package http

import (
	"context"
	"io"

	"finsheet/internal/services"
	"finsheet/pkg/contracts/domain"
)

// IngestServiceInterface defines the pipeline operations the HTTP API exposes
type IngestServiceInterface interface {
	ProcessWorkbook(ctx context.Context, r io.Reader, symbol string, opts services.IngestOptions) (*services.CompanyReport, error)
	Refresh(ctx context.Context, symbol string, opts services.IngestOptions) (*services.CompanyReport, error)
	RunBatch(ctx context.Context, symbols []string, opts services.IngestOptions) (*services.BatchReport, error)
	ListEvents(ctx context.Context, symbol string) ([]domain.LongEvent, error)
	HasStore() bool
}
