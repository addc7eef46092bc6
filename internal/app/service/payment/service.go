package payment

import (
	"context"
	"fmt"

	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/coachpay/internal/models"
	"github.com/fatflowers/coachpay/pkg/types"
)

const (
	defaultPageSize = 20
	maxPageSize     = 500
)

var sortableColumns = []string{"created_at", "paid_at", "amount", "status", "updated_at"}

// ScanRequest pages through the payments ledger.
type ScanRequest struct {
	Filters   []*types.CommonFilter `json:"filters"`
	From      int                   `json:"from"`
	Size      int                   `json:"size"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

type ScanResponse struct {
	Items []*models.Payment `json:"items"`
	Total int64             `json:"total"`
}

// normalize clamps paging and falls back to newest first.
func (r *ScanRequest) normalize() {
	if r.Size <= 0 {
		r.Size = defaultPageSize
	}
	r.Size = min(r.Size, maxPageSize)
	r.From = max(r.From, 0)
	if !lo.Contains(sortableColumns, r.SortBy) {
		r.SortBy = "created_at"
	}
	if r.SortOrder != "asc" {
		r.SortOrder = "desc"
	}
}

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Scan lists payments matching every filter, with the total before paging.
func (s *Service) Scan(ctx context.Context, req *ScanRequest) (*ScanResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("nil request")
	}
	for _, f := range req.Filters {
		if err := f.Validate(); err != nil {
			return nil, err
		}
	}
	req.normalize()

	tx := s.db.WithContext(ctx).Model(&models.Payment{})
	if len(req.Filters) > 0 {
		tx = tx.Where(clause.Where{Exprs: []clause.Expression{types.FiltersAnd(req.Filters)}})
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count payments: %w", err)
	}

	var rows []*models.Payment
	q := tx.Limit(req.Size).Offset(req.From).
		Order(clause.OrderBy{Columns: []clause.OrderByColumn{
			{Column: clause.Column{Name: req.SortBy}, Desc: req.SortOrder == "desc"},
			{Column: clause.Column{Name: "id"}, Desc: true},
		}})
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return &ScanResponse{Items: rows, Total: total}, nil
}
