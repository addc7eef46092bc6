package payout

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/fatflowers/coachpay/internal/models"
	"github.com/fatflowers/coachpay/pkg/config"
	"github.com/fatflowers/coachpay/pkg/logctx"
	"github.com/fatflowers/coachpay/pkg/metrics"
	"github.com/fatflowers/coachpay/pkg/tool"
)

type Service struct {
	repo    Repository
	policy  DefaultPolicy
	log     *zap.SugaredLogger
	metrics *metrics.Business
}

func NewService(cfg *config.Config, repo Repository, log *zap.SugaredLogger, m *metrics.Business) *Service {
	return &Service{repo: repo, policy: NewDefaultPolicy(cfg), log: log, metrics: m}
}

// Run recomputes and stores the payouts of month (YYYY-MM). A repository
// failure aborts the whole run; re-running is safe.
func (s *Service) Run(ctx context.Context, month string) (*Result, error) {
	if _, _, err := tool.ParseMonth(month); err != nil {
		return nil, err
	}
	log := logctx.FromCtx(ctx, s.log).With("month", month)
	start := time.Now()

	snap, err := s.repo.LoadSnapshot(ctx, month)
	if err != nil {
		log.Errorw("payout snapshot load failed", "err", err)
		return nil, fmt.Errorf("load payout snapshot: %w", err)
	}

	result, warnings := Calculate(*snap, s.policy)
	for _, w := range warnings {
		log.Warnw("payout fallback applied", "kind", w.Kind, "subject_id", w.SubjectID, "detail", w.Detail)
		s.metrics.PayoutWarnings.WithLabelValues(string(w.Kind)).Inc()
	}

	for _, row := range result.Payments {
		row.ID = tool.GenerateUUIDV7()
	}
	if err := s.repo.UpsertPayments(ctx, result.Payments); err != nil {
		log.Errorw("payout upsert failed", "err", err)
		return nil, fmt.Errorf("upsert coach payments: %w", err)
	}

	s.observe(month, result.Totals)
	log.Infow("payout run completed",
		"coaches", len(result.Payments),
		"warnings", len(warnings),
		"gross_revenue", result.Totals.GrossRevenue.String(),
		"discounts_applied", result.Totals.DiscountsApplied.String(),
		"net_collected", result.Totals.NetCollected.String(),
		"total_coach_payout", result.Totals.TotalCoachPayout.String(),
		"platform_retained", result.Totals.PlatformRetained.String(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

func (s *Service) List(ctx context.Context, month string) ([]*models.MonthlyCoachPayment, error) {
	if _, _, err := tool.ParseMonth(month); err != nil {
		return nil, err
	}
	return s.repo.ListPayments(ctx, month)
}

func (s *Service) observe(month string, t Totals) {
	values := map[string]float64{
		"gross_revenue":      t.GrossRevenue.InexactFloat64(),
		"discounts_applied":  t.DiscountsApplied.InexactFloat64(),
		"net_collected":      t.NetCollected.InexactFloat64(),
		"total_coach_payout": t.TotalCoachPayout.InexactFloat64(),
		"platform_retained":  t.PlatformRetained.InexactFloat64(),
	}
	for _, kind := range lo.Keys(values) {
		s.metrics.PayoutTotals.WithLabelValues(month, kind).Set(values[kind])
	}
}
