package statistics

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/coachpay/internal/models"
	"github.com/fatflowers/coachpay/pkg/types"
)

type StatisticType string

const (
	// Payment ledger
	StatisticTypeDailyPaymentCount       StatisticType = "daily_payment_count"
	StatisticTypeDailyCollected          StatisticType = "daily_collected"
	StatisticTypeTotalCollected          StatisticType = "total_collected"
	StatisticTypeDailyPaymentSuccessRate StatisticType = "daily_payment_success_rate"

	// Subscriptions
	StatisticTypeActiveSubscriptionCount   StatisticType = "active_subscription_count"
	StatisticTypeDailySubscriptionCount    StatisticType = "daily_subscription_count"
	StatisticTypeDailyNewSubscriptionCount StatisticType = "daily_new_subscription_count"

	// Payouts
	StatisticTypeMonthlyPayoutTotal StatisticType = "monthly_payout_total"
)

var ErrUnknownStatistic = errors.New("unknown statistic")

// FilterType names filters that only make sense for some statistics.
type FilterType string

const (
	FilterTypeCurrency  FilterType = "currency"
	FilterTypeServiceID FilterType = "service_id"
	FilterTypeCoachID   FilterType = "coach_id"
)

var filterTypes = []FilterType{FilterTypeCurrency, FilterTypeServiceID, FilterTypeCoachID}

var validFilters = map[FilterType][]StatisticType{
	FilterTypeCurrency:  {StatisticTypeDailyPaymentCount, StatisticTypeDailyCollected, StatisticTypeDailyPaymentSuccessRate},
	FilterTypeServiceID: {StatisticTypeActiveSubscriptionCount, StatisticTypeDailySubscriptionCount, StatisticTypeDailyNewSubscriptionCount},
	FilterTypeCoachID:   {StatisticTypeActiveSubscriptionCount, StatisticTypeDailySubscriptionCount, StatisticTypeMonthlyPayoutTotal},
}

type DataItem struct {
	ID StatisticType `json:"id"`
}

type Request struct {
	Filters   []*types.CommonFilter `json:"filters"`
	DataItems []*DataItem           `json:"data_items"`
}

// applicable reports whether every restricted filter in the request is
// meaningful for statistic t.
func (r *Request) applicable(t StatisticType) bool {
	for _, f := range r.Filters {
		ft := FilterType(f.Field)
		if lo.Contains(filterTypes, ft) && !lo.Contains(validFilters[ft], t) {
			return false
		}
	}
	return true
}

// where builds the filter clause for one statistic.
func (r *Request) where() clause.Where {
	return clause.Where{Exprs: []clause.Expression{types.FiltersAnd(r.Filters)}}
}

type ResponseDataItem struct {
	Date   string          `json:"date"`
	Label  string          `json:"label,omitempty"`
	Value  decimal.Decimal `json:"value"`
	Value2 int64           `json:"value2,omitempty"`
	Value3 int64           `json:"value3,omitempty"`
}

type Response struct {
	DataItems map[StatisticType][]ResponseDataItem `json:"data_items"`
}

type queryFunc func(ctx context.Context, req *Request) ([]ResponseDataItem, error)

// Service computes admin reporting series over the payment ledger,
// subscriptions and payout rows.
type Service struct {
	db      *gorm.DB
	queries map[StatisticType]queryFunc
	now     func() time.Time
}

func New(db *gorm.DB) *Service {
	s := &Service{db: db, now: time.Now}
	s.queries = map[StatisticType]queryFunc{
		StatisticTypeDailyPaymentCount:         s.dailyPaymentCount,
		StatisticTypeDailyCollected:            s.dailyCollected,
		StatisticTypeTotalCollected:            s.totalCollected,
		StatisticTypeDailyPaymentSuccessRate:   s.dailyPaymentSuccessRate,
		StatisticTypeActiveSubscriptionCount:   s.activeSubscriptionCount,
		StatisticTypeDailySubscriptionCount:    s.dailySubscriptionCount,
		StatisticTypeDailyNewSubscriptionCount: s.dailyNewSubscriptionCount,
		StatisticTypeMonthlyPayoutTotal:        s.monthlyPayoutTotal,
	}
	return s
}

func (s *Service) dailyPaymentCount(ctx context.Context, req *Request) ([]ResponseDataItem, error) {
	var results []ResponseDataItem
	err := s.db.WithContext(ctx).Table((models.Payment{}).TableName()).
		Select("TO_CHAR(paid_at, 'YYYY-MM-DD') as date, count(*) as value").
		Where("status = ?", types.PaymentStatusPaid).
		Where(req.where()).
		Group("TO_CHAR(paid_at, 'YYYY-MM-DD')").
		Order("date").
		Find(&results).Error
	return results, err
}

func (s *Service) dailyCollected(ctx context.Context, req *Request) ([]ResponseDataItem, error) {
	var results []ResponseDataItem
	err := s.db.WithContext(ctx).Table((models.Payment{}).TableName()).
		Select("TO_CHAR(paid_at, 'YYYY-MM-DD') as date, currency AS label, sum(amount) as value").
		Where("status = ?", types.PaymentStatusPaid).
		Where(req.where()).
		Group("TO_CHAR(paid_at, 'YYYY-MM-DD')").
		Group("currency").
		Order(clause.OrderByColumn{Column: clause.Column{Name: "date"}, Desc: true}).
		Find(&results).Error
	return results, err
}

// totalCollected is the running total per currency for every day since the
// first payment.
func (s *Service) totalCollected(ctx context.Context, _ *Request) ([]ResponseDataItem, error) {
	var results []ResponseDataItem
	err := s.db.WithContext(ctx).Raw(`
WITH paid AS (
    SELECT DATE(paid_at) AS day, currency, amount FROM payment WHERE status = ?
),
dates AS (
    SELECT generate_series(MIN(day), MAX(day), '1 day'::interval)::date AS day FROM paid
),
currencies AS (
    SELECT DISTINCT currency FROM paid
),
daily AS (
    SELECT d.day, c.currency, COALESCE(SUM(p.amount), 0) AS value
    FROM dates d
    CROSS JOIN currencies c
    LEFT JOIN paid p ON p.day = d.day AND p.currency = c.currency
    GROUP BY d.day, c.currency
)
SELECT TO_CHAR(day, 'YYYY-MM-DD') AS date, currency AS label,
       SUM(value) OVER (PARTITION BY currency ORDER BY day) AS value
FROM daily
ORDER BY date DESC, label ASC
`, types.PaymentStatusPaid).Scan(&results).Error
	return results, err
}

// dailyPaymentSuccessRate reports paid over all settled payments per day in
// basis points, with the totals in value2 (settled) and value3 (paid).
func (s *Service) dailyPaymentSuccessRate(ctx context.Context, req *Request) ([]ResponseDataItem, error) {
	var results []ResponseDataItem
	err := s.db.WithContext(ctx).Table((models.Payment{}).TableName()).
		Select(`TO_CHAR(created_at, 'YYYY-MM-DD') as date,
  CAST(ROUND(COUNT(*) FILTER (WHERE status = ?) * 10000.0 / COUNT(*)) AS INTEGER) as value,
  COUNT(*) as value2,
  COUNT(*) FILTER (WHERE status = ?) as value3`, types.PaymentStatusPaid, types.PaymentStatusPaid).
		Where(req.where()).
		Group("TO_CHAR(created_at, 'YYYY-MM-DD')").
		Order(clause.OrderByColumn{Column: clause.Column{Name: "date"}, Desc: true}).
		Find(&results).Error
	return results, err
}

func (s *Service) activeSubscriptionCount(ctx context.Context, req *Request) ([]ResponseDataItem, error) {
	var results []ResponseDataItem
	err := s.db.WithContext(ctx).Table((models.Subscription{}).TableName()).
		Select("? as date, count(*) as value", s.now().UTC().Format(time.DateOnly)).
		Where("status = ?", types.SubscriptionStatusActive).
		Where(req.where()).
		Find(&results).Error
	return results, err
}

func (s *Service) dailySubscriptionCount(ctx context.Context, req *Request) ([]ResponseDataItem, error) {
	var results []ResponseDataItem
	err := s.db.WithContext(ctx).Table((models.SubscriptionDailySnapshot{}).TableName()).
		Select("snapshot_date as date, status as label, count(*) as value").
		Where(req.where()).
		Group("snapshot_date").
		Group("status").
		Order("snapshot_date").
		Find(&results).Error
	return results, err
}

func (s *Service) dailyNewSubscriptionCount(ctx context.Context, req *Request) ([]ResponseDataItem, error) {
	var results []ResponseDataItem
	err := s.db.WithContext(ctx).Table((models.Subscription{}).TableName()).
		Select("TO_CHAR(created_at, 'YYYY-MM-DD') as date, count(DISTINCT user_id) as value").
		Where(req.where()).
		Group("TO_CHAR(created_at, 'YYYY-MM-DD')").
		Order(clause.OrderByColumn{Column: clause.Column{Name: "date"}, Desc: true}).
		Find(&results).Error
	return results, err
}

// monthlyPayoutTotal sums stored payouts per month; value2 is the number of
// recipients.
func (s *Service) monthlyPayoutTotal(ctx context.Context, req *Request) ([]ResponseDataItem, error) {
	var results []ResponseDataItem
	err := s.db.WithContext(ctx).Table((models.MonthlyCoachPayment{}).TableName()).
		Select("payment_month as date, sum(total_payment) as value, count(*) as value2").
		Where(req.where()).
		Group("payment_month").
		Order(clause.OrderByColumn{Column: clause.Column{Name: "date"}, Desc: true}).
		Find(&results).Error
	return results, err
}

// GetStatistics computes the requested series concurrently. A series whose
// restricted filters do not apply to it is returned empty.
func (s *Service) GetStatistics(ctx context.Context, request *Request) (*Response, error) {
	for _, di := range request.DataItems {
		if di == nil {
			return nil, fmt.Errorf("%w: empty data item", ErrUnknownStatistic)
		}
		if _, ok := s.queries[di.ID]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownStatistic, di.ID)
		}
	}
	for _, f := range request.Filters {
		if err := f.Validate(); err != nil {
			return nil, err
		}
	}

	var wg sync.WaitGroup
	errChan := make(chan error, len(request.DataItems))
	resChan := make(chan *lo.Entry[StatisticType, []ResponseDataItem], len(request.DataItems))

	for _, item := range request.DataItems {
		wg.Add(1)
		go func(di *DataItem) {
			defer wg.Done()
			if !request.applicable(di.ID) {
				resChan <- &lo.Entry[StatisticType, []ResponseDataItem]{Key: di.ID, Value: nil}
				return
			}
			res, err := s.queries[di.ID](ctx, request)
			if err != nil {
				errChan <- fmt.Errorf("%s: %w", di.ID, err)
				return
			}
			resChan <- &lo.Entry[StatisticType, []ResponseDataItem]{Key: di.ID, Value: res}
		}(item)
	}

	go func() { wg.Wait(); close(errChan); close(resChan) }()

	results := make(map[StatisticType][]ResponseDataItem)
	for i := 0; i < len(request.DataItems); i++ {
		select {
		case err := <-errChan:
			if err != nil {
				return nil, err
			}
		case entry := <-resChan:
			results[entry.Key] = entry.Value
		}
	}
	return &Response{DataItems: results}, nil
}
