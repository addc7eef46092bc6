package assignment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/fatflowers/coachpay/internal/models"
	"github.com/fatflowers/coachpay/pkg/types"
)

// CoachRecord joins a coach's account, profile and limit for one service.
type CoachRecord struct {
	CoachID         string
	Active          bool
	Status          types.CoachStatus
	Specializations []string
	LastAssignedAt  *time.Time
	// MaxClients is nil when the coach has no limit for the service.
	MaxClients *int
}

// Eligible reports whether the coach may take clients for the service at all.
func (c *CoachRecord) Eligible() bool {
	return c != nil && c.Active && c.Status == types.CoachStatusApproved && c.MaxClients != nil
}

type Repository interface {
	ServiceType(ctx context.Context, serviceID string) (types.ServiceType, error)
	// GetCoach returns nil when the user is not a coach.
	GetCoach(ctx context.Context, coachID, serviceID string) (*CoachRecord, error)
	// ListCoachesWithLimit returns eligible coaches that have a limit for serviceID.
	ListCoachesWithLimit(ctx context.Context, serviceID string) ([]*CoachRecord, error)
	// CountClients counts pending and active subscriptions of a coach, for one
	// service or across all services when serviceID is empty.
	CountClients(ctx context.Context, coachID, serviceID string) (int, error)
	TouchLastAssigned(ctx context.Context, coachID string, at time.Time) error
}

type gormRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository { return &gormRepository{db: db} }

func (r *gormRepository) ServiceType(ctx context.Context, serviceID string) (types.ServiceType, error) {
	var p models.ServicePricing
	err := r.db.WithContext(ctx).Where("service_id = ?", serviceID).Take(&p).Error
	if err != nil {
		return "", fmt.Errorf("service %s: %w", serviceID, err)
	}
	return p.ServiceType, nil
}

type coachRow struct {
	UserID          string
	Active          bool
	Status          types.CoachStatus
	Specializations datatypes.JSONType[[]string]
	LastAssignedAt  *time.Time
	MaxClients      *int
}

func (r *gormRepository) coachQuery(ctx context.Context, serviceID string) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("app_user AS u").
		Select("u.id AS user_id, u.active, p.status, p.specializations, p.last_assigned_at, l.max_clients").
		Joins("JOIN coach_profile AS p ON p.user_id = u.id").
		Joins("LEFT JOIN coach_service_limit AS l ON l.coach_id = u.id AND l.service_id = ?", serviceID).
		Where("u.role = ?", types.UserRoleCoach)
}

func toRecord(row coachRow) *CoachRecord {
	return &CoachRecord{
		CoachID:         row.UserID,
		Active:          row.Active,
		Status:          row.Status,
		Specializations: row.Specializations.Data(),
		LastAssignedAt:  row.LastAssignedAt,
		MaxClients:      row.MaxClients,
	}
}

func (r *gormRepository) GetCoach(ctx context.Context, coachID, serviceID string) (*CoachRecord, error) {
	var row coachRow
	err := r.coachQuery(ctx, serviceID).Where("u.id = ?", coachID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toRecord(row), nil
}

func (r *gormRepository) ListCoachesWithLimit(ctx context.Context, serviceID string) ([]*CoachRecord, error) {
	var rows []coachRow
	err := r.coachQuery(ctx, serviceID).
		Where("u.active = ? AND p.status = ? AND l.max_clients IS NOT NULL", true, types.CoachStatusApproved).
		Order("u.id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]*CoachRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, toRecord(row))
	}
	return out, nil
}

func (r *gormRepository) CountClients(ctx context.Context, coachID, serviceID string) (int, error) {
	q := r.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("coach_id = ? AND status IN ?", coachID, []types.SubscriptionStatus{types.SubscriptionStatusPending, types.SubscriptionStatusActive})
	if serviceID != "" {
		q = q.Where("service_id = ?", serviceID)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return 0, err
	}
	return int(n), nil
}

func (r *gormRepository) TouchLastAssigned(ctx context.Context, coachID string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.CoachProfile{}).
		Where("user_id = ?", coachID).
		UpdateColumn("last_assigned_at", at).Error
}
