package models

import (
	"strings"
	"time"

	"github.com/fatflowers/coachpay/pkg/types"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// User is any account on the platform: client, coach, staff or admin.
type User struct {
	ID       string         `gorm:"column:id;type:uuid;primary_key" json:"id"`
	Email    string         `gorm:"column:email;type:varchar(255);not null;uniqueIndex" json:"email"`
	FullName string         `gorm:"column:full_name;type:varchar(255)" json:"full_name"`
	Role     types.UserRole `gorm:"column:role;type:varchar(32);not null;index" json:"role"`
	// PaymentExempt users never contribute to coach payouts.
	PaymentExempt bool      `gorm:"column:payment_exempt;not null;default:false" json:"payment_exempt"`
	Active        bool      `gorm:"column:active;not null;default:true" json:"active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (User) TableName() string { return "app_user" }

// CoachProfile carries the assignment attributes of a coach.
type CoachProfile struct {
	UserID string            `gorm:"column:user_id;type:uuid;primary_key" json:"user_id"`
	Status types.CoachStatus `gorm:"column:status;type:varchar(32);not null" json:"status"`
	// Specializations are stored lower-cased.
	Specializations datatypes.JSONType[[]string] `gorm:"column:specializations;type:jsonb;default:'[]'" json:"specializations"`
	LastAssignedAt  *time.Time                   `gorm:"column:last_assigned_at;default:null" json:"last_assigned_at"`
	CreatedAt       time.Time                    `json:"created_at"`
	UpdatedAt       time.Time                    `json:"updated_at"`
}

func (CoachProfile) TableName() string { return "coach_profile" }

func (p *CoachProfile) BeforeSave(*gorm.DB) error {
	specs := p.Specializations.Data()
	normalized := make([]string, 0, len(specs))
	for _, s := range specs {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			normalized = append(normalized, s)
		}
	}
	p.Specializations = datatypes.NewJSONType(normalized)
	return nil
}

// CoachServiceLimit is the capacity ceiling of one coach for one service.
// A coach without a row for a service is never auto-assigned to it.
type CoachServiceLimit struct {
	CoachID    string    `gorm:"column:coach_id;type:uuid;primary_key" json:"coach_id"`
	ServiceID  string    `gorm:"column:service_id;type:varchar(64);primary_key" json:"service_id"`
	MaxClients int       `gorm:"column:max_clients;not null" json:"max_clients"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (CoachServiceLimit) TableName() string { return "coach_service_limit" }
