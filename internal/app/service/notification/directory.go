package notification

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/fatflowers/coachpay/internal/models"
)

var ErrNoRecipient = errors.New("recipient has no email address")

type Recipient struct {
	Email string
	Name  string
}

// Directory resolves user ids to email recipients.
type Directory interface {
	Recipient(ctx context.Context, userID string) (*Recipient, error)
}

type gormDirectory struct {
	db *gorm.DB
}

func NewDirectory(db *gorm.DB) Directory { return &gormDirectory{db: db} }

func (d *gormDirectory) Recipient(ctx context.Context, userID string) (*Recipient, error) {
	var u models.User
	if err := d.db.WithContext(ctx).Select("id", "email", "full_name").Where("id = ?", userID).Take(&u).Error; err != nil {
		return nil, fmt.Errorf("load user %s: %w", userID, err)
	}
	if u.Email == "" {
		return nil, ErrNoRecipient
	}
	return &Recipient{Email: u.Email, Name: u.FullName}, nil
}
