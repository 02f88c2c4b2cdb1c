package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"vpnportal/internal/models"
)

type EmailStore struct{ db *gorm.DB }

func NewEmailStore(db *gorm.DB) *EmailStore { return &EmailStore{db: db} }

func (s *EmailStore) Create(ctx context.Context, e *models.EmailLog) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.CreatedAt = time.Now().UTC()
	return s.db.WithContext(ctx).Create(e).Error
}
