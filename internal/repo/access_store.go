package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"vpnportal/internal/models"
)

type AccessRequestStore struct{ db *gorm.DB }

func NewAccessRequestStore(db *gorm.DB) *AccessRequestStore { return &AccessRequestStore{db: db} }

func (s *AccessRequestStore) Create(ctx context.Context, r *models.AccessRequest) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Status == "" {
		r.Status = models.AccessPending
	}
	now := time.Now().UTC()
	r.CreatedAt, r.UpdatedAt = now, now
	return s.db.WithContext(ctx).Create(r).Error
}

func (s *AccessRequestStore) GetByID(ctx context.Context, id string) (*models.AccessRequest, error) {
	var r models.AccessRequest
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *AccessRequestStore) CountByEmail(ctx context.Context, email string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.AccessRequest{}).
		Where("email = ?", email).Count(&n).Error
	return n, err
}

func (s *AccessRequestStore) List(ctx context.Context) ([]models.AccessRequest, error) {
	var reqs []models.AccessRequest
	err := s.db.WithContext(ctx).Order("created_at desc").Find(&reqs).Error
	return reqs, err
}

func (s *AccessRequestStore) UpdateStatus(ctx context.Context, id, status string) (*models.AccessRequest, error) {
	r, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.Status = status
	r.UpdatedAt = time.Now().UTC()
	if err := s.db.WithContext(ctx).Save(r).Error; err != nil {
		return nil, err
	}
	return r, nil
}

func (s *AccessRequestStore) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&models.AccessRequest{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
