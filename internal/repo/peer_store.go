package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"vpnportal/internal/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)

type PeerStore struct{ db *gorm.DB }

func NewPeerStore(db *gorm.DB) *PeerStore { return &PeerStore{db: db} }

// CreatePeerAndConfiguration — одна транзакция: пользователь ещё существует?
// → вставить Configuration → вставить PeerConfig. Пара либо появляется целиком,
// либо не появляется вовсе. ErrNotFound, если пользователь исчез между
// валидацией запроса и коммитом.
func (s *PeerStore) CreatePeerAndConfiguration(ctx context.Context, userID string, peer *models.PeerConfig, conf *models.Configuration) (*models.PeerConfig, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var u models.User
		if err := tx.Where("id = ?", userID).First(&u).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		now := time.Now().UTC()
		if conf.ID == "" {
			conf.ID = uuid.NewString()
		}
		conf.CreatedAt, conf.UpdatedAt = now, now
		if err := tx.Create(conf).Error; err != nil {
			return err
		}

		if peer.ID == "" {
			peer.ID = uuid.NewString()
		}
		peer.UserID = userID
		peer.ConfigurationID = conf.ID
		peer.CreatedAt, peer.UpdatedAt = now, now
		return tx.Create(peer).Error
	})
	if err != nil {
		return nil, err
	}
	peer.Configuration = *conf
	return peer, nil
}

func (s *PeerStore) GetByID(ctx context.Context, id string) (*models.PeerConfig, error) {
	var p models.PeerConfig
	err := s.db.WithContext(ctx).Preload("Configuration").Preload("User").
		Where("id = ?", id).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PeerStore) GetByUserID(ctx context.Context, userID string) (*models.PeerConfig, error) {
	var p models.PeerConfig
	err := s.db.WithContext(ctx).Preload("Configuration").
		Where("user_id = ?", userID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetScoped — адресная выборка (id, userID): цель update должна быть точной.
func (s *PeerStore) GetScoped(ctx context.Context, id, userID string) (*models.PeerConfig, error) {
	var p models.PeerConfig
	err := s.db.WithContext(ctx).Preload("Configuration").
		Where("id = ? AND user_id = ?", id, userID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PeerStore) ExistsForUser(ctx context.Context, userID string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.PeerConfig{}).
		Where("user_id = ?", userID).Count(&n).Error
	return n > 0, err
}

// ListWithUsers — проекция для админской таблицы: пир + интерфейс + владелец.
func (s *PeerStore) ListWithUsers(ctx context.Context) ([]models.PeerConfig, error) {
	var peers []models.PeerConfig
	err := s.db.WithContext(ctx).Preload("Configuration").Preload("User").
		Order("created_at desc").Find(&peers).Error
	return peers, err
}

// UpdatePeer — частичное обновление: незаданные поля не трогаем
// (карту собирает сервис по merge-правилам).
func (s *PeerStore) UpdatePeer(ctx context.Context, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	fields["updated_at"] = time.Now().UTC()
	res := s.db.WithContext(ctx).Model(&models.PeerConfig{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeletePeerAndConfiguration — одна транзакция, порядок важен: сначала
// PeerConfig (он держит FK), затем его Configuration. Осиротевшая
// Configuration остаться не может.
func (s *PeerStore) DeletePeerAndConfiguration(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.PeerConfig
		if err := tx.Where("id = ?", id).First(&p).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if err := tx.Delete(&models.PeerConfig{}, "id = ?", p.ID).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Configuration{}, "id = ?", p.ConfigurationID).Error
	})
}
