package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"git.sr.ht/~aondrejcak/policy-console/models"
)

type Gorm struct {
	db *gorm.DB
}

func NewGorm(db *gorm.DB) *Gorm {
	return &Gorm{db: db}
}

func (g *Gorm) Migrate() error {
	return g.db.AutoMigrate(&models.Session{}, &models.ChatMessage{}, &models.Operator{})
}

func (g *Gorm) Session(ctx context.Context, id string) (*models.Session, error) {
	var s models.Session
	if err := g.db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !s.ExpiresAt.IsZero() && s.ExpiresAt.Before(time.Now()) {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (g *Gorm) SaveSession(ctx context.Context, s *models.Session) error {
	return g.db.WithContext(ctx).Save(s).Error
}

func (g *Gorm) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	db := g.db.WithContext(ctx)
	expired := db.Model(&models.Session{}).Select("id").Where("expires_at < ?", now)

	if err := db.Where("session_id IN (?)", expired).Delete(&models.ChatMessage{}).Error; err != nil {
		return 0, err
	}
	res := db.Where("expires_at < ?", now).Delete(&models.Session{})
	return res.RowsAffected, res.Error
}

func (g *Gorm) AppendMessages(ctx context.Context, sessionID string, msgs ...models.ChatMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	for i := range msgs {
		msgs[i].SessionID = sessionID
	}
	return g.db.WithContext(ctx).Create(&msgs).Error
}

func (g *Gorm) Messages(ctx context.Context, sessionID string) ([]models.ChatMessage, error) {
	var msgs []models.ChatMessage
	err := g.db.WithContext(ctx).Where("session_id = ?", sessionID).Order("id asc").Find(&msgs).Error
	return msgs, err
}

func (g *Gorm) Operator(ctx context.Context, email string) (*models.Operator, error) {
	var op models.Operator
	if err := g.db.WithContext(ctx).First(&op, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &op, nil
}

func (g *Gorm) SaveOperator(ctx context.Context, op *models.Operator) error {
	return g.db.WithContext(ctx).Save(op).Error
}

func (g *Gorm) CountOperators(ctx context.Context) (int64, error) {
	var n int64
	err := g.db.WithContext(ctx).Model(&models.Operator{}).Count(&n).Error
	return n, err
}
