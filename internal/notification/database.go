package notification

import (
	"gorm.io/gorm"

	"github.com/ksred/auction-api/internal/types"
)

const recentLimit = 10

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) Summary(userID string) (*types.NotificationSummary, error) {
	var unread int64
	if err := d.db.Model(&types.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&unread).Error; err != nil {
		return nil, err
	}

	var recent []types.Notification
	if err := d.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(recentLimit).
		Find(&recent).Error; err != nil {
		return nil, err
	}

	return &types.NotificationSummary{
		UnreadCount: unread,
		Recent:      recent,
	}, nil
}

func (d *Database) MarkAllRead(userID string) error {
	return d.db.Model(&types.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true).Error
}
