package order

import (
	"errors"

	"gorm.io/gorm"

	"github.com/ksred/auction-api/internal/types"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) GetOrder(orderID string) (*types.Order, error) {
	var order types.Order
	if err := d.db.Where("order_id = ?", orderID).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

func (d *Database) GetOrderForAuction(auctionID, userID string) (*types.Order, error) {
	var order types.Order
	if err := d.db.Where("auction_id = ? AND user_id = ?", auctionID, userID).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

func (d *Database) ListOrders() ([]types.Order, error) {
	var orders []types.Order
	if err := d.db.Order("created_at DESC").Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (d *Database) CreateOrder(order *types.Order) error {
	return d.db.Create(order).Error
}

// UpdateStatusWithNotification persists the status change and the buyer's
// notification row as one atomic unit.
func (d *Database) UpdateStatusWithNotification(order *types.Order, n *types.Notification) error {
	tx := d.db.Begin()
	if err := tx.Error; err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Save(order).Error; err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Create(n).Error; err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}
