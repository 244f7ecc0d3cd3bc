package auction

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/ksred/auction-api/internal/types"
)

const historyLimit = 10

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) CreateAuction(auction *types.Auction) error {
	return d.db.Create(auction).Error
}

func (d *Database) GetAuction(auctionID string) (*types.Auction, error) {
	var auction types.Auction
	if err := d.db.Where("auction_id = ?", auctionID).First(&auction).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &auction, nil
}

// ListActive returns auctions that have not yet ended, newest first,
// optionally filtered by category.
func (d *Database) ListActive(category string, now time.Time) ([]types.Auction, error) {
	query := d.db.Where("end_time > ?", now).Order("created_at DESC")
	if category != "" {
		query = query.Where("category = ?", category)
	}

	var auctions []types.Auction
	if err := query.Find(&auctions).Error; err != nil {
		return nil, err
	}
	return auctions, nil
}

// RecentBids returns the latest bids for display on the detail page.
// Bid history is append-only, so this read takes no lock.
func (d *Database) RecentBids(auctionID string) ([]types.Bid, error) {
	var bids []types.Bid
	if err := d.db.Where("auction_id = ?", auctionID).
		Order("bid_time DESC").
		Limit(historyLimit).
		Find(&bids).Error; err != nil {
		return nil, err
	}
	return bids, nil
}

func (d *Database) CountBids(auctionID string) (int64, error) {
	var count int64
	err := d.db.Model(&types.Bid{}).Where("auction_id = ?", auctionID).Count(&count).Error
	return count, err
}

func (d *Database) UpdateAuction(auction *types.Auction) error {
	return d.db.Save(auction).Error
}

// DeleteAuction removes an auction and its bids in one transaction
// (admin moderation only).
func (d *Database) DeleteAuction(auctionID string) error {
	tx := d.db.Begin()
	if err := tx.Error; err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Where("auction_id = ?", auctionID).Delete(&types.Bid{}).Error; err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Where("auction_id = ?", auctionID).Delete(&types.Auction{}).Error; err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}

// ExpiredActive returns auctions whose end time has passed but are still
// marked active, for the close processor.
func (d *Database) ExpiredActive(now time.Time) ([]types.Auction, error) {
	var auctions []types.Auction
	if err := d.db.Where("status = ? AND end_time <= ?", types.AuctionStatusActive, now).
		Find(&auctions).Error; err != nil {
		return nil, err
	}
	return auctions, nil
}

// WinningBid returns the top bid by (amount DESC, bid_time ASC), or nil
// when the auction received no bids.
func (d *Database) WinningBid(auctionID string) (*types.Bid, error) {
	var bid types.Bid
	if err := d.db.Where("auction_id = ?", auctionID).
		Order("amount DESC, bid_time ASC").
		First(&bid).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &bid, nil
}

// CloseAuction marks an ended auction closed and, when a winner exists,
// writes the winner notification in the same transaction. Returns the
// notification for the post-commit push, or nil when there was no winner.
func (d *Database) CloseAuction(auction *types.Auction, winnerNotification *types.Notification) error {
	tx := d.db.Begin()
	if err := tx.Error; err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Model(&types.Auction{}).
		Where("auction_id = ? AND status = ?", auction.AuctionID, types.AuctionStatusActive).
		Update("status", types.AuctionStatusEnded).Error; err != nil {
		tx.Rollback()
		return err
	}

	if winnerNotification != nil {
		if err := tx.Create(winnerNotification).Error; err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit().Error
}
