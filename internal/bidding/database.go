package bidding

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ksred/auction-api/internal/auth"
	"github.com/ksred/auction-api/internal/notification"
	"github.com/ksred/auction-api/internal/types"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// commitResult carries everything the post-commit side effects need, so
// no reads happen outside the transaction.
type commitResult struct {
	Bid          types.Bid
	CurrentPrice decimal.Decimal
	AuctionTitle string
	Outbid       *types.Notification // nil when no previous leader, or leader re-bid
}

// CommitBid runs the read-validate-write sequence as one transaction.
// The caller must already hold the per-auction lock: the price is
// re-read here, inside the critical section, so validation never acts
// on a stale value. On any error the transaction is rolled back and
// nothing persists.
func (d *Database) CommitBid(identity auth.Identity, auctionID string, amount decimal.Decimal, now time.Time) (*commitResult, error) {
	tx := d.db.Begin()
	if err := tx.Error; err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	var auction types.Auction
	if err := tx.Where("auction_id = ?", auctionID).First(&auction).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAuctionNotFound
		}
		return nil, err
	}

	if auction.SellerID == identity.UserID {
		tx.Rollback()
		return nil, ErrSelfBid
	}

	if !auction.EndTime.After(now) {
		tx.Rollback()
		return nil, ErrAuctionEnded
	}

	if amount.Cmp(auction.CurrentPrice) <= 0 {
		tx.Rollback()
		return nil, fmt.Errorf("%w: current price is %s", ErrBidTooLow, auction.CurrentPrice.StringFixed(2))
	}

	// Capture the displaced leader before the new bid lands.
	var previous types.Bid
	hasPrevious := true
	if err := tx.Where("auction_id = ?", auctionID).
		Order("amount DESC, bid_time ASC").
		First(&previous).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			tx.Rollback()
			return nil, err
		}
		hasPrevious = false
	}

	bid := types.Bid{
		BidID:     "BID_" + uuid.New().String(),
		AuctionID: auctionID,
		UserID:    identity.UserID,
		UserName:  identity.UserName,
		Amount:    amount,
		BidTime:   now,
	}
	if err := tx.Create(&bid).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Model(&types.Auction{}).
		Where("auction_id = ?", auctionID).
		Update("current_price", amount).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	result := &commitResult{
		Bid:          bid,
		CurrentPrice: amount,
		AuctionTitle: auction.Title,
	}

	if hasPrevious && previous.UserID != identity.UserID {
		outbid := notification.NewOutbid(previous.UserID, auction.Title, auctionID, now)
		if err := tx.Create(&outbid).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
		result.Outbid = &outbid
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	return result, nil
}
