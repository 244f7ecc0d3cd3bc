package auction

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/ksred/auction-api/internal/broadcast"
	"github.com/ksred/auction-api/internal/notification"
	"github.com/ksred/auction-api/internal/types"
)

// Processor closes auctions whose end time has passed: it flips the
// status to ENDED and notifies the winner exactly once. Bid validity is
// always decided against end_time, never against the status flag, so a
// delayed tick can never extend an auction.
type Processor struct {
	db       *Database
	registry *broadcast.Registry
	interval time.Duration
	now      func() time.Time
}

// NewProcessor creates an auction close processor
func NewProcessor(gormDB *gorm.DB, registry *broadcast.Registry, interval time.Duration) *Processor {
	return &Processor{
		db:       NewDatabase(gormDB),
		registry: registry,
		interval: interval,
		now:      time.Now,
	}
}

// Start begins the close processing loop
func (p *Processor) Start(ctx context.Context) {
	logger := log.With().Str("component", "auction_closer").Logger()
	logger.Info().Msg("starting auction close processor")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down auction close processor")
			return
		case <-ticker.C:
			if err := p.CloseExpired(); err != nil {
				logger.Error().Err(err).Msg("failed to close expired auctions")
			}
		}
	}
}

// CloseExpired processes every auction past its end time that is still
// marked active. Exposed for tests and for a final sweep at shutdown.
func (p *Processor) CloseExpired() error {
	logger := log.With().Str("component", "auction_closer").Logger()
	now := p.now()

	expired, err := p.db.ExpiredActive(now)
	if err != nil {
		return err
	}

	for i := range expired {
		auction := &expired[i]

		winner, err := p.db.WinningBid(auction.AuctionID)
		if err != nil {
			logger.Error().Err(err).Str("auction_id", auction.AuctionID).Msg("failed to determine winner")
			continue
		}

		var won *types.Notification
		if winner != nil {
			n := notification.NewAuctionWon(winner.UserID, auction.Title, auction.AuctionID, now)
			won = &n
		}

		if err := p.db.CloseAuction(auction, won); err != nil {
			logger.Error().Err(err).Str("auction_id", auction.AuctionID).Msg("failed to close auction")
			continue
		}

		logger.Info().
			Str("auction_id", auction.AuctionID).
			Bool("has_winner", winner != nil).
			Msg("auction closed")

		if won != nil {
			p.registry.Publish(
				broadcast.UserTopic(won.UserID),
				types.EventNewNotification,
				types.NotificationEventFrom(won),
			)
		}
	}

	return nil
}
