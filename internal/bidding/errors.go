package bidding

import "errors"

// Validation rejections: deterministic, caller-facing, never retried
// automatically. Each maps to a distinct precondition in PlaceBid,
// checked in this order.
var (
	ErrNotVerified     = errors.New("bidder must verify their email before bidding")
	ErrAuctionNotFound = errors.New("auction not found")
	ErrSelfBid         = errors.New("sellers cannot bid on their own auction")
	ErrAuctionEnded    = errors.New("auction has ended")
	ErrBidTooLow       = errors.New("bid must be higher than the current price")
)

// ErrContention is a transient failure: the per-auction lock was not
// granted within the bounded wait. Nothing was persisted, so the caller
// may safely retry.
var ErrContention = errors.New("auction is busy, try again")

// IsRejection reports whether err is a terminal validation rejection
// rather than a retryable fault.
func IsRejection(err error) bool {
	for _, rejection := range []error{ErrNotVerified, ErrAuctionNotFound, ErrSelfBid, ErrAuctionEnded, ErrBidTooLow} {
		if errors.Is(err, rejection) {
			return true
		}
	}
	return false
}
