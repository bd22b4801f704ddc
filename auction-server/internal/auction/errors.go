package auction

import "errors"

// Kind classifies engine errors.
type Kind int

const (
	KindUnknown Kind = iota
	// KindValidation: the request was rejected, nothing changed.
	KindValidation
	// KindNotFound: the house or auction does not exist.
	KindNotFound
	// KindIntegrity: a record violates an invariant; it is logged and dropped.
	KindIntegrity
	// KindConfig: the engine is misconfigured. Fatal at startup.
	KindConfig
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindIntegrity:
		return "integrity"
	case KindConfig:
		return "config"
	default:
		return "unknown"
	}
}

// Error is an auction engine error. Sentinels are compared with errors.Is.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnknown
}

var (
	ErrBidTooLow          = &Error{KindValidation, "bid too low"}
	ErrSelfBid            = &Error{KindValidation, "already the highest bidder"}
	ErrOwnAuction         = &Error{KindValidation, "cannot bid on own auction"}
	ErrInsufficientFunds  = &Error{KindValidation, "not enough money"}
	ErrNoBuyoutOffered    = &Error{KindValidation, "no buyout offered"}
	ErrInvalidBidder      = &Error{KindValidation, "bidder is required"}
	ErrAuctionExpired     = &Error{KindValidation, "auction has expired"}
	ErrDurationTooShort   = &Error{KindValidation, "auction duration below minimum"}
	ErrDurationTooLong    = &Error{KindValidation, "auction duration above maximum"}
	ErrInvalidPrice       = &Error{KindValidation, "starting bid must be positive"}
	ErrBuyoutBelowStart   = &Error{KindValidation, "buyout below starting bid"}
	ErrDepositMismatch    = &Error{KindValidation, "deposit does not match"}
	ErrInvalidItem        = &Error{KindValidation, "invalid item"}
	ErrItemAlreadyListed  = &Error{KindValidation, "item is already listed"}
	ErrHasBids            = &Error{KindValidation, "auction has bids"}
	ErrNotOwner           = &Error{KindValidation, "not the auction owner"}
	ErrAuctionNotFound    = &Error{KindNotFound, "auction not found"}
	ErrUnknownHouse       = &Error{KindNotFound, "unknown auction house"}
	ErrUnknownItem        = &Error{KindNotFound, "unknown item template"}
	ErrDuplicateID        = &Error{KindIntegrity, "duplicate auction id"}
	ErrWrongHouse         = &Error{KindIntegrity, "auction belongs to another house"}
	ErrUnresolvedItem     = &Error{KindIntegrity, "auction item not in escrow"}
	ErrCorruptEntry       = &Error{KindIntegrity, "corrupt auction entry"}
	ErrInvalidHouseConfig = &Error{KindConfig, "invalid auction house config"}
	ErrMissingDependency  = &Error{KindConfig, "missing dependency"}
	ErrItemsNotLoaded     = &Error{KindConfig, "escrow items must be loaded before auctions"}
)
