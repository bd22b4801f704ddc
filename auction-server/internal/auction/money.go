package auction

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// DepositPolicy decides what happens to the deposit of an auction that
// expires unsold. A sold auction never returns its deposit.
type DepositPolicy string

const (
	DepositForfeit DepositPolicy = "forfeit"
	DepositRefund  DepositPolicy = "refund"
)

// Economy holds the server-wide money rules shared by all houses.
type Economy struct {
	OutbidPercent int64 // minimum raise, percent of the current bid
	MinOutbid     int64 // minimum raise floor
	MinDeposit    int64
	DepositRate   decimal.Decimal
	CutRate       decimal.Decimal
	DepositPolicy DepositPolicy
}

// DefaultEconomy returns 5% outbid steps, unit rates and forfeited deposits.
func DefaultEconomy() Economy {
	return Economy{
		OutbidPercent: 5,
		MinOutbid:     1,
		DepositRate:   decimal.NewFromInt(1),
		CutRate:       decimal.NewFromInt(1),
		DepositPolicy: DepositForfeit,
	}
}

func (e Economy) validate() error {
	if e.OutbidPercent < 0 || e.MinOutbid < 1 || e.MinDeposit < 0 {
		return fmt.Errorf("%w: invalid outbid or deposit floor", ErrInvalidHouseConfig)
	}
	if e.DepositRate.IsNegative() || e.CutRate.IsNegative() {
		return fmt.Errorf("%w: negative rate", ErrInvalidHouseConfig)
	}
	switch e.DepositPolicy {
	case DepositForfeit, DepositRefund:
	default:
		return fmt.Errorf("%w: unknown deposit policy %q", ErrInvalidHouseConfig, e.DepositPolicy)
	}
	return nil
}

// MinIncrement is the smallest raise over the current bid: OutbidPercent of
// the bid rounded up to a whole unit, never below MinOutbid.
func (e Economy) MinIncrement(bid int64) int64 {
	inc := decimal.NewFromInt(bid).
		Mul(decimal.NewFromInt(e.OutbidPercent)).
		Div(hundred).
		Ceil().
		IntPart()
	if inc < e.MinOutbid {
		inc = e.MinOutbid
	}
	return inc
}

// Cut is the commission the house keeps from a sale at price.
func (e Economy) Cut(h House, price int64) int64 {
	if price <= 0 {
		return 0
	}
	cut := decimal.NewFromInt(price).
		Mul(decimal.NewFromInt(h.CutPercent)).
		Div(hundred).
		Mul(e.CutRate).
		Floor().
		IntPart()
	if h.MaxCut > 0 && cut > h.MaxCut {
		cut = h.MaxCut
	}
	if cut > price {
		cut = price
	}
	return cut
}

// Deposit is the listing fee: a share of the stack's vendor value for every
// whole MinDuration of listing time (at least one).
func (e Economy) Deposit(h House, duration time.Duration, tpl ItemTemplate, count uint32) int64 {
	units := int64(duration / h.MinDuration)
	if units < 1 {
		units = 1
	}
	deposit := decimal.NewFromInt(tpl.SellPrice).
		Mul(decimal.NewFromInt(int64(count))).
		Mul(decimal.NewFromInt(units)).
		Mul(decimal.NewFromInt(h.DepositPercent)).
		Div(hundred).
		Mul(e.DepositRate).
		Floor().
		IntPart()
	if deposit < e.MinDeposit {
		deposit = e.MinDeposit
	}
	return deposit
}
