package market

import "errors"

// Every precondition violation maps to exactly one sentinel so callers
// can tell "too early" from "too small" from "already done" without
// string matching. Operations abort with no partial mutation: guards
// run before any write and all writes share one transaction.
var (
	ErrInvalidConfiguration = errors.New("invalid market configuration")
	ErrInvalidOutcome       = errors.New("invalid outcome")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInsufficientBond     = errors.New("creator bond below minimum")
	ErrCreationDisabled     = errors.New("market creation is disabled")

	ErrMarketNotFound  = errors.New("market not found")
	ErrAlreadyApproved = errors.New("market already approved")
	ErrAlreadyRejected = errors.New("market already rejected")
	ErrNotApproved     = errors.New("market not approved")
	ErrAlreadyActive   = errors.New("market already active")
	ErrBetsPlaced      = errors.New("market has bets placed")

	ErrPaused          = errors.New("betting is paused")
	ErrBetTooSmall     = errors.New("bet below minimum")
	ErrBetTooLarge     = errors.New("bet above maximum")
	ErrMarketNotActive = errors.New("market not active")

	ErrInsufficientPosition = errors.New("sell exceeds position")

	ErrMarketNotResolvable     = errors.New("market not resolvable yet")
	ErrAlreadyResolved         = errors.New("market already resolved")
	ErrMarketNotFinalized      = errors.New("market not finalized")
	ErrAlreadyFinalized        = errors.New("market already finalized")
	ErrDisputeWindowNotElapsed = errors.New("dispute window not elapsed")
	ErrDisputeWindowClosed     = errors.New("dispute window closed")
	ErrDuplicateDisputeSignal  = errors.New("duplicate dispute signal")

	ErrAlreadyClaimed = errors.New("reward already claimed")
	ErrNothingToClaim = errors.New("nothing to claim")

	ErrUnauthorized = errors.New("caller not authorized")

	ErrBondNotHeld = errors.New("bond not held")
)

// Code returns a stable machine-readable identifier for an error kind,
// used in API responses and event payloads.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrInvalidConfiguration):
		return "INVALID_CONFIGURATION"
	case errors.Is(err, ErrInvalidOutcome):
		return "INVALID_OUTCOME"
	case errors.Is(err, ErrInvalidAmount):
		return "INVALID_AMOUNT"
	case errors.Is(err, ErrInsufficientBond):
		return "INSUFFICIENT_BOND"
	case errors.Is(err, ErrCreationDisabled):
		return "CREATION_DISABLED"
	case errors.Is(err, ErrMarketNotFound):
		return "MARKET_NOT_FOUND"
	case errors.Is(err, ErrAlreadyApproved):
		return "ALREADY_APPROVED"
	case errors.Is(err, ErrAlreadyRejected):
		return "ALREADY_REJECTED"
	case errors.Is(err, ErrNotApproved):
		return "NOT_APPROVED"
	case errors.Is(err, ErrAlreadyActive):
		return "ALREADY_ACTIVE"
	case errors.Is(err, ErrBetsPlaced):
		return "BETS_PLACED"
	case errors.Is(err, ErrPaused):
		return "PAUSED"
	case errors.Is(err, ErrBetTooSmall):
		return "BET_TOO_SMALL"
	case errors.Is(err, ErrBetTooLarge):
		return "BET_TOO_LARGE"
	case errors.Is(err, ErrMarketNotActive):
		return "MARKET_NOT_ACTIVE"
	case errors.Is(err, ErrInsufficientPosition):
		return "INSUFFICIENT_POSITION"
	case errors.Is(err, ErrMarketNotResolvable):
		return "MARKET_NOT_RESOLVABLE"
	case errors.Is(err, ErrAlreadyResolved):
		return "ALREADY_RESOLVED"
	case errors.Is(err, ErrMarketNotFinalized):
		return "MARKET_NOT_FINALIZED"
	case errors.Is(err, ErrAlreadyFinalized):
		return "ALREADY_FINALIZED"
	case errors.Is(err, ErrDisputeWindowNotElapsed):
		return "DISPUTE_WINDOW_NOT_ELAPSED"
	case errors.Is(err, ErrDisputeWindowClosed):
		return "DISPUTE_WINDOW_CLOSED"
	case errors.Is(err, ErrDuplicateDisputeSignal):
		return "DUPLICATE_DISPUTE_SIGNAL"
	case errors.Is(err, ErrAlreadyClaimed):
		return "ALREADY_CLAIMED"
	case errors.Is(err, ErrNothingToClaim):
		return "NOTHING_TO_CLAIM"
	case errors.Is(err, ErrUnauthorized):
		return "UNAUTHORIZED"
	case errors.Is(err, ErrBondNotHeld):
		return "BOND_NOT_HELD"
	default:
		return "INTERNAL"
	}
}
