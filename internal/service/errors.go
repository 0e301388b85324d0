package service

import "errors"

var (
	// ErrNoCandidateAvailable is returned when no agent can take the order.
	ErrNoCandidateAvailable = errors.New("no candidate agent available")

	// ErrInvalidTransition is returned when an order cannot move to the requested state.
	ErrInvalidTransition = errors.New("invalid order transition")

	// ErrInsufficientFunds is returned when a debit exceeds the wallet balance.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrWalletInactive is returned when a withdrawal targets an inactive wallet.
	ErrWalletInactive = errors.New("wallet inactive")

	// ErrAmountOutOfRange is returned when a withdrawal is outside the configured limits.
	ErrAmountOutOfRange = errors.New("amount out of range")

	// ErrPayoutFailed is returned by payout processors that declined a transfer.
	ErrPayoutFailed = errors.New("payout failed")

	// ErrConfigMissing is returned when no RateConfig is stored.
	ErrConfigMissing = errors.New("rate config missing")

	// ErrInvalidAgentID is returned when agent ID is empty.
	ErrInvalidAgentID = errors.New("invalid agent id")

	// ErrInvalidOrderID is returned when order ID is empty.
	ErrInvalidOrderID = errors.New("invalid order id")

	// ErrInvalidLocation is returned when coordinates are out of range.
	ErrInvalidLocation = errors.New("invalid location")

	// ErrInvalidAmount is returned when a monetary amount is not positive.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidZone is returned when zone is empty.
	ErrInvalidZone = errors.New("invalid zone")

	// ErrInvalidPriority is returned for an unknown priority.
	ErrInvalidPriority = errors.New("invalid priority")

	// ErrInvalidRating is returned when a rating is outside 1..5.
	ErrInvalidRating = errors.New("invalid rating")

	// ErrInvalidWithdrawalMethod is returned when the payout method is empty.
	ErrInvalidWithdrawalMethod = errors.New("invalid withdrawal method")

	// ErrInvalidDestination is returned when the payout destination is empty.
	ErrInvalidDestination = errors.New("invalid withdrawal destination")

	// ErrInvalidTransactionType is returned when a type is not allowed for the operation.
	ErrInvalidTransactionType = errors.New("invalid transaction type")

	// ErrInvalidRateConfig is returned when a RateConfig update fails validation.
	ErrInvalidRateConfig = errors.New("invalid rate config")

	// ErrUnknownState is returned for an unknown order status.
	ErrUnknownState = errors.New("unknown order state")

	// ErrDuplicateSettlement is returned when an order-bound entry was already written.
	ErrDuplicateSettlement = errors.New("duplicate settlement")

	// ErrTransactionFinalized is returned when a withdrawal is no longer pending.
	ErrTransactionFinalized = errors.New("transaction already finalized")
)
