package domain

import (
	"encoding/json"
	"fmt"
)

// TransactionMetadata is the per-type payload of a ledger entry.
// Exactly one variant exists per TransactionType.
type TransactionMetadata interface {
	TransactionType() TransactionType
}

// DeliveryPaymentMetadata carries the full fee breakdown of a settled delivery.
type DeliveryPaymentMetadata struct {
	BaseFee             float64   `json:"base_fee"`
	DistanceFee         float64   `json:"distance_fee"`
	TimeFee             float64   `json:"time_fee"`
	BasePayment         float64   `json:"base_payment"`
	Bonus               float64   `json:"bonus"`
	BonusType           BonusType `json:"bonus_type,omitempty"`
	CommissionDeduction float64   `json:"commission_deduction"`
	DistanceKm          float64   `json:"distance_km"`
	DeliveryTimeMinutes int       `json:"delivery_time_minutes"`
	Rating              *float64  `json:"rating,omitempty"`
	Zone                string    `json:"zone"`
	Weather             string    `json:"weather"`
	PeakHours           bool      `json:"peak_hours"`
	Priority            Priority  `json:"priority"`
}

// BonusMetadata describes a standalone bonus credit.
type BonusMetadata struct {
	BonusType BonusType `json:"bonus_type"`
	Reason    string    `json:"reason"`
}

// WithdrawalMetadata describes a payout request.
type WithdrawalMetadata struct {
	Method          string `json:"method"`
	Destination     string `json:"destination"`
	PayoutReference string `json:"payout_reference,omitempty"`
	FailureReason   string `json:"failure_reason,omitempty"`
}

// RefundMetadata describes a refund credit.
type RefundMetadata struct {
	Reason                string `json:"reason"`
	OriginalTransactionID string `json:"original_transaction_id,omitempty"`
}

// PenaltyMetadata describes a penalty debit.
type PenaltyMetadata struct {
	Reason string `json:"reason"`
}

// AdjustmentMetadata describes a manual balance correction.
type AdjustmentMetadata struct {
	Reason     string `json:"reason"`
	OperatorID string `json:"operator_id,omitempty"`
}

func (DeliveryPaymentMetadata) TransactionType() TransactionType { return TransactionDeliveryPayment }
func (BonusMetadata) TransactionType() TransactionType           { return TransactionBonus }
func (WithdrawalMetadata) TransactionType() TransactionType      { return TransactionWithdrawal }
func (RefundMetadata) TransactionType() TransactionType          { return TransactionRefund }
func (PenaltyMetadata) TransactionType() TransactionType         { return TransactionPenalty }
func (AdjustmentMetadata) TransactionType() TransactionType      { return TransactionAdjustment }

// MarshalMetadata encodes metadata for storage. A nil value encodes as JSON null.
func MarshalMetadata(m TransactionMetadata) ([]byte, error) {
	if m == nil {
		return []byte("null"), nil
	}
	return json.Marshal(m)
}

// UnmarshalMetadata decodes stored metadata into the variant matching t.
func UnmarshalMetadata(t TransactionType, data []byte) (TransactionMetadata, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}

	var (
		m   TransactionMetadata
		err error
	)
	switch t {
	case TransactionDeliveryPayment:
		var v DeliveryPaymentMetadata
		err = json.Unmarshal(data, &v)
		m = v
	case TransactionBonus:
		var v BonusMetadata
		err = json.Unmarshal(data, &v)
		m = v
	case TransactionWithdrawal:
		var v WithdrawalMetadata
		err = json.Unmarshal(data, &v)
		m = v
	case TransactionRefund:
		var v RefundMetadata
		err = json.Unmarshal(data, &v)
		m = v
	case TransactionPenalty:
		var v PenaltyMetadata
		err = json.Unmarshal(data, &v)
		m = v
	case TransactionAdjustment:
		var v AdjustmentMetadata
		err = json.Unmarshal(data, &v)
		m = v
	default:
		return nil, fmt.Errorf("unknown transaction type %q", t)
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}
