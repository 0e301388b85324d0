package service

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// PayoutRequest asks the external processor to transfer a reserved withdrawal.
type PayoutRequest struct {
	TransactionID string
	Amount        float64
	Currency      string
	Method        string
	Destination   string
}

// PayoutResult is the processor's answer. A declined transfer is a normal
// result with Success false.
type PayoutResult struct {
	Success       bool
	Reference     string
	FailureReason string
}

// PayoutProcessor is the interface for the external payout collaborator.
type PayoutProcessor interface {
	Payout(ctx context.Context, req PayoutRequest) (PayoutResult, error)
}

// MockPayout is an in-process PayoutProcessor. It succeeds unless told to fail.
type MockPayout struct {
	mu       sync.Mutex
	fail     bool
	err      error
	requests []PayoutRequest
}

// NewMockPayout creates a new mock payout processor.
func NewMockPayout() *MockPayout {
	return &MockPayout{}
}

// FailWith makes subsequent payouts decline; a non-nil err is returned as a transport error.
func (p *MockPayout) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fail = true
	p.err = err
}

// Requests returns the payouts received so far.
func (p *MockPayout) Requests() []PayoutRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]PayoutRequest(nil), p.requests...)
}

// Payout records req and answers according to the configured behavior.
// It honors ctx cancellation.
func (p *MockPayout) Payout(ctx context.Context, req PayoutRequest) (PayoutResult, error) {
	if err := ctx.Err(); err != nil {
		return PayoutResult{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)

	if p.fail {
		if p.err != nil {
			return PayoutResult{}, p.err
		}
		return PayoutResult{FailureReason: ErrPayoutFailed.Error()}, nil
	}
	return PayoutResult{Success: true, Reference: "mock-" + uuid.NewString()}, nil
}
