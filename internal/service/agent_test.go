package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

func newAgentService(f *fixture) *AgentService {
	svc := NewAgentService(f.store.Agents(), f.rates, nil, zap.NewNop())
	svc.now = f.clock.Now
	return svc
}

func TestAgentService_RegisterThenDispatch(t *testing.T) {
	f := newFixture(t)
	svc := newAgentService(f)
	ctx := context.Background()

	agent, err := svc.Register(ctx, RegisterAgentRequest{Name: "Dilnoza", Zones: []string{"downtown"}, Location: &pickupPoint})
	require.NoError(t, err)
	assert.Equal(t, domain.AgentStatusAvailable, agent.Status)

	w := f.wallet(t, agent.ID)
	assert.Equal(t, "USD", w.Currency)
	assert.True(t, w.IsActive)
	assert.Zero(t, w.CurrentBalance)

	res, err := f.dispatch.AssignOrder(ctx, assignRequest("downtown"))
	require.NoError(t, err)
	assert.Equal(t, agent.ID, res.AgentID)
}

func TestAgentService_RegisterValidation(t *testing.T) {
	f := newFixture(t)
	svc := newAgentService(f)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterAgentRequest{Name: "x"})
	assert.ErrorIs(t, err, ErrInvalidZone)
	_, err = svc.Register(ctx, RegisterAgentRequest{Zones: []string{""}})
	assert.ErrorIs(t, err, ErrInvalidZone)
	_, err = svc.Register(ctx, RegisterAgentRequest{Zones: []string{"a"}, Location: &domain.Coordinates{Lat: 95}})
	assert.ErrorIs(t, err, ErrInvalidLocation)

	f.rates.set(nil)
	_, err = svc.Register(ctx, RegisterAgentRequest{Zones: []string{"a"}})
	assert.ErrorIs(t, err, ErrConfigMissing)
}

func TestAgentService_UpdateLocation(t *testing.T) {
	f := newFixture(t)
	svc := newAgentService(f)
	ctx := context.Background()
	f.addAgent(t, "a1", "downtown", pickupPoint)

	at := domain.Coordinates{Lat: 41.2, Lng: 69.1}
	require.NoError(t, svc.UpdateLocation(ctx, "a1", at))
	got := f.agent(t, "a1").Location
	require.NotNil(t, got)
	assert.Equal(t, at, got.Coordinates)
	assert.Equal(t, f.clock.Now(), got.UpdatedAt)

	assert.ErrorIs(t, svc.UpdateLocation(ctx, "a1", domain.Coordinates{Lng: 200}), ErrInvalidLocation)
	assert.ErrorIs(t, svc.UpdateLocation(ctx, "", at), ErrInvalidAgentID)
	assert.ErrorIs(t, svc.UpdateLocation(ctx, "ghost", at), repository.ErrNotFound)
}
