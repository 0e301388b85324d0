package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"dispatch/internal/domain"
	"dispatch/internal/redis"
	"dispatch/internal/repository"
)

// AgentService registers couriers and records their positions.
type AgentService struct {
	agentRepo     repository.AgentRepository
	rates         RateConfigSource
	locationStore redis.LocationStoreInterface
	logger        *zap.Logger
	now           func() time.Time
}

// NewAgentService creates a new AgentService. locationStore may be nil.
func NewAgentService(
	agentRepo repository.AgentRepository,
	rates RateConfigSource,
	locationStore redis.LocationStoreInterface,
	logger *zap.Logger,
) *AgentService {
	return &AgentService{
		agentRepo:     agentRepo,
		rates:         rates,
		locationStore: locationStore,
		logger:        logger.Named("agent"),
		now:           time.Now,
	}
}

// RegisterAgentRequest contains the details of a new courier.
type RegisterAgentRequest struct {
	Name     string
	Phone    string
	Zones    []string
	Location *domain.Coordinates
}

// Register creates an available agent with an empty wallet in the configured currency.
func (s *AgentService) Register(ctx context.Context, req RegisterAgentRequest) (*domain.Agent, error) {
	if len(req.Zones) == 0 {
		return nil, ErrInvalidZone
	}
	for _, z := range req.Zones {
		if z == "" {
			return nil, ErrInvalidZone
		}
	}
	if req.Location != nil && !req.Location.Valid() {
		return nil, ErrInvalidLocation
	}

	cfg, err := s.rates.Current(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	agent := &domain.Agent{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Phone:     req.Phone,
		Status:    domain.AgentStatusAvailable,
		Zones:     req.Zones,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if req.Location != nil {
		agent.Location = &domain.KnownLocation{Coordinates: *req.Location, UpdatedAt: now}
	}

	wallet := &domain.WalletAccount{
		AgentID:   agent.ID,
		Currency:  cfg.Currency,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.agentRepo.CreateWithWallet(ctx, agent, wallet); err != nil {
		return nil, fmt.Errorf("create agent: %w", err)
	}

	if agent.Location != nil {
		s.mirrorLocation(ctx, agent.ID, agent.Location.Coordinates)
	}
	s.logger.Info("agent registered", zap.String("agent_id", agent.ID), zap.Strings("zones", agent.Zones))
	return agent, nil
}

// UpdateLocation stores the agent's last known position.
func (s *AgentService) UpdateLocation(ctx context.Context, agentID string, at domain.Coordinates) error {
	if agentID == "" {
		return ErrInvalidAgentID
	}
	if !at.Valid() {
		return ErrInvalidLocation
	}
	if err := s.agentRepo.UpdateLocation(ctx, agentID, domain.KnownLocation{Coordinates: at, UpdatedAt: s.now()}); err != nil {
		return err
	}
	s.mirrorLocation(ctx, agentID, at)
	return nil
}

func (s *AgentService) mirrorLocation(ctx context.Context, agentID string, at domain.Coordinates) {
	if s.locationStore == nil {
		return
	}
	if err := s.locationStore.UpdateLocation(ctx, agentID, at.Lat, at.Lng); err != nil {
		s.logger.Warn("agent geo index update failed", zap.String("agent_id", agentID), zap.Error(err))
	}
}
