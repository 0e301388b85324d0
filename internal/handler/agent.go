package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"dispatch/internal/domain"
	"dispatch/internal/middleware"
	"dispatch/internal/service"
)

// AgentHandler handles HTTP requests for couriers.
type AgentHandler struct {
	agentService *service.AgentService
}

// NewAgentHandler creates a new AgentHandler.
func NewAgentHandler(agentService *service.AgentService) *AgentHandler {
	return &AgentHandler{agentService: agentService}
}

// RegisterAgentRequest is the HTTP request body for registering a courier.
type RegisterAgentRequest struct {
	Name     string              `json:"name"`
	Phone    string              `json:"phone"`
	Zones    []string            `json:"zones"`
	Location *domain.Coordinates `json:"location,omitempty"`
}

// AgentResponse is the HTTP representation of a courier.
type AgentResponse struct {
	ID          string                  `json:"id"`
	Name        string                  `json:"name"`
	Phone       string                  `json:"phone,omitempty"`
	Status      string                  `json:"status"`
	Zones       []string                `json:"zones"`
	Location    *domain.KnownLocation   `json:"location,omitempty"`
	Performance domain.AgentPerformance `json:"performance"`
	IsActive    bool                    `json:"is_active"`
	CreatedAt   time.Time               `json:"created_at"`
}

// Register handles POST /v1/admin/agents
func (h *AgentHandler) Register(c *gin.Context) {
	var req RegisterAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	agent, err := h.agentService.Register(c.Request.Context(), service.RegisterAgentRequest{
		Name:     req.Name,
		Phone:    req.Phone,
		Zones:    req.Zones,
		Location: req.Location,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, AgentResponse{
		ID:          agent.ID,
		Name:        agent.Name,
		Phone:       agent.Phone,
		Status:      string(agent.Status),
		Zones:       agent.Zones,
		Location:    agent.Location,
		Performance: agent.Performance,
		IsActive:    agent.IsActive,
		CreatedAt:   agent.CreatedAt,
	})
}

// UpdateLocation handles PUT /v1/agents/me/location
func (h *AgentHandler) UpdateLocation(c *gin.Context) {
	var req domain.Coordinates
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if err := h.agentService.UpdateLocation(c.Request.Context(), middleware.Principal(c), req); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
