package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

// AgentRepository is a PostgreSQL implementation of repository.AgentRepository.
type AgentRepository struct {
	db *sql.DB
}

// NewAgentRepository creates a new PostgreSQL agent repository.
func NewAgentRepository(db *sql.DB) *AgentRepository {
	return &AgentRepository{db: db}
}

var _ repository.AgentRepository = (*AgentRepository)(nil)

const agentColumns = `id, name, phone, status, zones, lat, lng, location_updated_at, performance, is_active, created_at, updated_at`

// Create adds a new agent.
func (r *AgentRepository) Create(ctx context.Context, agent *domain.Agent) error {
	return insertAgent(ctx, r.db, agent)
}

// CreateWithWallet inserts the agent and its wallet in one transaction.
func (r *AgentRepository) CreateWithWallet(ctx context.Context, agent *domain.Agent, wallet *domain.WalletAccount) error {
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := insertAgent(ctx, tx, agent); err != nil {
			return err
		}
		return insertWallet(ctx, tx, wallet)
	})
	if isUniqueViolation(err, "") {
		return repository.ErrAlreadyExists
	}
	return err
}

func insertAgent(ctx context.Context, q Querier, agent *domain.Agent) error {
	perf, err := json.Marshal(agent.Performance)
	if err != nil {
		return errors.Wrap(err, "marshal performance")
	}

	zones := agent.Zones
	if zones == nil {
		zones = []string{}
	}

	var lat, lng sql.NullFloat64
	var locAt sql.NullTime
	if agent.Location != nil {
		lat = sql.NullFloat64{Float64: agent.Location.Lat, Valid: true}
		lng = sql.NullFloat64{Float64: agent.Location.Lng, Valid: true}
		locAt = sql.NullTime{Time: agent.Location.UpdatedAt, Valid: true}
	}

	query := `INSERT INTO agents (` + agentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err = q.ExecContext(ctx, query,
		agent.ID, agent.Name, agent.Phone, agent.Status, pq.Array(zones),
		lat, lng, locAt, string(perf), agent.IsActive, agent.CreatedAt, agent.UpdatedAt,
	)
	return errors.Wrap(err, "insert agent")
}

// GetByID retrieves an agent by ID.
func (r *AgentRepository) GetByID(ctx context.Context, id string) (*domain.Agent, error) {
	query := `SELECT ` + agentColumns + ` FROM agents WHERE id = $1`
	agent, err := scanAgent(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, errors.Wrap(err, "get agent")
	}
	return agent, nil
}

// ListAvailableInZone returns active available agents serving zone, oldest first.
func (r *AgentRepository) ListAvailableInZone(ctx context.Context, zone string) ([]*domain.Agent, error) {
	query := `SELECT ` + agentColumns + ` FROM agents
		WHERE is_active AND status = $1 AND $2 = ANY(zones)
		ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, domain.AgentStatusAvailable, zone)
	if err != nil {
		return nil, errors.Wrap(err, "list available agents")
	}
	defer rows.Close()

	var agents []*domain.Agent
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan agent")
		}
		agents = append(agents, agent)
	}
	return agents, errors.Wrap(rows.Err(), "iterate agents")
}

// UpdateStatus sets the availability status of an agent.
func (r *AgentRepository) UpdateStatus(ctx context.Context, id string, status domain.AgentStatus) error {
	query := `UPDATE agents SET status = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, status, time.Now())
	if err != nil {
		return errors.Wrap(err, "update agent status")
	}
	return requireOne(res)
}

// UpdateLocation stores the last known position of an agent.
func (r *AgentRepository) UpdateLocation(ctx context.Context, id string, loc domain.KnownLocation) error {
	query := `UPDATE agents SET lat = $2, lng = $3, location_updated_at = $4, updated_at = $4 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, loc.Lat, loc.Lng, loc.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, "update agent location")
	}
	return requireOne(res)
}

// UpdatePerformance applies fn to the agent's performance under a row lock.
func (r *AgentRepository) UpdatePerformance(ctx context.Context, id string, fn func(domain.AgentPerformance) domain.AgentPerformance) (*domain.AgentPerformance, error) {
	var next domain.AgentPerformance
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		var err error
		next, err = updatePerformance(ctx, tx, id, fn, "")
		return err
	})
	if err != nil {
		return nil, err
	}
	return &next, nil
}

// updatePerformance locks the agent row, applies fn and, when status is not
// empty, sets the agent status in the same statement.
func updatePerformance(ctx context.Context, tx *sql.Tx, id string, fn func(domain.AgentPerformance) domain.AgentPerformance, status domain.AgentStatus) (domain.AgentPerformance, error) {
	var (
		raw  []byte
		cur  domain.AgentPerformance
		prev domain.AgentStatus
	)
	err := tx.QueryRowContext(ctx, `SELECT performance, status FROM agents WHERE id = $1 FOR UPDATE`, id).Scan(&raw, &prev)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return cur, repository.ErrNotFound
		}
		return cur, errors.Wrap(err, "lock agent")
	}
	if err := json.Unmarshal(raw, &cur); err != nil {
		return cur, errors.Wrap(err, "decode performance")
	}

	next := cur
	if fn != nil {
		next = fn(cur)
	}
	if status == "" {
		status = prev
	}
	encoded, err := json.Marshal(next)
	if err != nil {
		return cur, errors.Wrap(err, "encode performance")
	}
	_, err = tx.ExecContext(ctx, `UPDATE agents SET performance = $2, status = $3, updated_at = $4 WHERE id = $1`,
		id, string(encoded), status, time.Now())
	return next, errors.Wrap(err, "update performance")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAgent(row rowScanner) (*domain.Agent, error) {
	var (
		agent domain.Agent
		zones []string
		lat   sql.NullFloat64
		lng   sql.NullFloat64
		locAt sql.NullTime
		perf  []byte
	)
	err := row.Scan(
		&agent.ID, &agent.Name, &agent.Phone, &agent.Status, pq.Array(&zones),
		&lat, &lng, &locAt, &perf, &agent.IsActive, &agent.CreatedAt, &agent.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	agent.Zones = zones
	if lat.Valid && lng.Valid {
		agent.Location = &domain.KnownLocation{
			Coordinates: domain.Coordinates{Lat: lat.Float64, Lng: lng.Float64},
			UpdatedAt:   locAt.Time,
		}
	}
	if len(perf) > 0 {
		if err := json.Unmarshal(perf, &agent.Performance); err != nil {
			return nil, errors.Wrap(err, "decode performance")
		}
	}
	return &agent, nil
}

func requireOne(res sql.Result) error {
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}
