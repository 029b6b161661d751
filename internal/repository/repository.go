// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

const caseColumns = `id, tenant_id, case_number, category, dispute_reason, reason_code,
	   card_network, transaction_json, customer_json, evidence_json,
	   risk_score, recommendation, confidence, analysis,
	   human_decision, analyst_feedback, status, created_at, updated_at`

// SaveCase stores a dispute case with tenant isolation.
func (r *SQLRepository) SaveCase(ctx context.Context, tenantID string, c *domain.DisputeCase) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", domain.ErrInvalidInput)
	}
	if c.ID == "" {
		return fmt.Errorf("%w: case ID is required", domain.ErrInvalidInput)
	}

	txJSON, err := json.Marshal(c.Transaction)
	if err != nil {
		return fmt.Errorf("marshal transaction: %w", err)
	}
	custJSON, err := json.Marshal(c.Customer)
	if err != nil {
		return fmt.Errorf("marshal customer: %w", err)
	}
	evJSON, _ := json.Marshal(c.Evidence)

	query := `
		INSERT INTO dispute_cases (
			id, tenant_id, case_number, category, dispute_reason, reason_code,
			card_network, amount, transaction_json, customer_json, evidence_json,
			risk_score, recommendation, confidence, analysis,
			human_decision, analyst_feedback, status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		c.ID, tenantID, c.CaseNumber, string(c.Category), c.DisputeReason, c.ReasonCode,
		c.CardNetwork, c.Transaction.Amount, string(txJSON), string(custJSON), string(evJSON),
		c.RiskScore, string(c.Recommendation), c.Confidence, c.Analysis,
		c.HumanDecision, c.AnalystFeedback, c.Status, c.CreatedAt, c.UpdatedAt,
	)
	return err
}

// GetCase retrieves a case by ID with tenant isolation.
func (r *SQLRepository) GetCase(ctx context.Context, tenantID string, caseID string) (*domain.DisputeCase, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", domain.ErrInvalidInput)
	}

	query := `SELECT ` + caseColumns + ` FROM dispute_cases WHERE tenant_id = ? AND id = ?`

	row := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, caseID)
	c, err := scanCase(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return c, err
}

// ListCases retrieves cases for a tenant, newest first, honoring the
// filter's status, category, limit, and offset.
func (r *SQLRepository) ListCases(ctx context.Context, tenantID string, filter domain.CaseFilter) ([]*domain.DisputeCase, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", domain.ErrInvalidInput)
	}

	query := `SELECT ` + caseColumns + ` FROM dispute_cases WHERE tenant_id = ?`
	args := []any{tenantID}

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	if filter.Category != "" {
		query += ` AND category = ?`
		args = append(args, string(filter.Category))
	}

	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cases []*domain.DisputeCase
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}

	return cases, rows.Err()
}

// UpdateCase replaces the full case record with tenant isolation.
func (r *SQLRepository) UpdateCase(ctx context.Context, tenantID string, c *domain.DisputeCase) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", domain.ErrInvalidInput)
	}

	txJSON, err := json.Marshal(c.Transaction)
	if err != nil {
		return fmt.Errorf("marshal transaction: %w", err)
	}
	custJSON, err := json.Marshal(c.Customer)
	if err != nil {
		return fmt.Errorf("marshal customer: %w", err)
	}
	evJSON, _ := json.Marshal(c.Evidence)

	query := `
		UPDATE dispute_cases SET
			case_number = ?, category = ?, dispute_reason = ?, reason_code = ?,
			card_network = ?, amount = ?, transaction_json = ?, customer_json = ?,
			evidence_json = ?, risk_score = ?, recommendation = ?, confidence = ?,
			analysis = ?, human_decision = ?, analyst_feedback = ?, status = ?,
			updated_at = ?
		WHERE tenant_id = ? AND id = ?
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query),
		c.CaseNumber, string(c.Category), c.DisputeReason, c.ReasonCode,
		c.CardNetwork, c.Transaction.Amount, string(txJSON), string(custJSON),
		string(evJSON), c.RiskScore, string(c.Recommendation), c.Confidence,
		c.Analysis, c.HumanDecision, c.AnalystFeedback, c.Status,
		c.UpdatedAt,
		tenantID, c.ID,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetCaseStats computes the dashboard aggregates for a tenant.
func (r *SQLRepository) GetCaseStats(ctx context.Context, tenantID string) (*domain.CaseStats, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", domain.ErrInvalidInput)
	}

	stats := &domain.CaseStats{
		ByStatus:         make(map[string]int),
		ByCategory:       make(map[domain.Category]int),
		ByRecommendation: make(map[domain.Recommendation]int),
	}

	query := `SELECT COUNT(*), COALESCE(AVG(risk_score), 0) FROM dispute_cases WHERE tenant_id = ?`
	if err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID).Scan(&stats.TotalCases, &stats.AverageRiskScore); err != nil {
		return nil, err
	}

	if err := r.countBy(ctx, tenantID, "status", func(key string, n int) {
		stats.ByStatus[key] = n
	}); err != nil {
		return nil, err
	}
	if err := r.countBy(ctx, tenantID, "category", func(key string, n int) {
		stats.ByCategory[domain.Category(key)] = n
	}); err != nil {
		return nil, err
	}
	if err := r.countBy(ctx, tenantID, "recommendation", func(key string, n int) {
		if key != "" {
			stats.ByRecommendation[domain.Recommendation(key)] = n
		}
	}); err != nil {
		return nil, err
	}

	return stats, nil
}

// countBy runs a GROUP BY aggregate over one column. The column name is
// one of three fixed identifiers, never user input.
func (r *SQLRepository) countBy(ctx context.Context, tenantID, column string, add func(string, int)) error {
	query := `SELECT ` + column + `, COUNT(*) FROM dispute_cases WHERE tenant_id = ? GROUP BY ` + column

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return err
		}
		add(key, n)
	}
	return rows.Err()
}

// SaveFlagRule stores a flag rule with tenant isolation. Saving an
// existing (id, version) pair updates it in place.
func (r *SQLRepository) SaveFlagRule(ctx context.Context, tenantID string, rule *domain.FlagRule) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", domain.ErrInvalidInput)
	}
	if rule.ID == "" || rule.Expression == "" {
		return fmt.Errorf("%w: rule ID and expression are required", domain.ErrInvalidInput)
	}

	enabled := 0
	if rule.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO flag_rules (
			id, tenant_id, name, description, version, expression, flag, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id, version) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			flag = excluded.flag,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, tenantID, rule.Name, rule.Description,
		rule.Version, rule.Expression, rule.Flag, enabled,
		now, now,
	)
	return err
}

// GetFlagRule retrieves the newest enabled version of a rule.
func (r *SQLRepository) GetFlagRule(ctx context.Context, tenantID string, ruleID string) (*domain.FlagRule, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", domain.ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, version, expression, flag, enabled, created_at, updated_at
		FROM flag_rules
		WHERE tenant_id = ? AND id = ? AND enabled = 1
		ORDER BY version DESC
		LIMIT 1
	`

	var rule domain.FlagRule
	var enabled int

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, ruleID).Scan(
		&rule.ID, &rule.TenantID, &rule.Name, &rule.Description,
		&rule.Version, &rule.Expression, &rule.Flag, &enabled,
		&rule.CreatedAt, &rule.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rule.Enabled = enabled == 1
	return &rule, nil
}

// ListFlagRules retrieves all enabled flag rules for a tenant.
func (r *SQLRepository) ListFlagRules(ctx context.Context, tenantID string) ([]*domain.FlagRule, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", domain.ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, version, expression, flag, enabled, created_at, updated_at
		FROM flag_rules
		WHERE tenant_id = ? AND enabled = 1
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var flagRules []*domain.FlagRule
	for rows.Next() {
		var rule domain.FlagRule
		var enabled int

		if err := rows.Scan(
			&rule.ID, &rule.TenantID, &rule.Name, &rule.Description,
			&rule.Version, &rule.Expression, &rule.Flag, &enabled,
			&rule.CreatedAt, &rule.UpdatedAt,
		); err != nil {
			return nil, err
		}

		rule.Enabled = enabled == 1
		flagRules = append(flagRules, &rule)
	}

	return flagRules, rows.Err()
}

// DeleteFlagRule soft-deletes a rule by setting enabled = 0.
func (r *SQLRepository) DeleteFlagRule(ctx context.Context, tenantID string, ruleID string) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", domain.ErrInvalidInput)
	}

	query := `
		UPDATE flag_rules
		SET enabled = 0, updated_at = ?
		WHERE tenant_id = ? AND id = ?
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query), time.Now().UTC(), tenantID, ruleID)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}

	return nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// scanner abstracts sql.Row and sql.Rows for scanCase.
type scanner interface {
	Scan(dest ...any) error
}

func scanCase(row scanner) (*domain.DisputeCase, error) {
	var c domain.DisputeCase
	var category, recommendation string
	var reasonCode, cardNetwork, analysis, humanDecision, analystFeedback sql.NullString
	var txJSON, custJSON string
	var evJSON sql.NullString

	err := row.Scan(
		&c.ID, &c.TenantID, &c.CaseNumber, &category, &c.DisputeReason, &reasonCode,
		&cardNetwork, &txJSON, &custJSON, &evJSON,
		&c.RiskScore, &recommendation, &c.Confidence, &analysis,
		&humanDecision, &analystFeedback, &c.Status, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.Category = domain.Category(category)
	c.Recommendation = domain.Recommendation(recommendation)
	c.ReasonCode = reasonCode.String
	c.CardNetwork = cardNetwork.String
	c.Analysis = analysis.String
	c.HumanDecision = humanDecision.String
	c.AnalystFeedback = analystFeedback.String

	if err := json.Unmarshal([]byte(txJSON), &c.Transaction); err != nil {
		return nil, fmt.Errorf("unmarshal transaction for case %s: %w", c.ID, err)
	}
	if err := json.Unmarshal([]byte(custJSON), &c.Customer); err != nil {
		return nil, fmt.Errorf("unmarshal customer for case %s: %w", c.ID, err)
	}
	if evJSON.Valid && evJSON.String != "" && evJSON.String != "null" {
		if err := json.Unmarshal([]byte(evJSON.String), &c.Evidence); err != nil {
			return nil, fmt.Errorf("unmarshal evidence for case %s: %w", c.ID, err)
		}
	}

	return &c, nil
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
