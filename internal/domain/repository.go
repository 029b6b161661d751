// Package domain defines the core interfaces and types for Harrier.
package domain

import (
	"context"
	"time"
)

// CaseFilter narrows ListCases results. Zero values mean "no filter".
type CaseFilter struct {
	Status   string
	Category Category
	Limit    int
	Offset   int
}

// CaseStats holds the dashboard aggregates for a tenant.
type CaseStats struct {
	TotalCases       int                    `json:"totalCases"`
	AverageRiskScore float64                `json:"averageRiskScore"`
	ByStatus         map[string]int         `json:"byStatus"`
	ByCategory       map[Category]int       `json:"byCategory"`
	ByRecommendation map[Recommendation]int `json:"byRecommendation"`
}

// Repository defines the interface for data persistence.
// All methods require tenantID for strict multi-tenancy isolation.
type Repository interface {
	// Case operations. UpdateCase replaces the full record.
	SaveCase(ctx context.Context, tenantID string, c *DisputeCase) error
	GetCase(ctx context.Context, tenantID string, caseID string) (*DisputeCase, error)
	ListCases(ctx context.Context, tenantID string, filter CaseFilter) ([]*DisputeCase, error)
	UpdateCase(ctx context.Context, tenantID string, c *DisputeCase) error

	// Dashboard aggregates.
	GetCaseStats(ctx context.Context, tenantID string) (*CaseStats, error)

	// Flag rule operations.
	SaveFlagRule(ctx context.Context, tenantID string, rule *FlagRule) error
	GetFlagRule(ctx context.Context, tenantID string, ruleID string) (*FlagRule, error)
	ListFlagRules(ctx context.Context, tenantID string) ([]*FlagRule, error)
	DeleteFlagRule(ctx context.Context, tenantID string, ruleID string) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
