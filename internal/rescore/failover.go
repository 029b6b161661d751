package rescore

import (
	"context"
	"log/slog"

	"github.com/opensource-finance/harrier/internal/domain"
)

// Failover tries a primary rescorer and falls back to a secondary when
// the primary fails. Feedback reanalysis must always produce an answer,
// so the standard wiring is remote primary with the local engine as
// secondary.
type Failover struct {
	primary   domain.Rescorer
	secondary domain.Rescorer
	logger    *slog.Logger
}

// NewFailover wraps primary with a fallback.
func NewFailover(primary, secondary domain.Rescorer, logger *slog.Logger) *Failover {
	if logger == nil {
		logger = slog.Default()
	}
	return &Failover{primary: primary, secondary: secondary, logger: logger}
}

func (f *Failover) Name() string { return "failover" }

func (f *Failover) Rescore(ctx context.Context, req domain.RescoreRequest) (*domain.RescoreResult, error) {
	result, err := f.primary.Rescore(ctx, req)
	if err == nil {
		return result, nil
	}

	f.logger.Warn("primary rescorer failed, falling back",
		"primary", f.primary.Name(),
		"secondary", f.secondary.Name(),
		"case_id", req.CaseID,
		"error", err)

	return f.secondary.Rescore(ctx, req)
}

// FromConfig builds the rescorer stack for a configuration: local-only
// when no endpoint is set, remote-with-local-failover otherwise.
func FromConfig(cfg domain.RescorerConfig, logger *slog.Logger) domain.Rescorer {
	local := NewLocal()
	if cfg.Endpoint == "" {
		return local
	}
	return NewFailover(NewRemote(cfg.Endpoint, cfg.Timeout), local, logger)
}
