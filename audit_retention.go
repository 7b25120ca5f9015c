package sentinel

import (
	"context"

	"github.com/goliatone/go-errors"
)

// AuditRetentionMessage asks the retention handler to purge entries older
// than DaysToKeep. Zero means the default 90 day horizon.
type AuditRetentionMessage struct {
	DaysToKeep int `json:"days_to_keep"`
	OnResponse func(removed int)
}

func (m AuditRetentionMessage) Type() string { return "audit.retention_sweep" }

// AuditRetentionHandler runs the audit retention sweep. The trail never
// schedules itself; an external scheduler (cron or a command bus) dispatches
// this message on whatever cadence the deployment wants.
type AuditRetentionHandler struct {
	trail *Trail
}

// NewAuditRetentionHandler wires the handler to a trail.
func NewAuditRetentionHandler(trail *Trail) *AuditRetentionHandler {
	return &AuditRetentionHandler{trail: trail}
}

func (h *AuditRetentionHandler) Execute(ctx context.Context, event AuditRetentionMessage) error {
	select {
	case <-ctx.Done():
		return errors.Wrap(
			ctx.Err(),
			errors.CategoryOperation,
			"context cancelled during audit retention sweep",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *AuditRetentionHandler) execute(ctx context.Context, event AuditRetentionMessage) error {
	removed, err := h.trail.CleanupOld(ctx, event.DaysToKeep)
	if err != nil {
		return err
	}

	if event.OnResponse != nil {
		event.OnResponse(removed)
	}

	return nil
}
