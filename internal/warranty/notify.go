package warranty

import (
	"context"
	"log/slog"

	"github.com/zombor/warrantysafe/internal/lifecycle"
)

// Notifier alerts a user that a warranty has entered the expiring-soon window
type Notifier interface {
	NotifyExpiring(ctx context.Context, w *Warranty, a lifecycle.Assessment) error
}

// LogNotifier writes reminders to the log
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier. A nil logger uses slog.Default().
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) NotifyExpiring(ctx context.Context, w *Warranty, a lifecycle.Assessment) error {
	n.logger.InfoContext(ctx, "Warranty expiring soon",
		"user_id", w.UserID,
		"warranty_id", w.ID,
		"product", w.Record.ProductName,
		"brand", w.Record.Brand,
		"warranty_end", a.WarrantyEnd.String(),
		"days_remaining", a.DaysRemaining,
	)
	return nil
}
