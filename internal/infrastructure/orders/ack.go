// Package orders holds the default custom-order submitter.
package orders

import (
	"context"
	"log/slog"

	"github.com/mmembroidery/tryon-studio/internal/core/domain"
)

// AckSubmitter accepts every order and only records that it happened. It is
// the default when no order backend is configured; the shopper still sees the
// confirmation notice.
type AckSubmitter struct {
	logger *slog.Logger
}

func NewAckSubmitter(logger *slog.Logger) *AckSubmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &AckSubmitter{logger: logger}
}

func (s *AckSubmitter) SubmitCustomOrder(ctx context.Context, order domain.SubmittedOrder) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "custom_order_acknowledged",
		"order_id", order.ID,
		"session_id", order.SessionID,
		"material", order.Order.Material,
		"color", order.Order.Color,
		"timeframe", order.Order.Timeframe,
		"occasion", order.Order.Occasion,
		"has_design_file", !order.Order.DesignFile.IsZero(),
	)
	return nil
}
