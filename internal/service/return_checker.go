package service

import (
	"context"
	"fmt"
	"time"

	"exchange-service/internal/models"
	"exchange-service/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// SweepReport summarises one return-date sweep
type SweepReport struct {
	Processed int `json:"processed"`
	Reminders int `json:"reminders"`
	Overdue   int `json:"overdue"`
	Failed    int `json:"failed"`
}

// CheckReturnDates reminds borrowers whose loans are due within the reminder
// window and flags loans that are past due to both parties. Each reminder and
// overdue notice is sent at most once per transaction and recipient.
func (s *ExchangeService) CheckReturnDates(ctx context.Context, now time.Time) (*SweepReport, error) {
	ctx, span := util.StartSpan(ctx, "ExchangeService.CheckReturnDates")
	defer span.End()

	loans, err := s.transactions.ListActiveLoans(ctx)
	if err != nil {
		util.RecordError(span, err)
		util.ReturnSweepRuns.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("failed to list active loans: %w", err)
	}

	report := &SweepReport{}
	for i := range loans {
		d := &loans[i]
		report.Processed++
		if d.ExpectedReturnDate == nil || d.TenantSlug == "" {
			continue
		}

		due := *d.ExpectedReturnDate
		switch {
		case due.Before(now):
			for _, n := range []*models.Notification{overdueBorrowerNotice(d), overdueLenderNotice(d)} {
				sent, err := s.dispatcher.EmitOnce(ctx, n, d.TenantSlug)
				if err != nil {
					report.Failed++
					s.logger.Error("Failed to send overdue notice",
						zap.String("transaction_id", d.ID),
						zap.String("recipient_id", n.RecipientID),
						zap.Error(err))
					continue
				}
				if sent {
					report.Overdue++
				}
			}
		case s.dueWithinWindow(d, now):
			sent, err := s.dispatcher.EmitOnce(ctx, sweepReminderNotice(d), d.TenantSlug)
			if err != nil {
				report.Failed++
				s.logger.Error("Failed to send return reminder",
					zap.String("transaction_id", d.ID),
					zap.Error(err))
				continue
			}
			if sent {
				report.Reminders++
			}
		}
	}

	span.SetAttributes(
		attribute.Int("processed", report.Processed),
		attribute.Int("reminders", report.Reminders),
		attribute.Int("overdue", report.Overdue))
	util.ReturnSweepRuns.WithLabelValues("success").Inc()
	s.logger.Info("Return date sweep finished",
		zap.Int("processed", report.Processed),
		zap.Int("reminders", report.Reminders),
		zap.Int("overdue", report.Overdue),
		zap.Int("failed", report.Failed))
	return report, nil
}
