package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Notifier is informed about lifecycle events; delivery (mail, push) lives
// outside the core.
type Notifier interface {
	RenewalCompleted(ctx context.Context, accountID uint, newEndDate time.Time)
}

type logNotifier struct {
	logger *logrus.Logger
}

func NewLogNotifier(logger *logrus.Logger) Notifier {
	return &logNotifier{logger: logger}
}

func (n *logNotifier) RenewalCompleted(_ context.Context, accountID uint, newEndDate time.Time) {
	n.logger.WithFields(logrus.Fields{
		"license_account_id": accountID,
		"new_end_date":       newEndDate,
	}).Info("license renewed")
}
