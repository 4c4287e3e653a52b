package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mikepea/leaddesk/pkg/leaddesk/config"
	"github.com/mikepea/leaddesk/pkg/leaddesk/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Publisher delivers a notification payload to one user's subscribers.
type Publisher interface {
	Publish(ctx context.Context, userID uint, payload []byte) error
}

// Message is the payload published for each notification.
type Message struct {
	ID        uint      `json:"id"`
	LeadID    uint      `json:"lead_id"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Relay publishes notifications that have not been published yet.
type Relay struct {
	db        *gorm.DB
	pub       Publisher
	interval  time.Duration
	batchSize int
	now       func() time.Time
}

// NewRelay creates a relay polling db every cfg.RelayInterval.
func NewRelay(db *gorm.DB, pub Publisher, cfg config.NotifyConfig) *Relay {
	return &Relay{
		db:        db,
		pub:       pub,
		interval:  cfg.RelayInterval,
		batchSize: cfg.BatchSize,
		now:       time.Now,
	}
}

// Run relays on every tick until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	logrus.WithField("interval", r.interval).Info("Starting notification relay")
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n, err := r.RelayOnce(ctx)
			if err != nil {
				logrus.WithError(err).Warn("notification relay failed")
			} else if n > 0 {
				logrus.WithField("published", n).Debug("notifications relayed")
			}
		case <-ctx.Done():
			logrus.Info("Stopping notification relay")
			return nil
		}
	}
}

// RelayOnce publishes one batch in id order and stamps published_at on each
// delivered row. It stops at the first publish failure so that order is kept;
// the failed row is retried next time.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	var pending []models.LeadNotification
	err := r.db.WithContext(ctx).
		Where("published_at IS NULL").
		Order("id").
		Limit(r.batchSize).
		Find(&pending).Error
	if err != nil {
		return 0, fmt.Errorf("load pending notifications: %w", err)
	}

	published := 0
	for _, n := range pending {
		payload, err := json.Marshal(Message{
			ID:        n.ID,
			LeadID:    n.LeadID,
			Type:      n.NotificationType,
			Message:   n.Message,
			CreatedAt: n.CreatedAt,
		})
		if err != nil {
			return published, err
		}

		if err := r.pub.Publish(ctx, n.UserID, payload); err != nil {
			return published, fmt.Errorf("publish notification %d: %w", n.ID, err)
		}

		if err := r.db.WithContext(ctx).Model(&n).Update("published_at", r.now()).Error; err != nil {
			return published, fmt.Errorf("mark notification %d published: %w", n.ID, err)
		}
		published++
	}
	return published, nil
}

// LogPublisher writes notifications to the log. It is used when redis is disabled.
type LogPublisher struct{}

// Publish implements Publisher.
func (LogPublisher) Publish(_ context.Context, userID uint, payload []byte) error {
	logrus.WithFields(logrus.Fields{
		"user_id": userID,
		"payload": string(payload),
	}).Info("notification")
	return nil
}
