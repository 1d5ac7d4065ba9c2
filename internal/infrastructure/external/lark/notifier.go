package lark

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/expense-screening/internal/application/port"
)

// messageSender is satisfied by Messenger
type messageSender interface {
	SendMessage(ctx context.Context, receiveIDType, receiveID, msgType, content string) (string, error)
}

// NotifierConfig selects where run digests are delivered
type NotifierConfig struct {
	ReceiveIDType string // open_id, user_id, chat_id or email
	ReceiveID     string
}

// Notifier implements port.Notifier by posting run digests to Lark
type Notifier struct {
	sender messageSender
	cfg    NotifierConfig
	logger *zap.Logger
}

// NewNotifier creates a notifier delivering through sender
func NewNotifier(sender messageSender, cfg NotifierConfig, logger *zap.Logger) (*Notifier, error) {
	if cfg.ReceiveID == "" {
		return nil, fmt.Errorf("lark receive_id is required")
	}
	if cfg.ReceiveIDType == "" {
		cfg.ReceiveIDType = "chat_id"
	}
	return &Notifier{
		sender: sender,
		cfg:    cfg,
		logger: logger,
	}, nil
}

// NotifyRun posts the digest as a rich-text message titled with the run
func (n *Notifier) NotifyRun(ctx context.Context, digest port.RunDigest) error {
	lines := strings.Split(digest.Text, "\n")
	if digest.Narrative != "" {
		lines = append(lines, "", digest.Narrative)
	}

	title := fmt.Sprintf("Expense screening: %d of %d flagged", digest.Flagged, digest.Records)
	content, err := PostContent(title, lines)
	if err != nil {
		return err
	}

	messageID, err := n.sender.SendMessage(ctx, n.cfg.ReceiveIDType, n.cfg.ReceiveID, MsgTypePost, content)
	if err != nil {
		return fmt.Errorf("failed to notify run %s: %w", digest.RunID, err)
	}

	n.logger.Info("Run digest delivered",
		zap.String("run_id", digest.RunID),
		zap.String("message_id", messageID))
	return nil
}

var _ port.Notifier = (*Notifier)(nil)
