package lark

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	larkIm "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"
)

// MsgTypePost is the IM rich-text message type
const MsgTypePost = "post"

// ErrEmptyMessage is returned when there is nothing to deliver
var ErrEmptyMessage = errors.New("message content cannot be empty")

// Messenger sends IM messages through the Lark SDK
type Messenger struct {
	client *SDKClient
	logger *zap.Logger
}

// NewMessenger creates a new Lark message sender
func NewMessenger(client *SDKClient, logger *zap.Logger) *Messenger {
	return &Messenger{
		client: client,
		logger: logger,
	}
}

// SendMessage sends a message to a user or group and returns its message ID
func (m *Messenger) SendMessage(ctx context.Context, receiveIDType, receiveID, msgType, content string) (string, error) {
	req := larkIm.NewCreateMessageReqBuilder().
		ReceiveIdType(receiveIDType).
		Body(larkIm.NewCreateMessageReqBodyBuilder().
			ReceiveId(receiveID).
			MsgType(msgType).
			Content(content).
			Build()).
		Build()

	resp, err := m.client.GetClient().Im.Message.Create(ctx, req)
	if err != nil {
		m.logger.Error("Failed to send message",
			zap.String("receive_id", receiveID),
			zap.Error(err))
		return "", fmt.Errorf("failed to send message: %w", err)
	}

	if !resp.Success() {
		m.logger.Error("API returned failure",
			zap.String("receive_id", receiveID),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return "", fmt.Errorf("API error: code=%d, msg=%s", resp.Code, resp.Msg)
	}

	messageID := ""
	if resp.Data != nil && resp.Data.MessageId != nil {
		messageID = *resp.Data.MessageId
	}

	m.logger.Info("Message sent successfully",
		zap.String("message_id", messageID),
		zap.String("receive_id", receiveID))
	return messageID, nil
}

// PostContent encodes a titled rich-text message with one paragraph per line
func PostContent(title string, lines []string) (string, error) {
	if len(lines) == 0 {
		return "", ErrEmptyMessage
	}

	type element struct {
		Tag  string `json:"tag"`
		Text string `json:"text"`
	}
	paragraphs := make([][]element, 0, len(lines))
	for _, line := range lines {
		paragraphs = append(paragraphs, []element{{Tag: "text", Text: line}})
	}

	body, err := json.Marshal(map[string]any{
		"en_us": map[string]any{
			"title":   title,
			"content": paragraphs,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal post content: %w", err)
	}
	return string(body), nil
}
