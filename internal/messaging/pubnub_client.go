// pubnub_client.go's pubnub-backed Client implementation. Grounded on the
// teacher's services/payment_service.go SubscribeToPaymentNotifications
// (listener/Subscribe/Publish usage) and services/queue_service.go's
// per-user channel naming (`user-<id>`), generalized from payment-result
// push notifications into the full outbound-message contract.
package messaging

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	pubnub "github.com/pubnub/go/v7"

	"ticketbot/internal/status"
)

type PubNubClient struct {
	pn *pubnub.PubNub
}

func NewPubNubClient(publishKey, subscribeKey string) *PubNubClient {
	cfg := pubnub.NewConfigWithUserId(pubnub.UserId("ticketbot"))
	cfg.PublishKey = publishKey
	cfg.SubscribeKey = subscribeKey
	return &PubNubClient{pn: pubnub.NewPubNub(cfg)}
}

func userChannel(phone string) string {
	return "user-" + phone
}

func (c *PubNubClient) publish(ctx context.Context, phone string, payload map[string]interface{}) error {
	_, _, err := c.pn.Publish().
		Channel(userChannel(phone)).
		Message(payload).
		Execute()
	if err != nil {
		return status.New(status.ProviderUnavailable, err)
	}
	return nil
}

func (c *PubNubClient) SendText(ctx context.Context, phone, body string) error {
	return c.publish(ctx, phone, map[string]interface{}{
		"type": "text",
		"body": body,
	})
}

func (c *PubNubClient) SendButtons(ctx context.Context, phone, body string, buttons []Button) error {
	normalized := NormalizeButtons(buttons)
	rows := make([]map[string]string, len(normalized))
	for i, b := range normalized {
		rows[i] = map[string]string{"id": b.ID, "title": b.Title}
	}
	return c.publish(ctx, phone, map[string]interface{}{
		"type":    "interactive_buttons",
		"body":    body,
		"buttons": rows,
	})
}

func (c *PubNubClient) SendList(ctx context.Context, phone, body, buttonText string, sections []ListSection) error {
	normalized := NormalizeSections(sections)
	out := make([]map[string]interface{}, len(normalized))
	for i, s := range normalized {
		rows := make([]map[string]string, len(s.Rows))
		for j, r := range s.Rows {
			rows[j] = map[string]string{"id": r.ID, "title": r.Title, "description": r.Description}
		}
		out[i] = map[string]interface{}{"title": s.Title, "rows": rows}
	}
	return c.publish(ctx, phone, map[string]interface{}{
		"type":        "interactive_list",
		"body":        body,
		"button_text": Truncate(buttonText, ListActionButtonLimit),
		"sections":    out,
	})
}

func (c *PubNubClient) SendImage(ctx context.Context, phone, mediaID, caption string) error {
	return c.publish(ctx, phone, map[string]interface{}{
		"type":     "image",
		"media_id": mediaID,
		"caption":  caption,
	})
}

// UploadMedia publishes the raw bytes on a private upload channel and
// returns a synthetic media id derived from the channel name, standing
// in for a real multipart-upload media store per spec §6.
func (c *PubNubClient) UploadMedia(ctx context.Context, data []byte, mimeType string) (string, error) {
	sum := sha256.Sum256(data)
	mediaID := fmt.Sprintf("media-%s", hex.EncodeToString(sum[:8]))
	_, _, err := c.pn.Publish().
		Channel("media-upload").
		Message(map[string]interface{}{
			"media_id":  mediaID,
			"mime_type": mimeType,
			"data":      base64.StdEncoding.EncodeToString(data),
		}).
		Execute()
	if err != nil {
		return "", status.New(status.ProviderUnavailable, err)
	}
	return mediaID, nil
}

func (c *PubNubClient) MarkRead(ctx context.Context, messageID string) error {
	_, _, err := c.pn.Publish().
		Channel("read-receipts").
		Message(map[string]interface{}{"message_id": messageID}).
		Execute()
	if err != nil {
		return status.New(status.ProviderUnavailable, err)
	}
	return nil
}
