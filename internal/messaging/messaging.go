// Package messaging defines the outbound-message contract the
// conversation controller, webhook ingress, and ticket issuer send
// through, plus truncation helpers for the messaging platform's field
// limits (spec §6). The wire protocol itself is an external collaborator;
// the pubnub-backed implementation in pubnub_client.go is one concrete
// transport, grounded on the teacher's pubnub publish-to-user-channel
// pattern (services/payment_service.go, services/queue_service.go).
package messaging

import "context"

type Button struct {
	ID    string
	Title string
}

type ListRow struct {
	ID          string
	Title       string
	Description string
}

type ListSection struct {
	Title string
	Rows  []ListRow
}

// Client is the outbound messaging surface used by the rest of
// ticketbot. Implementations must apply the truncation rules in
// Truncate/NormalizeButtons/NormalizeSections before sending.
type Client interface {
	SendText(ctx context.Context, phone, body string) error
	SendButtons(ctx context.Context, phone, body string, buttons []Button) error
	SendList(ctx context.Context, phone, body, buttonText string, sections []ListSection) error
	SendImage(ctx context.Context, phone, mediaID, caption string) error
	UploadMedia(ctx context.Context, data []byte, mimeType string) (string, error)
	MarkRead(ctx context.Context, messageID string) error
}

// Truncate enforces the "truncate to limit-3 and append ..." rule from
// spec §6. Strings already within limit pass through unchanged.
func Truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	if limit <= 3 {
		return s[:limit]
	}
	return s[:limit-3] + "..."
}

const (
	ButtonIDLimit          = 256
	ButtonTitleLimit       = 20
	ListRowIDLimit         = 200
	ListRowTitleLimit      = 24
	ListRowDescLimit       = 72
	ListSectionTitleLimit  = 24
	ListActionButtonLimit  = 20
	MaxButtons             = 3
	MaxListRows            = 10
)

// NormalizeButtons applies field limits and caps the button count at
// MaxButtons, per the interactive-button-set constraints in spec §6.
func NormalizeButtons(buttons []Button) []Button {
	if len(buttons) > MaxButtons {
		buttons = buttons[:MaxButtons]
	}
	out := make([]Button, len(buttons))
	for i, b := range buttons {
		out[i] = Button{
			ID:    Truncate(b.ID, ButtonIDLimit),
			Title: Truncate(b.Title, ButtonTitleLimit),
		}
	}
	return out
}

// NormalizeSections applies field limits to list sections and truncates
// the total row count to MaxListRows across all sections.
func NormalizeSections(sections []ListSection) []ListSection {
	out := make([]ListSection, 0, len(sections))
	remaining := MaxListRows
	for _, s := range sections {
		if remaining <= 0 {
			break
		}
		rows := s.Rows
		if len(rows) > remaining {
			rows = rows[:remaining]
		}
		normRows := make([]ListRow, len(rows))
		for i, r := range rows {
			normRows[i] = ListRow{
				ID:          Truncate(r.ID, ListRowIDLimit),
				Title:       Truncate(r.Title, ListRowTitleLimit),
				Description: Truncate(r.Description, ListRowDescLimit),
			}
		}
		out = append(out, ListSection{
			Title: Truncate(s.Title, ListSectionTitleLimit),
			Rows:  normRows,
		})
		remaining -= len(rows)
	}
	return out
}
