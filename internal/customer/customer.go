// Package customer resolves the User entity (spec §3): created on first
// interaction, keyed by normalized phone, with an optional display name
// updated whenever a newer non-empty value arrives.
package customer

import (
	"github.com/pocketbase/pocketbase/core"

	"ticketbot/internal/status"
)

type Registry struct {
	app core.App
}

func New(app core.App) *Registry {
	return &Registry{app: app}
}

// ResolveOrCreate returns the customer record id for a normalized phone,
// creating one if this is the user's first interaction.
func (r *Registry) ResolveOrCreate(normalizedPhone string) (string, error) {
	existing, err := r.app.FindFirstRecordByFilter("customers", "normalized_phone = {:phone}", map[string]interface{}{
		"phone": normalizedPhone,
	})
	if err == nil {
		return existing.Id, nil
	}

	collection, err := r.app.FindCollectionByNameOrId("customers")
	if err != nil {
		return "", status.New(status.InternalError, err)
	}
	record := core.NewRecord(collection)
	record.Set("normalized_phone", normalizedPhone)
	if err := r.app.Save(record); err != nil {
		return "", status.New(status.InternalError, err)
	}
	return record.Id, nil
}

// UpdateDisplayName sets the display name if value is non-empty and
// different from the stored one.
func (r *Registry) UpdateDisplayName(customerID, value string) error {
	if value == "" {
		return nil
	}
	record, err := r.app.FindRecordById("customers", customerID)
	if err != nil {
		return status.New(status.NotFound, err)
	}
	if record.GetString("display_name") == value {
		return nil
	}
	record.Set("display_name", value)
	return r.app.Save(record)
}
