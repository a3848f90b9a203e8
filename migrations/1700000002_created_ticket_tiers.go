package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		events, err := app.FindCollectionByNameOrId("events")
		if err != nil {
			return err
		}

		collection := core.NewBaseCollection("ticket_tiers")
		collection.Fields.Add(
			&core.RelationField{Name: "event", Required: true, CollectionId: events.Id, MaxSelect: 1},
			&core.TextField{Name: "name", Required: true},
			&core.TextField{Name: "unit_price", Required: true},
			&core.NumberField{Name: "quantity", Required: true},
			&core.NumberField{Name: "quantity_sold"},
		)
		collection.AddIndex("idx_ticket_tiers_event", false, "event", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("ticket_tiers")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
