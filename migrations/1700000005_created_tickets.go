package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		bookings, err := app.FindCollectionByNameOrId("bookings")
		if err != nil {
			return err
		}

		collection := core.NewBaseCollection("tickets")
		collection.Fields.Add(
			&core.RelationField{Name: "booking", Required: true, CollectionId: bookings.Id, MaxSelect: 1},
			&core.TextField{Name: "unique_code", Required: true},
			&core.BoolField{Name: "is_redeemed"},
		)
		collection.AddIndex("idx_tickets_unique_code", true, "unique_code", "")
		collection.AddIndex("idx_tickets_booking", false, "booking", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("tickets")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
