package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		customers, err := app.FindCollectionByNameOrId("customers")
		if err != nil {
			return err
		}
		tiers, err := app.FindCollectionByNameOrId("ticket_tiers")
		if err != nil {
			return err
		}

		collection := core.NewBaseCollection("bookings")
		collection.Fields.Add(
			&core.RelationField{Name: "user", Required: true, CollectionId: customers.Id, MaxSelect: 1},
			&core.RelationField{Name: "tier", Required: true, CollectionId: tiers.Id, MaxSelect: 1},
			&core.NumberField{Name: "quantity", Required: true},
			&core.TextField{Name: "total_amount", Required: true},
			&core.SelectField{
				Name:      "status",
				Required:  true,
				MaxSelect: 1,
				Values:    []string{"PENDING", "AWAITING_PAYMENT", "PAID", "CANCELLED", "EXPIRED"},
			},
			&core.SelectField{
				Name:      "payment_method",
				MaxSelect: 1,
				Values:    []string{"MPESA", "CARD"},
			},
			&core.TextField{Name: "payment_phone_number"},
			&core.TextField{Name: "payment_reference"},
			&core.DateField{Name: "expiry_time"},
		)
		collection.AddIndex("idx_bookings_status", false, "status", "")
		collection.AddIndex("idx_bookings_user", false, "user", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("bookings")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
