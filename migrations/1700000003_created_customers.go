package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		collection := core.NewBaseCollection("customers")
		collection.Fields.Add(
			&core.TextField{Name: "normalized_phone", Required: true},
			&core.TextField{Name: "display_name"},
		)
		collection.AddIndex("idx_customers_phone", true, "normalized_phone", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("customers")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
