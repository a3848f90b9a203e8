package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		collection := core.NewBaseCollection("events")
		collection.Fields.Add(
			&core.TextField{Name: "title", Required: true},
			&core.TextField{Name: "description"},
			&core.TextField{Name: "venue", Required: true},
			&core.DateField{Name: "start_time", Required: true},
			&core.DateField{Name: "end_time"},
			&core.BoolField{Name: "active"},
			&core.SelectField{
				Name:      "category",
				Required:  true,
				MaxSelect: 1,
				Values:    []string{"UNIVERSITY", "CONCERT", "CLUB", "SOCIAL", "HOLIDAY"},
			},
		)
		collection.AddIndex("idx_events_category_start", false, "category, start_time", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("events")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
