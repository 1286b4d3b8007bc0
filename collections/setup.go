package collections

import (
	"fmt"
	"log"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
)

// Setup programmatically creates/ensures the bills collection exists.
func Setup(app *pocketbase.PocketBase) {
	ensureCollection(app, "bills", func(c *core.Collection) {
		c.Fields.Add(&core.TextField{Name: "project_name", Required: true})
		c.Fields.Add(&core.TextField{Name: "contractor_name", Required: false})
		c.Fields.Add(&core.TextField{Name: "agreement_no", Required: false})
		c.Fields.Add(&core.TextField{Name: "bill_number", Required: false})
		c.Fields.Add(&core.TextField{Name: "fingerprint", Required: true})
		c.Fields.Add(&core.NumberField{Name: "payable", Required: false})
		c.Fields.Add(&core.NumberField{Name: "net_payable", Required: false})
		c.Fields.Add(&core.JSONField{Name: "record", Required: true, MaxSize: 5 << 20})
		c.Fields.Add(&core.AutodateField{Name: "created", OnCreate: true})
		c.Fields.Add(&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true})
		c.AddIndex("idx_bills_fingerprint", true, "fingerprint", "")
	})
}

// ensureCollection checks if a collection already exists by name. If it does,
// the existing collection is returned. Otherwise a new base collection is
// created, the addFields callback is invoked to populate its fields, and the
// collection is saved.
func ensureCollection(app *pocketbase.PocketBase, name string, addFields func(*core.Collection)) *core.Collection {
	existing, err := app.FindCollectionByNameOrId(name)
	if err == nil && existing != nil {
		log.Printf("Collection %q already exists, skipping creation.\n", name)
		return existing
	}

	collection := core.NewBaseCollection(name)
	addFields(collection)

	if err := app.Save(collection); err != nil {
		log.Fatalf("Failed to create collection %q: %v", name, err)
	}

	fmt.Printf("Created collection %q (id=%s)\n", name, collection.Id)
	return collection
}
