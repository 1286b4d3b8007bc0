package main

import (
	"log"
	"os"
	"path/filepath"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"

	"billgen/collections"
	"billgen/handlers"
	"billgen/services"
)

func main() {
	app := pocketbase.New()

	cfg := services.DefaultConfig()
	if path := os.Getenv("BILLGEN_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Fatalf("read config %q: %v", path, err)
		}
		cfg, err = services.LoadConfig(data)
		if err != nil {
			log.Fatalf("load config %q: %v", path, err)
		}
	}

	// Create collections on startup
	app.OnServe().BindFunc(func(se *core.ServeEvent) error {
		collections.Setup(app)
		return se.Next()
	})

	app.OnServe().BindFunc(func(se *core.ServeEvent) error {
		persistent, err := services.NewSQLiteStore(filepath.Join(app.DataDir(), "render_cache.db"))
		if err != nil {
			log.Printf("Warning: render cache disabled: %v", err)
		}
		var cache services.Store = services.NewTieredCache(cfg, storeOrNil(persistent))
		converter := services.NewConverter(cfg)

		// ── Bill ingestion and management ─────────────────────────
		se.Router.POST("/bills/ingest", handlers.HandleBillIngest(app, cfg, cache))
		se.Router.GET("/bills", handlers.HandleBillList(app))
		se.Router.DELETE("/bills/{id}", handlers.HandleBillDelete(app, cache))

		// ── Document downloads ────────────────────────────────────
		se.Router.GET("/bills/{id}/documents/{type}", handlers.HandleDocumentDownload(app, cfg, cache, converter))
		se.Router.GET("/bills/{id}/documents/{type}/html", handlers.HandleDocumentHTML(app, cfg, cache))
		se.Router.GET("/bills/{id}/summary.xlsx", handlers.HandleBillSummaryExcel(app, cfg, cache))

		return se.Next()
	})

	if err := app.Start(); err != nil {
		log.Fatal(err)
	}
}

// storeOrNil keeps a failed sqlite open from turning into a typed-nil
// interface inside the tiered cache.
func storeOrNil(s *services.SQLiteStore) services.Store {
	if s == nil {
		return nil
	}
	return s
}
