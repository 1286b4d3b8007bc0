package handlers

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"

	"billgen/services"
)

// billSummary is the JSON shape returned after ingestion and in listings.
type billSummary struct {
	ID             string                     `json:"id"`
	ProjectName    string                     `json:"project_name"`
	ContractorName string                     `json:"contractor_name"`
	AgreementNo    string                     `json:"agreement_no"`
	BillNumber     string                     `json:"bill_number"`
	Fingerprint    string                     `json:"fingerprint"`
	Payable        float64                    `json:"payable"`
	NetPayable     float64                    `json:"net_payable"`
	Validation     services.ValidationSummary `json:"validation"`
}

func summarize(id string, rec *services.ProjectRecord) billSummary {
	return billSummary{
		ID:             id,
		ProjectName:    rec.Meta.ProjectName,
		ContractorName: rec.Meta.ContractorName,
		AgreementNo:    rec.Meta.AgreementNo,
		BillNumber:     rec.Meta.BillNumber,
		Fingerprint:    rec.Fingerprint,
		Payable:        rec.Totals.Payable,
		NetPayable:     rec.Totals.NetPayable,
		Validation:     rec.Summary,
	}
}

// HandleBillIngest returns a handler that accepts a multipart workbook
// upload, runs the ingestion pipeline and stores the normalized record.
// Re-uploading identical bytes under the same config updates the existing
// record instead of creating a duplicate.
func HandleBillIngest(app *pocketbase.PocketBase, cfg services.Config, cache services.Store) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		e.Request.Body = http.MaxBytesReader(e.Response, e.Request.Body, cfg.MaxUploadBytes)

		file, _, err := e.Request.FormFile("workbook")
		if err != nil {
			return e.String(http.StatusBadRequest, "Missing workbook upload (field \"workbook\")")
		}
		defer file.Close()

		workbook, err := io.ReadAll(file)
		if err != nil {
			log.Printf("bill_ingest: read upload: %v", err)
			return e.String(http.StatusBadRequest, "Upload could not be read or exceeds the size limit")
		}

		rec, err := services.IngestWorkbook(workbook, cfg)
		if err != nil {
			log.Printf("bill_ingest: %v", err)
			var schemaErr *services.SchemaError
			if errors.As(err, &schemaErr) {
				return e.String(http.StatusUnprocessableEntity, schemaErr.Error())
			}
			return e.String(http.StatusBadRequest, "Workbook could not be processed")
		}

		record, err := app.FindFirstRecordByFilter("bills", "fingerprint = {:fp}",
			map[string]any{"fp": rec.Fingerprint})
		if err != nil {
			col, err := app.FindCollectionByNameOrId("bills")
			if err != nil {
				log.Printf("bill_ingest: bills collection missing: %v", err)
				return e.String(http.StatusInternalServerError, "Storage unavailable")
			}
			record = core.NewRecord(col)
		}

		record.Set("project_name", rec.Meta.ProjectName)
		record.Set("contractor_name", rec.Meta.ContractorName)
		record.Set("agreement_no", rec.Meta.AgreementNo)
		record.Set("bill_number", rec.Meta.BillNumber)
		record.Set("fingerprint", rec.Fingerprint)
		record.Set("payable", rec.Totals.Payable)
		record.Set("net_payable", rec.Totals.NetPayable)
		record.Set("record", rec)

		if err := app.Save(record); err != nil {
			log.Printf("bill_ingest: save: %v", err)
			return e.String(http.StatusInternalServerError, "Failed to store bill")
		}

		// The record may have changed under the same id (re-upload after a
		// config change), so stale renders must go.
		cache.InvalidateTag("bill:" + rec.Fingerprint)

		return e.JSON(http.StatusOK, summarize(record.Id, rec))
	}
}

// HandleBillList returns a handler listing stored bills, newest first.
func HandleBillList(app *pocketbase.PocketBase) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		records, err := app.FindRecordsByFilter("bills", "id != ''", "-created", 200, 0)
		if err != nil {
			log.Printf("bill_list: %v", err)
			return e.String(http.StatusInternalServerError, "Failed to list bills")
		}

		out := make([]billSummary, 0, len(records))
		for _, r := range records {
			out = append(out, billSummary{
				ID:             r.Id,
				ProjectName:    r.GetString("project_name"),
				ContractorName: r.GetString("contractor_name"),
				AgreementNo:    r.GetString("agreement_no"),
				BillNumber:     r.GetString("bill_number"),
				Fingerprint:    r.GetString("fingerprint"),
				Payable:        r.GetFloat("payable"),
				NetPayable:     r.GetFloat("net_payable"),
			})
		}
		return e.JSON(http.StatusOK, out)
	}
}

// HandleBillDelete returns a handler that removes a stored bill and its
// cached renders.
func HandleBillDelete(app *pocketbase.PocketBase, cache services.Store) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		record, err := app.FindRecordById("bills", e.Request.PathValue("id"))
		if err != nil {
			return e.String(http.StatusNotFound, "Bill not found")
		}

		fingerprint := record.GetString("fingerprint")
		if err := app.Delete(record); err != nil {
			log.Printf("bill_delete: %v", err)
			return e.String(http.StatusInternalServerError, "Failed to delete bill")
		}
		cache.InvalidateTag("bill:" + fingerprint)

		return e.NoContent(http.StatusNoContent)
	}
}

// loadBillRecord fetches a stored bill and rebuilds the ProjectRecord from
// its JSON payload.
func loadBillRecord(app *pocketbase.PocketBase, id string) (*services.ProjectRecord, error) {
	record, err := app.FindRecordById("bills", id)
	if err != nil {
		return nil, fmt.Errorf("bill %q not found: %w", id, err)
	}

	var rec services.ProjectRecord
	if err := record.UnmarshalJSONField("record", &rec); err != nil {
		return nil, fmt.Errorf("bill %q payload corrupt: %w", id, err)
	}
	return &rec, nil
}

func parseDocumentType(raw string) (services.DocumentType, bool) {
	docType := services.DocumentType(raw)
	for _, dt := range services.DocumentTypes {
		if dt == docType {
			return docType, true
		}
	}
	return "", false
}

// HandleDocumentDownload returns a handler producing the fixed-layout (PDF)
// rendition of one document. Results are cached per fingerprint and type;
// conversion fallbacks are logged once per render.
func HandleDocumentDownload(app *pocketbase.PocketBase, cfg services.Config, cache services.Store, converter *services.Converter) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		docType, ok := parseDocumentType(e.Request.PathValue("type"))
		if !ok {
			return e.String(http.StatusNotFound, "Unknown document type")
		}

		rec, err := loadBillRecord(app, e.Request.PathValue("id"))
		if err != nil {
			log.Printf("document_download: %v", err)
			return e.String(http.StatusNotFound, "Bill not found")
		}
		if docType == services.DocExtraItems && len(rec.ExtraItems) == 0 {
			return e.String(http.StatusNotFound, "This bill has no extra items")
		}

		key := fmt.Sprintf("%s:%s:pdf", rec.Fingerprint, docType)
		pdf, hit := cache.Get(key)
		if !hit {
			doc, err := services.RenderDocument(rec, docType, cfg)
			if err != nil {
				log.Printf("document_download: render %s: %v", docType, err)
				return e.String(http.StatusInternalServerError, "Failed to assemble document")
			}

			var trace []services.StrategyFailure
			pdf, trace, err = converter.ToFixedLayout(e.Request.Context(), doc)
			for _, f := range trace {
				log.Printf("document_download: %s strategy %s failed: %v", docType, f.Strategy, f.Err)
			}
			if err != nil {
				return e.String(http.StatusInternalServerError, "All conversion paths failed")
			}
			cache.Set(key, pdf, cfg.CacheTTL, "bill:"+rec.Fingerprint)
		}

		filename := fmt.Sprintf("%s_%s.pdf", sanitizeFilename(rec.Meta.ProjectName), docType)
		e.Response.Header().Set("Content-Type", "application/pdf")
		e.Response.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
		e.Response.Write(pdf)
		return nil
	}
}

// HandleDocumentHTML returns a handler producing the markup rendition of one
// document. Identical bills yield byte-identical pages.
func HandleDocumentHTML(app *pocketbase.PocketBase, cfg services.Config, cache services.Store) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		docType, ok := parseDocumentType(e.Request.PathValue("type"))
		if !ok {
			return e.String(http.StatusNotFound, "Unknown document type")
		}

		rec, err := loadBillRecord(app, e.Request.PathValue("id"))
		if err != nil {
			log.Printf("document_html: %v", err)
			return e.String(http.StatusNotFound, "Bill not found")
		}
		if docType == services.DocExtraItems && len(rec.ExtraItems) == 0 {
			return e.String(http.StatusNotFound, "This bill has no extra items")
		}

		key := fmt.Sprintf("%s:%s:html", rec.Fingerprint, docType)
		page, hit := cache.Get(key)
		if !hit {
			doc, err := services.RenderDocument(rec, docType, cfg)
			if err != nil {
				log.Printf("document_html: render %s: %v", docType, err)
				return e.String(http.StatusInternalServerError, "Failed to assemble document")
			}
			page, err = services.RenderMarkup(doc)
			if err != nil {
				log.Printf("document_html: markup %s: %v", docType, err)
				return e.String(http.StatusInternalServerError, "Failed to render document")
			}
			cache.Set(key, page, cfg.CacheTTL, "bill:"+rec.Fingerprint)
		}

		return e.HTML(http.StatusOK, string(page))
	}
}

// HandleBillSummaryExcel returns a handler that generates the audit workbook
// for a stored bill.
func HandleBillSummaryExcel(app *pocketbase.PocketBase, cfg services.Config, cache services.Store) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		rec, err := loadBillRecord(app, e.Request.PathValue("id"))
		if err != nil {
			log.Printf("bill_summary_excel: %v", err)
			return e.String(http.StatusNotFound, "Bill not found")
		}

		key := rec.Fingerprint + ":summary:xlsx"
		out, hit := cache.Get(key)
		if !hit {
			out, err = services.GenerateSummaryExcel(rec, cfg)
			if err != nil {
				log.Printf("bill_summary_excel: generate: %v", err)
				return e.String(http.StatusInternalServerError, "Failed to generate Excel file")
			}
			cache.Set(key, out, cfg.CacheTTL, "bill:"+rec.Fingerprint)
		}

		filename := fmt.Sprintf("Bill_%s_%d.xlsx", sanitizeFilename(rec.Meta.ProjectName), time.Now().Year())
		e.Response.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		e.Response.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
		e.Response.Write(out)
		return nil
	}
}

// sanitizeFilename removes characters that are unsafe for filenames.
func sanitizeFilename(s string) string {
	s = strings.ReplaceAll(s, " ", "-")
	s = strings.ReplaceAll(s, "/", "-")
	s = strings.ReplaceAll(s, "\\", "-")
	s = strings.ReplaceAll(s, ":", "-")
	return s
}
