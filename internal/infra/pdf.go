package infra

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"carmen/internal/model"

	"github.com/go-pdf/fpdf"
)

// GenerateAuditReportPDF renders an assignment's decision and its full
// history (newest first, as given) into an A4 report.
func GenerateAuditReportPDF(a *model.PriceAssignment, history []model.AssignmentHistory, generatedAt time.Time) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(12, 12, 12)
	pdf.AddPage()

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 24

	// ── Header ───────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(contentW, 8, "Price Assignment Audit Report", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 8)
	pdf.CellFormat(contentW, 5, "Assignment "+a.ID.String(), "", 1, "L", false, 0, "")
	pdf.CellFormat(contentW, 5, "Generated "+generatedAt.UTC().Format("2006-01-02 15:04 MST"), "", 1, "L", false, 0, "")
	pdf.Ln(3)

	// ── Request and decision ─────────────────────────────────────────────────
	label := func(k, v string) {
		pdf.SetFont("Helvetica", "B", 8)
		pdf.CellFormat(40, 5, k, "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 8)
		pdf.MultiCell(contentW-40, 5, v, "", "L", false)
	}
	label("Product", fmt.Sprintf("%s %s", a.ProductID, a.ProductName))
	label("Category", a.CategoryID)
	label("Quantity", a.Quantity.String())
	label("Location / Dept", fmt.Sprintf("%s / %s", a.Location, a.Department))
	label("Assigned vendor", fmt.Sprintf("%s (%s)", a.VendorName, a.VendorID))
	label("Assigned price", fmt.Sprintf("%s %s", a.AssignedPrice.StringFixed(4), a.Currency))
	label("Normalized", fmt.Sprintf("%s %s at rate %s", a.NormalizedPrice.StringFixed(4), a.ComparisonCurrency, a.ExchangeRate.String()))
	label("Confidence", a.Confidence.StringFixed(4))
	label("Reason", a.Reason)
	label("Current vendor", fmt.Sprintf("%s (%s) %s %s", a.CurrentVendorName, a.CurrentVendorID, a.CurrentPrice.StringFixed(4), a.CurrentCurrency))
	pdf.Ln(3)

	// ── History table ────────────────────────────────────────────────────────
	cols := []struct {
		title string
		w     float64
	}{
		{"#", 8}, {"When", 30}, {"Action", 18}, {"Vendor", 34}, {"Price", 26}, {"Actor", 26}, {"Reason", contentW - 142},
	}
	pdf.SetFont("Helvetica", "B", 8)
	for _, c := range cols {
		pdf.CellFormat(c.w, 6, c.title, "B", 0, "L", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 7)
	for _, h := range history {
		reason := h.Reason
		if len(reason) > 60 {
			reason = reason[:57] + "..."
		}
		row := []string{
			fmt.Sprintf("%d", h.Seq),
			h.CreatedAt.UTC().Format("2006-01-02 15:04"),
			h.Action,
			h.VendorID,
			h.Price.StringFixed(2) + " " + h.Currency,
			h.Actor,
			reason,
		}
		for i, c := range cols {
			pdf.CellFormat(c.w, 5, row[i], "", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("pdf: render: %w", err)
	}
	return buf.Bytes(), nil
}

// ArchiveReport writes data to storagePath/name, creating the directory.
func ArchiveReport(storagePath, name string, data []byte) (string, error) {
	if err := os.MkdirAll(storagePath, 0755); err != nil {
		return "", fmt.Errorf("pdf: create storage dir: %w", err)
	}
	path := filepath.Join(storagePath, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("pdf: write file: %w", err)
	}
	return path, nil
}
