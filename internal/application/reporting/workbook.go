package reporting

import (
	"fmt"
	"time"

	"github.com/editdesk/backend/internal/domain/fulfillment"
	"github.com/xuri/excelize/v2"
)

const (
	ordersSheet  = "Orders"
	summarySheet = "Summary"
)

var orderColumns = []string{
	"Order ID",
	"Title",
	"Status",
	"Customer ID",
	"Editor ID",
	"Revisions",
	"Deliverables",
	"Due",
	"Created",
	"Completed",
	"Currency",
	"Subtotal",
	"Tax",
	"Total",
	"Invoice",
	"Invoice Status",
}

// WorkbookWriter renders order reports as xlsx
type WorkbookWriter struct{}

// NewWorkbookWriter creates a new WorkbookWriter
func NewWorkbookWriter() *WorkbookWriter {
	return &WorkbookWriter{}
}

// Write renders the report. The first sheet summarises, the second lists
// one order per row.
func (w *WorkbookWriter) Write(report *OrderReport) ([]byte, error) {
	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := file.NewSheet(ordersSheet); err != nil {
		return nil, err
	}
	if err := w.writeSummary(file, report); err != nil {
		return nil, err
	}
	if err := w.writeOrders(file, report); err != nil {
		return nil, err
	}

	file.SetActiveSheet(0)
	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("render workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func (w *WorkbookWriter) writeSummary(file *excelize.File, report *OrderReport) error {
	rows := [][]any{
		{"Partner", report.PartnerID.String()},
		{"Generated", report.GeneratedAt.Format(time.RFC3339)},
		{"Orders", report.Orders},
		{"Invoiced", report.Invoiced},
		{},
		{"Status", "Orders"},
	}
	for _, status := range fulfillment.AllStatuses {
		rows = append(rows, []any{string(status), report.ByStatus[status]})
	}
	rows = append(rows, []any{}, []any{"Currency", "Subtotal", "Tax", "Total"})
	for _, t := range report.Totals {
		rows = append(rows, []any{t.Currency, t.Subtotal.InexactFloat64(), t.Tax.InexactFloat64(), t.Total.InexactFloat64()})
	}

	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := file.SetSheetRow(summarySheet, cell, &row); err != nil {
			return err
		}
	}
	return file.SetColWidth(summarySheet, "A", "B", 40)
}

func (w *WorkbookWriter) writeOrders(file *excelize.File, report *OrderReport) error {
	header := make([]any, len(orderColumns))
	for i, name := range orderColumns {
		header[i] = name
	}
	if err := file.SetSheetRow(ordersSheet, "A1", &header); err != nil {
		return err
	}

	for i, r := range report.Rows {
		editor := ""
		if r.EditorID != nil {
			editor = r.EditorID.String()
		}
		values := []any{
			r.OrderID.String(),
			r.Title,
			string(r.Status),
			r.CustomerID.String(),
			editor,
			r.RevisionCount,
			r.Deliverables,
			formatDate(r.DueDate),
			r.CreatedAt.UTC().Format(time.RFC3339),
			formatDate(r.CompletedAt),
			r.Currency,
			r.Subtotal.InexactFloat64(),
			r.Tax.InexactFloat64(),
			r.Total.InexactFloat64(),
			r.InvoiceNumber,
			r.InvoiceStatus,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := file.SetSheetRow(ordersSheet, cell, &values); err != nil {
			return err
		}
	}

	if err := file.SetPanes(ordersSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return err
	}
	if err := file.SetColWidth(ordersSheet, "A", "A", 38); err != nil {
		return err
	}
	return file.SetColWidth(ordersSheet, "B", "B", 32)
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}
