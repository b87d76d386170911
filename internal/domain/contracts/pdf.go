package contracts

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// RenderPDF lays out the contract summary and its sign-off trail on one A4 page.
func RenderPDF(c Contract) ([]byte, error) {
	return renderPDF(c, true)
}

// renderPDF writes text through the cp1252 translator so names and notes
// outside ASCII survive the core fonts. Runes cp1252 lacks become ".".
func renderPDF(c Contract, compress bool) ([]byte, error) {
	doc := gofpdf.New("P", "mm", "A4", "")
	doc.SetCompression(compress)
	tr := doc.UnicodeTranslatorFromDescriptor("")

	doc.AddPage()
	doc.SetFont("Helvetica", "B", 16)
	doc.Cell(0, 10, tr("Employment Contract "+c.ContractNumber))
	doc.Ln(14)

	line := func(label, value string) {
		doc.SetFont("Helvetica", "B", 11)
		doc.Cell(45, 7, label)
		doc.SetFont("Helvetica", "", 11)
		doc.Cell(0, 7, tr(value))
		doc.Ln(7)
	}
	line("Employee:", c.EmployeeName)
	line("Type:", c.Type)
	line("Start date:", c.StartDate.Format("2006-01-02"))
	if c.EndDate != nil {
		line("End date:", c.EndDate.Format("2006-01-02"))
	}
	line("Salary:", fmt.Sprintf("%s %s", c.Salary.StringFixed(2), c.Currency))
	line("Working hours:", fmt.Sprintf("%d per week", c.WorkingHours))
	if c.DecidedAt != nil {
		line("Approved on:", c.DecidedAt.Format("2006-01-02"))
	}
	if c.Notes != "" {
		doc.Ln(3)
		doc.SetFont("Helvetica", "", 11)
		doc.MultiCell(0, 6, tr(c.Notes), "", "L", false)
	}

	if len(c.Approvals) > 0 {
		doc.Ln(6)
		doc.SetFont("Helvetica", "B", 12)
		doc.Cell(0, 8, "Approvals")
		doc.Ln(9)
		doc.SetFont("Helvetica", "", 10)
		for _, step := range c.Approvals {
			decided := ""
			if step.DecidedAt != nil {
				decided = step.DecidedAt.Format("2006-01-02 15:04")
			}
			doc.Cell(0, 6, tr(fmt.Sprintf("%d. %s - %s %s", step.StepOrder, step.RequiredRole, step.Status, decided)))
			doc.Ln(6)
		}
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
