package pdf

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"

	"github.com/nurpe/sid-bonds/internal/model"
)

var typeLabels = map[model.GuaranteeType]string{
	model.GuaranteeTypeProvisional:           "Provisional",
	model.GuaranteeTypeCompliance:            "Compliance",
	model.GuaranteeTypeWarranty:              "Warranty",
	model.GuaranteeTypeComplianceAndWarranty: "Compliance and warranty",
}

type Generator struct {
	fontName string
}

func NewGenerator() *Generator {
	return &Generator{fontName: "Helvetica"}
}

func (g *Generator) Generate(summary model.GuaranteeSummary) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	bond := summary.Guarantee

	pdf.SetFont(g.fontName, "B", 14)
	pdf.CellFormat(0, 10, tr(fmt.Sprintf("Bank guarantee %s", bond.Name)), "", 1, "C", false, 0, "")
	pdf.SetFont(g.fontName, "", 10)
	pdf.CellFormat(0, 6, tr(fmt.Sprintf("Generated on %s", formatDate(&summary.GeneratedAt))), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	addFieldBlock(pdf, g.fontName, tr, "Guarantee", [][2]string{
		{"External reference", safeValue(bond.ExternalRef)},
		{"Type", safeValue(typeLabels[bond.Type])},
		{"State", string(bond.State)},
		{"Amount", fmt.Sprintf("%s %s", formatAmount(bond.Amount), bond.Currency)},
		{"Issue date", formatDate(bond.IssueDate)},
		{"Due date", formatDate(bond.DueDate)},
		{"Digital", yesNo(bond.Digital)},
		{"Reviewed", yesNo(bond.Reviewed)},
	})
	pdf.Ln(2)
	addFieldBlock(pdf, g.fontName, tr, "Order base", [][2]string{
		{"Base amount", fmt.Sprintf("%s %s", formatAmount(bond.BaseAmount), bond.Currency)},
		{"Origin", safeValue(bond.Origin)},
	})
	pdf.Ln(4)

	if len(summary.Contracts) > 0 {
		pdf.SetFont(g.fontName, "B", 12)
		pdf.CellFormat(0, 8, tr("Contracts"), "", 1, "L", false, 0, "")
		widths := []float64{90, 45, 45}
		drawTableRow(pdf, g.fontName, tr, []string{"Contract", "Untaxed", "Total"}, widths, true)
		for _, c := range summary.Contracts {
			drawTableRow(pdf, g.fontName, tr, []string{
				c.Name,
				formatAmount(c.AmountUntaxed),
				formatAmount(c.AmountTotal),
			}, widths, false)
		}
		pdf.Ln(4)
	}

	if len(summary.Orders) > 0 {
		pdf.SetFont(g.fontName, "B", 12)
		pdf.CellFormat(0, 8, tr("Confirmed orders"), "", 1, "L", false, 0, "")
		widths := []float64{60, 40, 35, 45}
		drawTableRow(pdf, g.fontName, tr, []string{"Order", "Date", "State", "Untaxed"}, widths, true)
		for _, o := range summary.Orders {
			date := o.DateOrder
			drawTableRow(pdf, g.fontName, tr, []string{
				o.Name,
				formatDate(&date),
				string(o.State),
				formatAmount(o.AmountUntaxed),
			}, widths, false)
		}
	}

	if strings.TrimSpace(bond.Description) != "" {
		pdf.Ln(4)
		pdf.SetFont(g.fontName, "B", 12)
		pdf.CellFormat(0, 8, tr("Description"), "", 1, "L", false, 0, "")
		pdf.SetFont(g.fontName, "", 10)
		pdf.MultiCell(0, 5, tr(bond.Description), "", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func addFieldBlock(pdf *gofpdf.Fpdf, fontName string, tr func(string) string, title string, fields [][2]string) {
	pdf.SetFont(fontName, "B", 11)
	pdf.CellFormat(0, 6, tr(title), "", 1, "L", false, 0, "")
	pdf.SetFont(fontName, "", 10)
	for _, field := range fields {
		pdf.CellFormat(50, 5, tr(field[0]+":"), "", 0, "L", false, 0, "")
		pdf.MultiCell(0, 5, tr(field[1]), "", "L", false)
	}
}

func drawTableRow(pdf *gofpdf.Fpdf, fontName string, tr func(string) string, cols []string, widths []float64, header bool) {
	style := ""
	if header {
		style = "B"
	}
	pdf.SetFont(fontName, style, 10)
	for i, col := range cols {
		align := "L"
		if i > 0 {
			align = "R"
		}
		pdf.CellFormat(widths[i], 8, tr(col), "1", 0, align, false, 0, "")
	}
	pdf.Ln(-1)
}

func safeValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}

func formatAmount(value decimal.Decimal) string {
	return value.StringFixed(2)
}

func formatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Format("02.01.2006")
}
