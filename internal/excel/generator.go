package excel

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/nurpe/sid-bonds/internal/model"
)

var detailHeaders = []string{
	"Reference",
	"External reference",
	"Type",
	"Currency",
	"Amount",
	"Order base",
	"Issue date",
	"Due date",
	"Origin",
	"Reviewed",
}

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

func (g *Generator) Generate(register model.GuaranteeRegister) ([]byte, error) {
	file := excelize.NewFile()
	defer file.Close()

	groups := groupByState(register.Guarantees)

	summarySheet := "Summary"
	file.SetSheetName("Sheet1", summarySheet)
	if err := g.writeSummary(file, summarySheet, register, groups); err != nil {
		return nil, err
	}

	usedNames := map[string]struct{}{summarySheet: {}}
	for _, group := range groups {
		sheetName := buildSheetName(string(group.state), usedNames)
		usedNames[sheetName] = struct{}{}

		if _, err := file.NewSheet(sheetName); err != nil {
			return nil, err
		}
		if err := g.writeDetail(file, sheetName, group); err != nil {
			return nil, err
		}
	}

	file.SetActiveSheet(0)
	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type stateGroup struct {
	state      model.GuaranteeState
	guarantees []model.GuaranteeView
	amount     decimal.Decimal
	base       decimal.Decimal
}

func groupByState(items []model.GuaranteeView) []stateGroup {
	index := make(map[model.GuaranteeState]int)
	var groups []stateGroup
	for _, item := range items {
		pos, ok := index[item.State]
		if !ok {
			groups = append(groups, stateGroup{state: item.State, amount: decimal.Zero, base: decimal.Zero})
			pos = len(groups) - 1
			index[item.State] = pos
		}
		groups[pos].guarantees = append(groups[pos].guarantees, item)
		groups[pos].amount = groups[pos].amount.Add(item.Amount)
		groups[pos].base = groups[pos].base.Add(item.BaseAmount)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].state < groups[j].state })
	return groups
}

func (g *Generator) writeSummary(file *excelize.File, sheet string, register model.GuaranteeRegister, groups []stateGroup) error {
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(sheet, cell, value)
	}

	total := decimal.Zero
	for _, group := range groups {
		total = total.Add(group.amount)
	}

	set("A1", "Report")
	set("B1", "Bank guarantees register")
	set("A2", "Generated at")
	set("B2", formatDateTime(register.GeneratedAt))
	set("A3", "Guarantees")
	set("B3", len(register.Guarantees))
	set("A4", "Total amount")
	set("B4", total.InexactFloat64())

	tableRow := 6
	set(fmt.Sprintf("A%d", tableRow), "State")
	set(fmt.Sprintf("B%d", tableRow), "Guarantees")
	set(fmt.Sprintf("C%d", tableRow), "Amount")
	set(fmt.Sprintf("D%d", tableRow), "Order base")

	for i, group := range groups {
		row := tableRow + 1 + i
		set(fmt.Sprintf("A%d", row), string(group.state))
		set(fmt.Sprintf("B%d", row), len(group.guarantees))
		set(fmt.Sprintf("C%d", row), group.amount.InexactFloat64())
		set(fmt.Sprintf("D%d", row), group.base.InexactFloat64())
	}

	_ = file.SetColWidth(sheet, "A", "A", 28)
	_ = file.SetColWidth(sheet, "B", "D", 18)
	return nil
}

func (g *Generator) writeDetail(file *excelize.File, sheet string, group stateGroup) error {
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(sheet, cell, value)
	}

	for i, header := range detailHeaders {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		set(cell, header)
	}

	for i, item := range group.guarantees {
		row := 2 + i
		values := []interface{}{
			item.Name,
			item.ExternalRef,
			string(item.Type),
			item.Currency,
			item.Amount.InexactFloat64(),
			item.BaseAmount.InexactFloat64(),
			formatDate(item.IssueDate),
			formatDate(item.DueDate),
			item.Origin,
			item.Reviewed,
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return err
			}
			set(cell, value)
		}
	}

	_ = file.SetColWidth(sheet, "A", "B", 20)
	_ = file.SetColWidth(sheet, "C", "D", 14)
	_ = file.SetColWidth(sheet, "E", "F", 16)
	_ = file.SetColWidth(sheet, "G", "H", 12)
	_ = file.SetColWidth(sheet, "I", "I", 40)
	return nil
}

func buildSheetName(name string, used map[string]struct{}) string {
	base := sanitizeSheetName(name)
	if len(base) > 31 {
		base = base[:31]
	}

	nameCandidate := base
	counter := 2
	for {
		if _, exists := used[nameCandidate]; !exists {
			return nameCandidate
		}
		suffix := fmt.Sprintf("-%d", counter)
		trimmed := base
		if len(trimmed)+len(suffix) > 31 {
			trimmed = trimmed[:31-len(suffix)]
		}
		nameCandidate = trimmed + suffix
		counter++
	}
}

func sanitizeSheetName(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "Sheet"
	}

	replacer := strings.NewReplacer(
		"[", "-",
		"]", "-",
		":", "-",
		"*", "-",
		"?", "-",
		"/", "-",
		"\\", "-",
	)
	value = strings.TrimSpace(replacer.Replace(value))
	if value == "" {
		return "Sheet"
	}
	return value
}

func formatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func formatDateTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02 15:04:05")
}
