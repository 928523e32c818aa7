// Package export writes the reservation history as a spreadsheet.
package export

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/example/slot-scheduler/internal/domain/reservation"
)

var columns = []string{"Date", "Time", "Category", "First name", "Last name"}

// WriteXLSX writes one "All" sheet in ledger order plus one sheet per person.
func WriteXLSX(w io.Writer, h reservation.History) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", "All"); err != nil {
		return err
	}
	if err := writeSheet(f, "All", h); err != nil {
		return err
	}

	byPerson := make(map[string]reservation.History)
	for _, r := range h {
		name := sheetName(r.LastName + ", " + r.FirstName)
		byPerson[name] = append(byPerson[name], r)
	}
	names := make([]string, 0, len(byPerson))
	for n := range byPerson {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		if _, err := f.NewSheet(n); err != nil {
			return fmt.Errorf("create sheet %s: %w", n, err)
		}
		if err := writeSheet(f, n, byPerson[n]); err != nil {
			return err
		}
	}
	return f.Write(w)
}

func writeSheet(f *excelize.File, sheet string, h reservation.History) error {
	if err := writeRow(f, sheet, 1, columns); err != nil {
		return err
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		end, _ := excelize.CoordinatesToCellName(len(columns), 1)
		_ = f.SetCellStyle(sheet, "A1", end, style)
	}
	for i, r := range h {
		if err := writeRow(f, sheet, i+2, []string{r.Date, r.Time, r.Category, r.FirstName, r.LastName}); err != nil {
			return err
		}
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, vals []string) error {
	for i, v := range vals {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return err
		}
	}
	return nil
}

// sheetName strips characters Excel forbids and truncates to 31 runes.
func sheetName(s string) string {
	s = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`\/?*[]:`, r) {
			return -1
		}
		return r
	}, s)
	if rs := []rune(s); len(rs) > 31 {
		s = string(rs[:31])
	}
	return s
}
