// Package export renders grids as spreadsheets and reads them back.
package export

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/me/timetable/internal/directory"
	"github.com/me/timetable/pkg/model"
)

// ContentType is the MIME type of the workbook produced by WriteXLSX.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// maxSheetName is the Excel limit on sheet name length.
const maxSheetName = 31

// cellSep separates the subject from the instructor in a slot cell.
const cellSep = " / "

// WriteXLSX writes one sheet per grid: periods down, days across. Break rows
// carry the break's name. dir may be nil, in which case instructor IDs are
// written instead of names.
func WriteXLSX(w io.Writer, grids []*model.Grid, cal model.Calendar, dir directory.Directory) error {
	if len(grids) == 0 {
		return fmt.Errorf("no grids to export")
	}
	f := excelize.NewFile()
	defer f.Close()

	for i, g := range grids {
		sheet := SheetName(g.ClassGroup)
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheet); err != nil {
				return fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("new sheet %s: %w", sheet, err)
		}
		if err := writeGrid(f, sheet, g, cal, dir); err != nil {
			return fmt.Errorf("sheet %s: %w", sheet, err)
		}
	}
	f.SetActiveSheet(0)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeGrid(f *excelize.File, sheet string, g *model.Grid, cal model.Calendar, dir directory.Directory) error {
	header := []any{"Period", "Time"}
	for _, d := range cal.Days {
		header = append(header, string(d))
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}

	for i, p := range cal.Periods {
		row := []any{p.Name, fmt.Sprintf("%s-%s", p.Start, p.End)}
		for _, d := range cal.Days {
			switch {
			case p.Break:
				row = append(row, p.Name)
			default:
				row = append(row, cellText(g.Slots[model.SlotKey{Day: d, Period: p.Ordinal}], dir))
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return f.SetColWidth(sheet, "C", colName(len(cal.Days)+2), 22)
}

func cellText(a model.Assignment, dir directory.Directory) string {
	if a.Subject == "" {
		return ""
	}
	if !a.HasInstructor() {
		return a.Subject
	}
	return a.Subject + cellSep + directory.Name(dir, a.InstructorID)
}

func colName(n int) string {
	name, err := excelize.ColumnNumberToName(n)
	if err != nil {
		return "C"
	}
	return name
}

// SheetName maps a class group to a valid worksheet name.
func SheetName(classGroup string) string {
	name := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`[]:*?/\`, r) {
			return '_'
		}
		return r
	}, classGroup)
	if name == "" {
		name = "Grid"
	}
	if r := []rune(name); len(r) > maxSheetName {
		name = string(r[:maxSheetName])
	}
	return name
}

// ReadXLSX parses a workbook written by WriteXLSX back into draft grids, one
// per sheet. Instructor names found in dir are mapped back to their IDs; any
// other instructor text is taken as an ID. dir may be nil. Cells on break rows
// and empty cells are skipped.
func ReadXLSX(data []byte, term string, cal model.Calendar, dir directory.Directory) ([]*model.Grid, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	ids := map[string]string{}
	if dir != nil {
		for _, p := range dir.List() {
			ids[p.DisplayName()] = p.ID
		}
	}

	var out []*model.Grid
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("sheet %s: %w", sheet, err)
		}
		g, err := parseSheet(sheet, rows, term, cal, ids)
		if err != nil {
			return nil, fmt.Errorf("sheet %s: %w", sheet, err)
		}
		out = append(out, g)
	}
	return out, nil
}

func parseSheet(sheet string, rows [][]string, term string, cal model.Calendar, ids map[string]string) (*model.Grid, error) {
	if len(rows) < 1 || len(rows[0]) < 3 {
		return nil, fmt.Errorf("missing header row")
	}
	days := make([]model.Day, 0, len(rows[0])-2)
	for _, h := range rows[0][2:] {
		d, err := model.ParseDay(h)
		if err != nil {
			return nil, err
		}
		days = append(days, d)
	}

	g := model.NewGrid(sheet, term)
	for i, row := range rows[1:] {
		if i >= len(cal.Periods) {
			break
		}
		p := cal.Periods[i]
		if p.Break {
			continue
		}
		for j, d := range days {
			if j+2 >= len(row) {
				break
			}
			text := strings.TrimSpace(row[j+2])
			if text == "" {
				continue
			}
			subject, instructor, _ := strings.Cut(text, cellSep)
			a := model.Assignment{Subject: strings.TrimSpace(subject), Source: model.SourceExplicit}
			if instructor = strings.TrimSpace(instructor); instructor != "" {
				if id, ok := ids[instructor]; ok {
					instructor = id
				}
				a.InstructorID = instructor
			}
			g.Slots[model.SlotKey{Day: d, Period: p.Ordinal}] = a
		}
	}
	return g, nil
}
