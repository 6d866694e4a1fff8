package service

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/timmy/timesheet/internal/domain"
	"github.com/xuri/excelize/v2"
)

// TimesheetSheet is the worksheet name of rendered timesheets.
const TimesheetSheet = "Timesheet"

// XLSXContentType is the MIME type of rendered timesheets.
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// TimesheetData is everything a rendered weekly timesheet shows.
type TimesheetData struct {
	EmployeeID   uint
	EmployeeName string
	TaskID       uint
	TaskTitle    string
	ProjectTitle string
	CustomerName string
	Week         int
	Year         int
	Entries      []domain.WorkEntry
	ApproverName string
	ApprovedAt   time.Time
	Signature    []byte // PNG
}

// Renderer turns TimesheetData into a document.
type Renderer interface {
	Render(ctx context.Context, data *TimesheetData) ([]byte, error)
	ContentType() string
	Extension() string
}

// RenderConfig holds the static parts of a timesheet.
type RenderConfig struct {
	Title          string
	LogoPath       string
	CompanyName    string
	CompanyAddress string
	CompanyContact string
}

// ExcelRenderer renders timesheets as XLSX workbooks.
type ExcelRenderer struct {
	cfg     RenderConfig
	logo    []byte
	logoExt string
}

// NewExcelRenderer creates an ExcelRenderer. The logo, if configured, is read once.
func NewExcelRenderer(cfg RenderConfig) (*ExcelRenderer, error) {
	r := &ExcelRenderer{cfg: cfg}
	if r.cfg.Title == "" {
		r.cfg.Title = "Timesheet"
	}
	if cfg.LogoPath != "" {
		data, err := os.ReadFile(cfg.LogoPath)
		if err != nil {
			return nil, domain.NewDependencyConfigError("cannot read document logo %s: %v", cfg.LogoPath, err)
		}
		r.logo = data
		r.logoExt = strings.ToLower(filepath.Ext(cfg.LogoPath))
	}
	return r, nil
}

// ContentType returns the XLSX MIME type.
func (r *ExcelRenderer) ContentType() string { return XLSXContentType }

// Extension returns ".xlsx".
func (r *ExcelRenderer) Extension() string { return ".xlsx" }

var tableHeaders = []string{"Date", "Weekday", "Start", "End", "Pause", "Hours", "Distance (km)"}

// Render builds the workbook: header with logo and title, metadata block,
// one row per entry ordered by date, totals, approval block with signature
// and the company footer.
func (r *ExcelRenderer) Render(ctx context.Context, data *TimesheetData) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", TimesheetSheet); err != nil {
		return nil, fmt.Errorf("xlsx sheet: %w", err)
	}
	sheet := TimesheetSheet

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("xlsx style: %w", err)
	}
	titleStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 16}})
	if err != nil {
		return nil, fmt.Errorf("xlsx style: %w", err)
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true},
		Fill:   excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"D9E1F2"}},
		Border: []excelize.Border{{Type: "bottom", Color: "000000", Style: 1}},
	})
	if err != nil {
		return nil, fmt.Errorf("xlsx style: %w", err)
	}
	number, err := f.NewStyle(&excelize.Style{NumFmt: 2})
	if err != nil {
		return nil, fmt.Errorf("xlsx style: %w", err)
	}
	totalStyle, err := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true},
		NumFmt: 2,
		Border: []excelize.Border{{Type: "top", Color: "000000", Style: 1}},
	})
	if err != nil {
		return nil, fmt.Errorf("xlsx style: %w", err)
	}

	w := &sheetWriter{f: f, sheet: sheet}
	write, styleRow := w.set, w.style

	// Header
	if len(r.logo) > 0 {
		if err := f.AddPictureFromBytes(sheet, "A1", &excelize.Picture{
			Extension: r.logoExt,
			File:      r.logo,
			Format:    &excelize.GraphicOptions{AutoFit: true, LockAspectRatio: true},
		}); err != nil {
			return nil, fmt.Errorf("xlsx logo: %w", err)
		}
	}
	write(3, 1, r.cfg.Title)
	styleRow(1, 3, 3, titleStyle)
	w.keep(f.MergeCell(sheet, "C1", "G1"))
	w.keep(f.SetRowHeight(sheet, 1, 36))

	// Metadata
	row := 3
	meta := [][2]string{
		{"Employee", fmt.Sprintf("%s (#%d)", data.EmployeeName, data.EmployeeID)},
		{"Task", fmt.Sprintf("%s (#%d)", data.TaskTitle, data.TaskID)},
		{"Project", data.ProjectTitle},
		{"Customer", data.CustomerName},
		{"Calendar week", fmt.Sprintf("KW %d / %d", data.Week, data.Year)},
	}
	for _, m := range meta {
		write(1, row, m[0])
		write(2, row, m[1])
		styleRow(row, 1, 1, bold)
		row++
	}

	// Table
	row++
	for i, h := range tableHeaders {
		write(i+1, row, h)
	}
	styleRow(row, 1, len(tableHeaders), headerStyle)
	row++

	var totalHours, totalDistance float64
	for _, e := range data.Entries {
		hours := e.WorkedHours()
		totalHours += hours

		write(1, row, e.WorkDate.String())
		write(2, row, e.WorkDate.Weekday().String())
		write(3, row, clock(e.StartTime))
		write(4, row, clock(e.EndTime))
		write(5, row, pause(e.PauseMinutes))
		write(6, row, round2(hours))
		if e.Distance != nil {
			totalDistance += *e.Distance
			write(7, row, round2(*e.Distance))
		}
		styleRow(row, 6, 7, number)
		row++
	}

	write(1, row, "Total")
	write(6, row, round2(totalHours))
	write(7, row, round2(totalDistance))
	styleRow(row, 1, len(tableHeaders), totalStyle)
	row += 2

	// Approval
	write(1, row, "Approved by")
	write(2, row, data.ApproverName)
	styleRow(row, 1, 1, bold)
	row++
	write(1, row, "Approved on")
	write(2, row, data.ApprovedAt.Format(domain.DateLayout))
	styleRow(row, 1, 1, bold)
	row++
	write(1, row, "Signature")
	styleRow(row, 1, 1, bold)
	if len(data.Signature) > 0 {
		cell, err := excelize.CoordinatesToCellName(2, row)
		if err != nil {
			return nil, fmt.Errorf("xlsx signature: %w", err)
		}
		if err := f.AddPictureFromBytes(sheet, cell, &excelize.Picture{
			Extension: ".png",
			File:      data.Signature,
			Format:    &excelize.GraphicOptions{LockAspectRatio: true},
		}); err != nil {
			return nil, fmt.Errorf("xlsx signature: %w", err)
		}
		w.keep(f.SetRowHeight(sheet, row, 60))
	}
	row += 2

	// Footer
	for _, line := range []string{r.cfg.CompanyName, r.cfg.CompanyAddress, r.cfg.CompanyContact} {
		if line == "" {
			continue
		}
		write(1, row, line)
		row++
	}

	w.keep(f.SetColWidth(sheet, "A", "A", 16))
	w.keep(f.SetColWidth(sheet, "B", "B", 28))
	w.keep(f.SetColWidth(sheet, "C", "E", 10))
	w.keep(f.SetColWidth(sheet, "F", "G", 14))
	if w.err != nil {
		return nil, fmt.Errorf("xlsx cells: %w", w.err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

// sheetWriter writes cells of one sheet and keeps the first error.
// Once an error is kept, further writes are skipped.
type sheetWriter struct {
	f     *excelize.File
	sheet string
	err   error
}

func (w *sheetWriter) keep(err error) {
	if w.err == nil && err != nil {
		w.err = err
	}
}

func (w *sheetWriter) set(col, row int, v any) {
	if w.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		w.keep(err)
		return
	}
	w.keep(w.f.SetCellValue(w.sheet, cell, v))
}

func (w *sheetWriter) style(row, fromCol, toCol, style int) {
	if w.err != nil {
		return
	}
	from, err := excelize.CoordinatesToCellName(fromCol, row)
	if err != nil {
		w.keep(err)
		return
	}
	to, err := excelize.CoordinatesToCellName(toCol, row)
	if err != nil {
		w.keep(err)
		return
	}
	w.keep(w.f.SetCellStyle(w.sheet, from, to, style))
}

func clock(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("15:04")
}

func pause(minutes int) string {
	if minutes <= 0 {
		return "0:00"
	}
	return fmt.Sprintf("%d:%02d", minutes/60, minutes%60)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
