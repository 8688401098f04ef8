package output

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/abdul-hamid-achik/hitchain/packages/core/runner"
)

const (
	xlsxSheetName     = "Results"
	xlsxSummarySheet  = "Summary"
	xlsxColumnWidth   = 16
	xlsxPatternType   = "pattern"
	xlsxPatternSolid  = 1
	xlsxFailedColor   = "FF5900"
	xlsxErrorColor    = "FFEB9C"
	xlsxNotRunColor   = "D9D9D9"
	xlsxHeaderColor   = "BDD7EE"
	xlsxSlowColor     = "FFF2CC"
	xlsxSlowThreshold = 300 * time.Millisecond
)

var xlsxHeaders = []string{
	"Index", "Name", "Positive", "Method", "URL",
	"Expected", "Actual", "State", "Duration (ms)", "Error",
}

// XLSXFormatter writes run results to an Excel workbook
type XLSXFormatter struct {
	writer  io.Writer
	results []*runner.RunResult
	errors  []string
	version string
}

func NewXLSXFormatter(w io.Writer) *XLSXFormatter {
	return &XLSXFormatter{writer: w}
}

func (f *XLSXFormatter) FormatResult(result *runner.RunResult) {
	f.results = append(f.results, result)
}

func (f *XLSXFormatter) FormatError(err error) {
	f.errors = append(f.errors, err.Error())
}

func (f *XLSXFormatter) FormatHeader(version string) {
	f.version = version
}

// Flush builds the workbook and writes it
func (f *XLSXFormatter) Flush(totalDuration time.Duration) error {
	book := excelize.NewFile()
	defer book.Close()

	if err := book.SetSheetName("Sheet1", xlsxSheetName); err != nil {
		return fmt.Errorf("renaming sheet: %w", err)
	}

	styles, err := newXLSXStyles(book)
	if err != nil {
		return err
	}

	if err := f.writeResults(book, styles); err != nil {
		return err
	}
	if err := f.writeSummary(book, styles, totalDuration); err != nil {
		return err
	}

	if err := book.Write(f.writer); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

type xlsxStyles struct {
	header, failed, errored, notRun, slow int
}

func newXLSXStyles(book *excelize.File) (*xlsxStyles, error) {
	fill := func(color string, bold bool) (int, error) {
		style := &excelize.Style{
			Fill: excelize.Fill{
				Type:    xlsxPatternType,
				Pattern: xlsxPatternSolid,
				Color:   []string{color},
			},
		}
		if bold {
			style.Font = &excelize.Font{Bold: true}
		}
		return book.NewStyle(style)
	}

	var s xlsxStyles
	var err error
	if s.header, err = fill(xlsxHeaderColor, true); err != nil {
		return nil, fmt.Errorf("creating style: %w", err)
	}
	if s.failed, err = fill(xlsxFailedColor, false); err != nil {
		return nil, fmt.Errorf("creating style: %w", err)
	}
	if s.errored, err = fill(xlsxErrorColor, false); err != nil {
		return nil, fmt.Errorf("creating style: %w", err)
	}
	if s.notRun, err = fill(xlsxNotRunColor, false); err != nil {
		return nil, fmt.Errorf("creating style: %w", err)
	}
	if s.slow, err = fill(xlsxSlowColor, false); err != nil {
		return nil, fmt.Errorf("creating style: %w", err)
	}
	return &s, nil
}

func (f *XLSXFormatter) writeResults(book *excelize.File, styles *xlsxStyles) error {
	lastCol, _ := excelize.ColumnNumberToName(len(xlsxHeaders))
	if err := book.SetColWidth(xlsxSheetName, "A", lastCol, xlsxColumnWidth); err != nil {
		return err
	}

	if err := book.SetSheetRow(xlsxSheetName, "A1", &xlsxHeaders); err != nil {
		return err
	}
	if err := book.SetCellStyle(xlsxSheetName, "A1", lastCol+"1", styles.header); err != nil {
		return err
	}

	row := 2
	for _, result := range f.results {
		for _, r := range result.Results {
			method, url := "", ""
			if r.Request != nil {
				method, url = r.Request.Method, r.Request.URL
			}
			values := []any{
				r.Index, r.Name, r.Positive, method, url,
				r.Expected, r.Actual, r.State.String(), r.Duration.Milliseconds(), errorText(r.Error),
			}
			if err := f.writeRow(book, row, values); err != nil {
				return err
			}

			style := 0
			switch {
			case r.Error != nil:
				style = styles.errored
			case r.State == runner.StateFailed:
				style = styles.failed
			case r.Duration > xlsxSlowThreshold:
				style = styles.slow
			}
			if style != 0 {
				if err := book.SetCellStyle(xlsxSheetName, cellName(1, row), cellName(len(xlsxHeaders), row), style); err != nil {
					return err
				}
			}
			row++
		}

		offset := len(result.Results)
		for i, name := range result.NotRunNames {
			values := []any{offset + i, name, nil, nil, nil, nil, nil, "not run", nil, nil}
			if err := f.writeRow(book, row, values); err != nil {
				return err
			}
			if err := book.SetCellStyle(xlsxSheetName, cellName(1, row), cellName(len(xlsxHeaders), row), styles.notRun); err != nil {
				return err
			}
			row++
		}
	}
	return nil
}

func (f *XLSXFormatter) writeRow(book *excelize.File, row int, values []any) error {
	return book.SetSheetRow(xlsxSheetName, cellName(1, row), &values)
}

func (f *XLSXFormatter) writeSummary(book *excelize.File, styles *xlsxStyles, totalDuration time.Duration) error {
	if _, err := book.NewSheet(xlsxSummarySheet); err != nil {
		return err
	}
	if err := book.SetColWidth(xlsxSummarySheet, "A", "B", xlsxColumnWidth*2); err != nil {
		return err
	}

	var total, executed, passed, failed int
	for _, r := range f.results {
		total += r.Total
		executed += r.Executed()
		passed += r.Passed
		if r.Failure != nil {
			failed++
		}
	}

	rows := [][]any{
		{"Generator", "hitchain " + f.version},
		{"Generated at", time.Now().Format(time.RFC3339)},
		{"Total", total},
		{"Executed", executed},
		{"Passed", passed},
		{"Failed", failed},
		{"Duration (s)", totalDuration.Seconds()},
	}
	if len(f.results) == 1 {
		r := f.results[0]
		rows = append([][]any{{"Run", r.ID.String()}, {"File", r.File}}, rows...)
		if r.Latency.Count > 0 {
			rows = append(rows,
				[]any{"p50 (ms)", r.Latency.P50.Milliseconds()},
				[]any{"p95 (ms)", r.Latency.P95.Milliseconds()},
				[]any{"p99 (ms)", r.Latency.P99.Milliseconds()},
			)
		}
	}
	for _, e := range f.errors {
		rows = append(rows, []any{"Error", e})
	}

	for i, values := range rows {
		if err := book.SetSheetRow(xlsxSummarySheet, cellName(1, i+1), &values); err != nil {
			return err
		}
	}
	return book.SetCellStyle(xlsxSummarySheet, "A1", cellName(1, len(rows)), styles.header)
}

func cellName(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}
