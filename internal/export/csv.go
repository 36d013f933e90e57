// Package export serializes exported event log rows into the comma-delimited
// file handed to the evaluator.
package export

import (
	"bufio"
	"io"
	"strings"
	"time"
)

// BOM makes spreadsheet applications detect UTF-8.
const BOM = "\uFEFF"

// ContentType of the encoded file.
const ContentType = "text/csv; charset=utf-8"

// FilePrefix is the leading part of every export file name.
const FilePrefix = "园区智驾体验分记录"

// WriteCSV writes rows as CSV: a byte-order mark first, every field wrapped in
// double quotes with embedded quotes doubled, rows separated by CRLF.
func WriteCSV(w io.Writer, rows [][]string) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(BOM); err != nil {
		return err
	}

	for i, row := range rows {
		if i > 0 {
			if _, err := bw.WriteString("\r\n"); err != nil {
				return err
			}
		}
		for j, field := range row {
			if j > 0 {
				if err := bw.WriteByte(','); err != nil {
					return err
				}
			}
			if _, err := bw.WriteString(quote(field)); err != nil {
				return err
			}
		}
	}

	return bw.Flush()
}

func quote(field string) string {
	return `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
}

// FileName returns the download name for an export made at t,
// e.g. 园区智驾体验分记录_20240517_093015.csv.
func FileName(t time.Time) string {
	return FilePrefix + "_" + t.Format("20060102_150405") + ".csv"
}
