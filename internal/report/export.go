package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"attendtrack/internal/stats"
)

// Format is an export file type.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
)

// ParseFormat validates an export format name. Empty means CSV.
func ParseFormat(v string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(v))); f {
	case "":
		return FormatCSV, nil
	case FormatCSV, FormatXLSX, FormatPDF:
		return f, nil
	}
	return "", fmt.Errorf("unknown export format %q", v)
}

// ContentType is the MIME type of f.
func (f Format) ContentType() string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF:
		return "application/pdf"
	default:
		return "text/csv; charset=utf-8"
	}
}

// Meta describes the export itself.
type Meta struct {
	Period      string
	GeneratedAt time.Time
	Location    *time.Location
}

func (m Meta) loc() *time.Location {
	if m.Location == nil {
		return time.UTC
	}
	return m.Location
}

// Filename is the suggested download name, e.g. estadisticas_mes_14-03-2025.pdf.
func (m Meta) Filename(f Format) string {
	period := OrPlaceholder(m.Period)
	if period == Placeholder {
		period = "rango"
	}
	return fmt.Sprintf("estadisticas_%s_%s.%s", period, m.GeneratedAt.In(m.loc()).Format("02-01-2006"), f)
}

func (m Meta) rangeText(r stats.Range) string {
	return FormatDate(r.From, m.loc()) + " al " + FormatDate(r.To, m.loc())
}

// Write renders ds in format f.
func Write(w io.Writer, f Format, ds stats.Dataset, meta Meta) error {
	switch f {
	case FormatXLSX:
		return WriteXLSX(w, ds, meta)
	case FormatPDF:
		return WritePDF(w, ds, meta)
	default:
		return WriteCSV(w, ds, meta)
	}
}
