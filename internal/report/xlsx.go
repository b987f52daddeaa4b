package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"attendtrack/internal/stats"
)

// Sheet names of the workbook export.
const (
	SheetSummary  = "Resumen Ejecutivo"
	SheetAnalysis = "Análisis Detallado"
	SheetRaw      = "Datos Crudos"
)

type sheetWriter struct {
	f     *excelize.File
	sheet string
	row   int
	bold  int
	err   error
}

func (s *sheetWriter) put(bold bool, values ...string) {
	s.row++
	if s.err != nil || len(values) == 0 {
		return
	}
	cell, err := excelize.CoordinatesToCellName(1, s.row)
	if err != nil {
		s.err = err
		return
	}
	row := make([]interface{}, len(values))
	for i, v := range values {
		row[i] = v
	}
	if err := s.f.SetSheetRow(s.sheet, cell, &row); err != nil {
		s.err = err
		return
	}
	if bold {
		last, _ := excelize.CoordinatesToCellName(len(values), s.row)
		s.err = s.f.SetCellStyle(s.sheet, cell, last, s.bold)
	}
}

func (s *sheetWriter) rows(rows [][]string) {
	for _, r := range rows {
		s.put(false, r...)
	}
}

func (s *sheetWriter) title(text string, span int) {
	s.put(true, text)
	if s.err != nil {
		return
	}
	first, _ := excelize.CoordinatesToCellName(1, s.row)
	last, _ := excelize.CoordinatesToCellName(span, s.row)
	s.err = s.f.MergeCell(s.sheet, first, last)
}

func (s *sheetWriter) widths(widths ...float64) {
	for i, w := range widths {
		if s.err != nil {
			return
		}
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			s.err = err
			return
		}
		s.err = s.f.SetColWidth(s.sheet, col, col, w)
	}
}

// WriteXLSX writes a three-sheet workbook: executive summary, detailed analysis and the
// raw records of the period.
func WriteXLSX(w io.Writer, ds stats.Dataset, meta Meta) error {
	f := excelize.NewFile()
	defer f.Close()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("xlsx style: %w", err)
	}
	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return fmt.Errorf("xlsx sheet: %w", err)
	}
	for _, name := range []string{SheetAnalysis, SheetRaw} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("xlsx sheet: %w", err)
		}
	}

	snap := ds.Snapshot
	loc := meta.loc()

	summary := &sheetWriter{f: f, sheet: SheetSummary, bold: bold}
	summary.title("PANEL DE ESTADÍSTICAS - CONTROL DE ASISTENCIAS", 3)
	summary.put(false)
	summary.put(true, "Información del Reporte")
	summary.put(false, "Fecha de Generación:", FormatDate(meta.GeneratedAt, loc))
	summary.put(false, "Período Seleccionado:", OrPlaceholder(meta.Period))
	summary.put(false, "Rango de Fechas:", meta.rangeText(snap.Range))
	summary.put(false)
	summary.title("ESTADÍSTICAS PRINCIPALES", 3)
	summary.put(true, "Indicador", "Valor", "Descripción")
	summary.rows(SummaryRows(snap.Result))
	summary.widths(28, 18, 28)

	analysis := &sheetWriter{f: f, sheet: SheetAnalysis, bold: bold}
	analysis.title("ANÁLISIS DETALLADO DE ASISTENCIAS", 6)
	analysis.put(false)
	analysis.put(false, "Período de Análisis:", meta.rangeText(snap.Range))
	analysis.put(false)
	analysis.title("DISTRIBUCIÓN POR ESTADO", 3)
	analysis.put(true, "Estado", "Cantidad", "Porcentaje")
	analysis.rows(DistributionRows(snap.Distribution))
	analysis.put(false)
	analysis.title("RANKING DE USUARIOS", 6)
	analysis.put(true, RankingHeader...)
	analysis.rows(RankingRows(snap.Result.Ranking))
	analysis.put(false)
	analysis.title("ASISTENCIAS POR DÍA (SEMANA)", 3)
	analysis.put(true, "Día", "Cantidad", "Porcentaje")
	for _, b := range snap.Charts.Weekly {
		analysis.put(false, b.Day, fmt.Sprint(b.Count), FormatPercent(b.Percent))
	}
	analysis.put(false)
	analysis.title("ASISTENCIAS POR MES", 2)
	analysis.put(true, "Mes", "Cantidad")
	for _, p := range snap.Charts.Monthly {
		analysis.put(false, p.Label, fmt.Sprint(p.Count))
	}
	analysis.widths(25, 28, 15, 15, 12, 14)

	raw := &sheetWriter{f: f, sheet: SheetRaw, bold: bold}
	raw.title("DATOS CRUDOS - EXPORTACIÓN COMPLETA", len(TableHeader))
	raw.put(false, "Generado:", FormatDate(meta.GeneratedAt, loc), "", "Período:", OrPlaceholder(meta.Period))
	raw.put(false)
	raw.put(true, TableHeader...)
	for _, row := range TableRows(ds.Records, 1, len(ds.Records), loc) {
		raw.put(false, row.Strings()...)
	}
	raw.widths(8, 12, 28, 10, 10, 10, 12, 30)

	for _, s := range []*sheetWriter{summary, analysis, raw} {
		if s.err != nil {
			return fmt.Errorf("xlsx %s: %w", s.sheet, s.err)
		}
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}
