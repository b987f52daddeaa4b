package report

import (
	"io"

	"github.com/go-pdf/fpdf"

	"attendtrack/internal/stats"
)

var brandRGB = [3]int{10, 35, 66}

type pdfDoc struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

func (d pdfDoc) heading(text string) {
	d.pdf.Ln(4)
	d.pdf.SetFont("Helvetica", "B", 14)
	d.pdf.SetTextColor(brandRGB[0], brandRGB[1], brandRGB[2])
	d.pdf.CellFormat(0, 8, d.tr(text), "", 1, "L", false, 0, "")
}

// table draws a grid with a filled header row. widths are in millimetres.
func (d pdfDoc) table(header []string, rows [][]string, widths []float64) {
	d.pdf.SetFont("Helvetica", "B", 9)
	d.pdf.SetFillColor(brandRGB[0], brandRGB[1], brandRGB[2])
	d.pdf.SetTextColor(255, 255, 255)
	for i, h := range header {
		d.pdf.CellFormat(widths[i], 7, d.tr(h), "1", 0, "L", true, 0, "")
	}
	d.pdf.Ln(-1)

	d.pdf.SetFont("Helvetica", "", 9)
	d.pdf.SetTextColor(0, 0, 0)
	for _, row := range rows {
		for i := range widths {
			v := ""
			if i < len(row) {
				v = row[i]
			}
			d.pdf.CellFormat(widths[i], 6, d.tr(v), "1", 0, "L", false, 0, "")
		}
		d.pdf.Ln(-1)
	}
}

// WritePDF renders an A4 report: headline indicators, status distribution, ranking and
// the records of the period.
func WritePDF(w io.Writer, ds stats.Dataset, meta Meta) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Panel de Estadísticas", true)
	pdf.SetCreationDate(meta.GeneratedAt)
	doc := pdfDoc{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
	loc := meta.loc()
	snap := ds.Snapshot

	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "", 8)
		pdf.SetTextColor(150, 150, 150)
		pdf.CellFormat(0, 10, doc.tr("Sistema de Control de Asistencias"), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 20)
	pdf.SetTextColor(brandRGB[0], brandRGB[1], brandRGB[2])
	pdf.CellFormat(0, 12, doc.tr("Panel de Estadísticas"), "", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "", 11)
	pdf.SetTextColor(100, 100, 100)
	pdf.CellFormat(0, 6, doc.tr("Generado: "+FormatDate(meta.GeneratedAt, loc)), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, doc.tr("Período: "+OrPlaceholder(meta.Period)), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, doc.tr("Desde: "+FormatDate(snap.Range.From, loc)+" | Hasta: "+FormatDate(snap.Range.To, loc)), "", 1, "L", false, 0, "")
	pdf.SetDrawColor(brandRGB[0], brandRGB[1], brandRGB[2])
	y := pdf.GetY() + 2
	pdf.Line(14, y, 196, y)
	pdf.SetY(y + 2)

	doc.heading("Estadísticas Principales")
	doc.table([]string{"Indicador", "Valor", "Observación"}, SummaryRows(snap.Result), []float64{60, 40, 82})

	doc.heading("Distribución por Estado")
	doc.table([]string{"Estado", "Cantidad", "Porcentaje"}, DistributionRows(snap.Distribution), []float64{60, 40, 40})

	if len(snap.Result.Ranking) > 0 {
		doc.heading("Ranking de Usuarios")
		doc.table(RankingHeader, RankingRows(snap.Result.Ranking), []float64{16, 66, 25, 25, 20, 30})
	}

	if len(ds.Records) > 0 {
		doc.heading("Registros del Período")
		rows := make([][]string, 0, len(ds.Records))
		for _, r := range TableRows(ds.Records, 1, len(ds.Records), loc) {
			rows = append(rows, []string{r.Index, r.Date, r.FullName, r.Entry, r.Exit, r.Worked, r.Status})
		}
		doc.table(TableHeader[:7], rows, []float64{14, 22, 56, 18, 18, 24, 30})
	}

	return pdf.Output(w)
}
