package report

import (
	"encoding/csv"
	"io"

	"attendtrack/internal/stats"
)

// WriteCSV writes the summary, distribution, ranking and records as consecutive CSV
// sections separated by blank lines.
func WriteCSV(w io.Writer, ds stats.Dataset, meta Meta) error {
	cw := csv.NewWriter(w)
	snap := ds.Snapshot
	loc := meta.loc()

	records := [][]string{
		{"Panel de Estadísticas - Control de Asistencias"},
		{"Fecha de Generación", FormatDate(meta.GeneratedAt, loc)},
		{"Período", OrPlaceholder(meta.Period)},
		{"Rango de Fechas", meta.rangeText(snap.Range)},
		{},
		{"Indicador", "Valor", "Descripción"},
	}
	records = append(records, SummaryRows(snap.Result)...)
	records = append(records, []string{}, []string{"Estado", "Cantidad", "Porcentaje"})
	records = append(records, DistributionRows(snap.Distribution)...)
	records = append(records, []string{}, RankingHeader)
	records = append(records, RankingRows(snap.Result.Ranking)...)
	records = append(records, []string{}, TableHeader)
	for _, row := range TableRows(ds.Records, 1, len(ds.Records), loc) {
		records = append(records, row.Strings())
	}

	if err := cw.WriteAll(records); err != nil {
		return err
	}
	return cw.Error()
}
