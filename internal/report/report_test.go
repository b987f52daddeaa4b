package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"attendtrack/internal/apperr"
	"attendtrack/internal/attendance"
	"attendtrack/internal/stats"
)

var lima = time.FixedZone("PET", -5*3600)

func strptr(s string) *string { return &s }

func TestPlaceholderPolicy(t *testing.T) {
	assert.Equal(t, "--", OrPlaceholder(""))
	assert.Equal(t, "--", OrPlaceholder("   "))
	assert.Equal(t, "x", OrPlaceholder("x"))
	assert.Equal(t, "--", OrPlaceholderPtr(nil))
	assert.Equal(t, "--", OrPlaceholderPtr(strptr("")))
	assert.Equal(t, "--", FormatDate(time.Time{}, lima))
	assert.Equal(t, "--", WorkedDuration("08:00", nil))
	assert.Equal(t, "--", WorkedDuration("08:00", strptr("bad")))
	assert.Equal(t, "9h 0m", WorkedDuration("08:00", strptr("17:00")))
}

func TestFormatters(t *testing.T) {
	assert.Equal(t, "05/12/2025", FormatDate(time.Date(2025, 12, 5, 0, 0, 0, 0, lima), lima))
	// 03:00 UTC on the 6th is still the 5th in Lima.
	assert.Equal(t, "05/12/2025", FormatDate(time.Date(2025, 12, 6, 3, 0, 0, 0, time.UTC), lima))
	assert.Equal(t, "66.7%", FormatPercent(66.7))
	assert.Equal(t, "0.0%", FormatPercent(0))
	assert.Equal(t, "Presente", StatusLabel(attendance.StatusPresent))
	assert.Equal(t, "Tardanza", StatusLabel("LATE"))
	assert.Equal(t, "Desconocido", StatusLabel(""))
	assert.Equal(t, "holiday", StatusLabel("holiday"))
	assert.Equal(t, "success", BadgeClass(95))
	assert.Equal(t, "warning", BadgeClass(85))
	assert.Equal(t, "danger", BadgeClass(84.9))
}

func TestTableRowsIndexAcrossPages(t *testing.T) {
	recs := []attendance.Record{
		{FullName: "Ana", Date: time.Date(2025, 3, 10, 0, 0, 0, 0, lima), EntryTime: "08:00", ExitTime: strptr("16:30"), Status: attendance.StatusPresent},
		{FullName: "", Date: time.Date(2025, 3, 11, 0, 0, 0, 0, lima), Status: attendance.StatusAbsent},
	}
	rows := TableRows(recs, 3, 10, lima)
	require.Len(t, rows, 2)
	assert.Equal(t, "#021", rows[0].Index)
	assert.Equal(t, "#022", rows[1].Index)
	assert.Equal(t, "10/03/2025", rows[0].Date)
	assert.Equal(t, "8h 30m", rows[0].Worked)
	assert.Equal(t, "--", rows[0].Notes)
	assert.Equal(t, "--", rows[1].FullName)
	assert.Equal(t, "--", rows[1].Entry)
	assert.Equal(t, "--", rows[1].Exit)
	assert.Equal(t, "Ausente", rows[1].Status)
}

func TestChartPoints(t *testing.T) {
	pts := ChartPoints([]int{0, 5, 10})
	require.Len(t, pts, 3)
	assert.Equal(t, Point{X: 0, Y: 200}, pts[0])
	assert.Equal(t, Point{X: 200, Y: 115}, pts[1])
	assert.Equal(t, Point{X: 400, Y: 30}, pts[2])
	assert.Equal(t, "0,200 200,115 400,30", Polyline(pts))

	// All zero: scaled against a floor of 1, every point on the baseline.
	for _, p := range ChartPoints([]int{0, 0}) {
		assert.Equal(t, 200.0, p.Y)
	}
	single := ChartPoints([]int{3})
	assert.Equal(t, Point{X: 0, Y: 30}, single[0])
	assert.Equal(t, "0,150", Polyline(nil))

	line := MonthlyPolyline([]stats.MonthPoint{{Label: "-"}, {Label: "Ene", Count: 2}})
	assert.Equal(t, "0,200 400,30", line)
}

func sampleDataset() stats.Dataset {
	recs := []attendance.Record{
		{ID: "1", UserID: "u1", FullName: "Ana Núñez", Date: time.Date(2025, 3, 10, 0, 0, 0, 0, lima), EntryTime: "08:00", ExitTime: strptr("17:00"), Status: attendance.StatusPresent},
		{ID: "2", UserID: "u2", FullName: "Luis", Date: time.Date(2025, 3, 10, 0, 0, 0, 0, lima), EntryTime: "08:40", Status: attendance.StatusLate},
	}
	res := stats.Result{
		TotalUsers: 2, WorkingDays: 1, Total: 2, Present: 1, Late: 1,
		AttendancePercentage: 100, AverageHours: 9, BestAttendance: 100,
		Ranking: []stats.UserStat{{UserID: "u1", FullName: "Ana Núñez", Present: 1, Percentage: 100}},
	}
	return stats.Dataset{
		Snapshot: stats.Snapshot{
			Range:        stats.Range{From: time.Date(2025, 3, 10, 0, 0, 0, 0, lima), To: time.Date(2025, 3, 10, 0, 0, 0, 0, lima)},
			Result:       res,
			Distribution: stats.Distribution(res),
			Charts: stats.Charts{
				Weekly:  stats.WeeklySeries(recs, time.Date(2025, 3, 10, 0, 0, 0, 0, lima), time.Date(2025, 3, 10, 0, 0, 0, 0, lima), lima),
				Monthly: stats.MonthlySeries(recs, time.Date(2025, 3, 10, 0, 0, 0, 0, lima), time.Date(2025, 3, 10, 0, 0, 0, 0, lima), lima),
			},
		},
		Records: recs,
	}
}

var sampleMeta = Meta{Period: "week", GeneratedAt: time.Date(2025, 3, 14, 12, 0, 0, 0, lima), Location: lima}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleDataset(), sampleMeta))

	r := csv.NewReader(strings.NewReader(buf.String()))
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	require.NoError(t, err)
	flat := buf.String()
	assert.Contains(t, flat, "Rango de Fechas,10/03/2025 al 10/03/2025")
	assert.Contains(t, flat, "Porcentaje Asistencia,100.0%")
	assert.Contains(t, flat, "#001,10/03/2025,Ana Núñez,08:00,17:00,9h 0m,Presente,--")
	assert.Contains(t, flat, "#002,10/03/2025,Luis,08:40,--,--,Tardanza,--")
	assert.Equal(t, "#002", rows[len(rows)-1][0])
}

func TestWriteXLSXSheets(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, sampleDataset(), sampleMeta))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{SheetSummary, SheetAnalysis, SheetRaw}, f.GetSheetList())

	v, err := f.GetCellValue(SheetSummary, "A1")
	require.NoError(t, err)
	assert.Equal(t, "PANEL DE ESTADÍSTICAS - CONTROL DE ASISTENCIAS", v)

	rows, err := f.GetRows(SheetRaw)
	require.NoError(t, err)
	last := rows[len(rows)-1]
	assert.Equal(t, "#002", last[0])
	assert.Equal(t, "Tardanza", last[6])
}

func TestWritePDF(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePDF(&buf, sampleDataset(), sampleMeta))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)
	f, err = ParseFormat("XLSX")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, f)
	_, err = ParseFormat("docx")
	assert.Error(t, err)
	assert.Equal(t, "estadisticas_week_14-03-2025.pdf", sampleMeta.Filename(FormatPDF))
	assert.Equal(t, "estadisticas_rango_14-03-2025.csv", Meta{GeneratedAt: sampleMeta.GeneratedAt, Location: lima}.Filename(FormatCSV))
}

type fakeSource struct {
	ds  stats.Dataset
	err error
}

func (f fakeSource) Dataset(context.Context, stats.Query) (stats.Dataset, error) { return f.ds, f.err }

func TestExportHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	route := func(src DatasetSource) *gin.Engine {
		r := gin.New()
		h := NewHandler(src, lima, nil)
		h.now = func() time.Time { return sampleMeta.GeneratedAt }
		h.RegisterRoutes(r.Group("/v1"))
		return r
	}
	get := func(r http.Handler, path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w
	}

	r := route(fakeSource{ds: sampleDataset()})
	w := get(r, "/v1/stats/export?format=pdf&period=semana")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "estadisticas_week_14-03-2025.pdf")

	w = get(r, "/v1/stats/export?from=2025-03-10&to=2025-03-10")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".csv")

	w = get(r, "/v1/stats/export?format=docx")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = get(route(fakeSource{err: apperr.Unavailable("down")}), "/v1/stats/export?format=xlsx")
	assert.Equal(t, http.StatusBadGateway, w.Code)

	w = get(route(fakeSource{err: errors.New("boom")}), "/v1/stats/export")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
