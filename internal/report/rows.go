package report

import (
	"fmt"
	"strconv"
	"time"

	"attendtrack/internal/attendance"
	"attendtrack/internal/stats"
)

// TableRow is one line of the records table.
type TableRow struct {
	Index    string `json:"index"`
	Date     string `json:"date"`
	FullName string `json:"full_name"`
	Entry    string `json:"entry"`
	Exit     string `json:"exit"`
	Worked   string `json:"worked"`
	Status   string `json:"status"`
	Notes    string `json:"notes"`
}

// TableRows renders one page of records. Indexes continue across pages as #001, #002...
func TableRows(records []attendance.Record, page, perPage int, loc *time.Location) []TableRow {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = attendance.DefaultPerPage
	}
	rows := make([]TableRow, 0, len(records))
	for i, r := range records {
		rows = append(rows, TableRow{
			Index:    fmt.Sprintf("#%03d", (page-1)*perPage+i+1),
			Date:     FormatDate(r.Date, loc),
			FullName: OrPlaceholder(r.FullName),
			Entry:    OrPlaceholder(r.EntryTime),
			Exit:     OrPlaceholderPtr(r.ExitTime),
			Worked:   WorkedDuration(r.EntryTime, r.ExitTime),
			Status:   StatusLabel(r.Status),
			Notes:    OrPlaceholderPtr(r.Notes),
		})
	}
	return rows
}

// Strings flattens a row for tabular exports.
func (r TableRow) Strings() []string {
	return []string{r.Index, r.Date, r.FullName, r.Entry, r.Exit, r.Worked, r.Status, r.Notes}
}

// TableHeader names the TableRow columns.
var TableHeader = []string{"#", "Fecha", "Usuario", "Entrada", "Salida", "Horas", "Estado", "Notas"}

// SummaryRows lists the headline indicators: name, value, description.
func SummaryRows(r stats.Result) [][]string {
	return [][]string{
		{"Total Usuarios", strconv.Itoa(r.TotalUsers), "Registrados"},
		{"Total Registros", strconv.Itoa(r.Total), "Del período seleccionado"},
		{"Presentes", strconv.Itoa(r.Present), "Asistencias a tiempo"},
		{"Tardanzas", strconv.Itoa(r.Late), "Llegadas tarde"},
		{"Ausentes", strconv.Itoa(r.Absent), "Faltas"},
		{"Permisos", strconv.Itoa(r.Permission), "Ausencias justificadas"},
		{"Porcentaje Asistencia", FormatPercent(r.AttendancePercentage), "Del período seleccionado"},
		{"Promedio Horas/Día", FormatHours(r.AverageHours), "Promedio trabajado"},
		{"Días Laborables", strconv.Itoa(r.WorkingDays), "Lunes a viernes"},
		{"Mejor Asistencia", FormatPercent(r.BestAttendance), "Porcentaje máximo"},
	}
}

// DistributionRows lists each status with its count and share.
func DistributionRows(shares []stats.StatusShare) [][]string {
	rows := make([][]string, 0, len(shares))
	for _, s := range shares {
		rows = append(rows, []string{StatusLabel(attendance.Status(s.Status)), strconv.Itoa(s.Count), FormatPercent(s.Percent)})
	}
	return rows
}

// RankingRows lists the ranking: position, user, present, late, absent, percentage.
func RankingRows(ranking []stats.UserStat) [][]string {
	rows := make([][]string, 0, len(ranking))
	for i, u := range ranking {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			OrPlaceholder(u.FullName),
			strconv.Itoa(u.Present),
			strconv.Itoa(u.Late),
			strconv.Itoa(u.Absent),
			FormatPercent(u.Percentage),
		})
	}
	return rows
}

// RankingHeader names the RankingRows columns.
var RankingHeader = []string{"Puesto", "Usuario", "Asistencias", "Tardanzas", "Faltas", "Porcentaje"}
