package report

import (
	"bytes"
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"attendtrack/internal/apperr"
	"attendtrack/internal/stats"
)

// DatasetSource computes the data of an export. *stats.Service implements it.
type DatasetSource interface {
	Dataset(ctx context.Context, q stats.Query) (stats.Dataset, error)
}

// Handler serves file exports.
type Handler struct {
	data   DatasetSource
	loc    *time.Location
	now    func() time.Time
	logger *log.Logger
}

// NewHandler creates a handler rendering dates in loc.
func NewHandler(data DatasetSource, loc *time.Location, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{data: data, loc: loc, now: time.Now, logger: logger}
}

// RegisterRoutes mounts the export route on an admin group.
func (h *Handler) RegisterRoutes(admin *gin.RouterGroup) {
	admin.GET("/stats/export", h.export)
}

func (h *Handler) export(c *gin.Context) {
	format, err := ParseFormat(c.Query("format"))
	if err != nil {
		apperr.Respond(c, apperr.Invalid("format must be csv, xlsx or pdf"))
		return
	}
	q := stats.QueryFrom(c)
	ds, err := h.data.Dataset(c.Request.Context(), q)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	period := string(stats.ParsePeriod(q.Period))
	if q.From != "" || q.To != "" {
		period = ""
	}
	meta := Meta{Period: period, GeneratedAt: h.now(), Location: h.loc}

	var buf bytes.Buffer
	if err := Write(&buf, format, ds, meta); err != nil {
		h.logger.Printf("export %s failed: %v", format, err)
		apperr.Respond(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+meta.Filename(format)+`"`)
	c.Data(http.StatusOK, format.ContentType(), buf.Bytes())
}
