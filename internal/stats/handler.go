package stats

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"attendtrack/internal/apperr"
	"attendtrack/internal/auth"
)

// Handler exposes statistics over HTTP.
type Handler struct {
	svc *Service
}

// NewHandler creates a handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the statistics routes on an admin group.
func (h *Handler) RegisterRoutes(admin *gin.RouterGroup) {
	admin.GET("/stats", h.stats)
	admin.GET("/stats/last", h.last)
	admin.GET("/stats/month", h.month)
}

// QueryFrom reads period, from, to and top from the request.
func QueryFrom(c *gin.Context) Query {
	q := Query{Period: c.Query("period"), From: c.Query("from"), To: c.Query("to")}
	if v := c.Query("top"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			q.Top = n
		}
	}
	return q
}

func (h *Handler) stats(c *gin.Context) {
	ac, ok := auth.FromGin(c)
	if !ok {
		apperr.Respond(c, apperr.Unauthenticated("not authenticated"))
		return
	}
	snap, err := h.svc.Stats(c.Request.Context(), ac, QueryFrom(c))
	if err != nil {
		var fe *FetchError
		if errors.As(err, &fe) {
			body := gin.H{"error": "statistics sources unavailable", "code": apperr.CodeUnavailable}
			if fe.Last != nil {
				body["last"] = fe.Last
			}
			c.JSON(http.StatusBadGateway, body)
			return
		}
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *Handler) last(c *gin.Context) {
	ac, ok := auth.FromGin(c)
	if !ok {
		apperr.Respond(c, apperr.Unauthenticated("not authenticated"))
		return
	}
	snap, err := h.svc.Last(c.Request.Context(), ac)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *Handler) month(c *gin.Context) {
	snap, err := h.svc.Month(c.Request.Context())
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}
