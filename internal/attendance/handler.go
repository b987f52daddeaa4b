package attendance

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"attendtrack/internal/apperr"
	"attendtrack/internal/auth"
)

// Handler exposes attendance operations over HTTP.
type Handler struct {
	svc *Service
}

// NewHandler creates a handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts self-service routes on authed and record management on admin.
func (h *Handler) RegisterRoutes(authed, admin *gin.RouterGroup) {
	authed.POST("/attendance/checkin", h.checkIn)
	authed.POST("/attendance/checkout", h.checkOut)
	authed.GET("/attendance/me", h.mine)

	admin.GET("/records", h.list)
	admin.POST("/records", h.create)
	admin.GET("/records/today", h.today)
	admin.GET("/records/latest", h.latest)
	admin.GET("/records/:id", h.get)
	admin.PUT("/records/:id", h.update)
	admin.DELETE("/records/:id", h.delete)
}

func (h *Handler) checkIn(c *gin.Context) {
	ac, ok := auth.FromGin(c)
	if !ok {
		apperr.Respond(c, apperr.Unauthenticated("not authenticated"))
		return
	}
	var req struct {
		Notes *string `json:"notes"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			apperr.Respond(c, apperr.Invalid("invalid body"))
			return
		}
	}
	rec, created, err := h.svc.CheckIn(c.Request.Context(), ac.UserID, req.Notes)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{"record": rec, "created": created})
}

func (h *Handler) checkOut(c *gin.Context) {
	ac, ok := auth.FromGin(c)
	if !ok {
		apperr.Respond(c, apperr.Unauthenticated("not authenticated"))
		return
	}
	rec, err := h.svc.CheckOut(c.Request.Context(), ac.UserID)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"record": rec})
}

func (h *Handler) mine(c *gin.Context) {
	ac, ok := auth.FromGin(c)
	if !ok {
		apperr.Respond(c, apperr.Unauthenticated("not authenticated"))
		return
	}
	q, err := h.listQuery(c)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	q.UserID = ac.UserID
	page, err := h.svc.List(c.Request.Context(), q)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) list(c *gin.Context) {
	q, err := h.listQuery(c)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	q.UserID = c.Query("user_id")
	page, err := h.svc.List(c.Request.Context(), q)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// listQuery reads status, from, to, page and per_page. to is inclusive.
func (h *Handler) listQuery(c *gin.Context) (ListQuery, error) {
	var q ListQuery
	if v := c.Query("status"); v != "" {
		s, err := ParseStatus(v)
		if err != nil {
			return q, apperr.Invalid("status must be one of present, absent, late, permission")
		}
		q.Status = s
	}
	if v := c.Query("from"); v != "" {
		d, err := h.svc.ParseDay(v)
		if err != nil {
			return q, apperr.Invalid("from must be YYYY-MM-DD")
		}
		q.From = &d
	}
	if v := c.Query("to"); v != "" {
		d, err := h.svc.ParseDay(v)
		if err != nil {
			return q, apperr.Invalid("to must be YYYY-MM-DD")
		}
		end := d.AddDate(0, 0, 1)
		q.To = &end
	}
	if q.From != nil && q.To != nil && !q.From.Before(*q.To) {
		return q, apperr.Invalid("from must not be after to")
	}
	q.Page = atoiDefault(c.Query("page"), 1)
	q.PerPage = atoiDefault(c.Query("per_page"), DefaultPerPage)
	return q, nil
}

func atoiDefault(v string, fallback int) int {
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func (h *Handler) create(c *gin.Context) {
	var in Input
	if err := c.ShouldBindJSON(&in); err != nil {
		apperr.Respond(c, apperr.Invalid("invalid body"))
		return
	}
	rec, err := h.svc.Create(c.Request.Context(), in)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

func (h *Handler) get(c *gin.Context) {
	rec, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *Handler) update(c *gin.Context) {
	var in Input
	if err := c.ShouldBindJSON(&in); err != nil {
		apperr.Respond(c, apperr.Invalid("invalid body"))
		return
	}
	rec, err := h.svc.Update(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		apperr.Respond(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) today(c *gin.Context) {
	counts, err := h.svc.TodayCounts(c.Request.Context())
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, counts)
}

func (h *Handler) latest(c *gin.Context) {
	recs, err := h.svc.Latest(c.Request.Context(), atoiDefault(c.Query("limit"), 5))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	if recs == nil {
		recs = []Record{}
	}
	c.JSON(http.StatusOK, gin.H{"records": recs})
}
