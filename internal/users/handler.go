package users

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"attendtrack/internal/apperr"
	"attendtrack/internal/auth"
)

// maxPhotoBytes bounds profile photo uploads.
const maxPhotoBytes = 5 << 20

// Handler exposes the service over HTTP.
type Handler struct {
	svc *Service
}

// NewHandler creates a handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts sign-in routes on public, profile routes on authed and
// user administration on admin.
func (h *Handler) RegisterRoutes(public, authed, admin *gin.RouterGroup) {
	public.POST("/auth/register", h.register)
	public.POST("/auth/login", h.login)
	public.POST("/auth/google", h.google)
	public.POST("/auth/refresh", h.refresh)
	public.POST("/auth/logout", h.logout)

	authed.GET("/me", h.me)
	authed.PATCH("/me", h.updateMe)
	authed.POST("/me/photo", h.photo)

	admin.GET("/users", h.list)
	admin.GET("/users/:uid", h.get)
	admin.PATCH("/users/:uid", h.update)
	admin.PATCH("/users/:uid/role", h.changeRole)
	admin.PATCH("/users/:uid/active", h.setActive)
	admin.DELETE("/users/:uid", h.delete)
}

func session(c *gin.Context) (auth.AuthContext, bool) {
	ac, ok := auth.FromGin(c)
	if !ok {
		apperr.Respond(c, apperr.Unauthenticated("not authenticated"))
	}
	return ac, ok
}

func (h *Handler) register(c *gin.Context) {
	var in RegisterInput
	if err := c.ShouldBindJSON(&in); err != nil {
		apperr.Respond(c, apperr.Invalid("invalid body"))
		return
	}
	s, err := h.svc.Register(c.Request.Context(), in)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, s)
}

func (h *Handler) login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Respond(c, apperr.Invalid("email and password are required"))
		return
	}
	s, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *Handler) google(c *gin.Context) {
	var req struct {
		IDToken string `json:"id_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Respond(c, apperr.Invalid("id_token is required"))
		return
	}
	s, err := h.svc.LoginGoogle(c.Request.Context(), req.IDToken)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

func (h *Handler) refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Respond(c, apperr.Invalid("refresh_token is required"))
		return
	}
	s, err := h.svc.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *Handler) logout(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Respond(c, apperr.Invalid("refresh_token is required"))
		return
	}
	if err := h.svc.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		apperr.Respond(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) me(c *gin.Context) {
	ac, ok := session(c)
	if !ok {
		return
	}
	u, err := h.svc.Me(c.Request.Context(), ac)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *Handler) updateMe(c *gin.Context) {
	ac, ok := session(c)
	if !ok {
		return
	}
	var p ProfileUpdate
	if err := c.ShouldBindJSON(&p); err != nil {
		apperr.Respond(c, apperr.Invalid("invalid body"))
		return
	}
	u, err := h.svc.UpdateMe(c.Request.Context(), ac, p)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *Handler) photo(c *gin.Context) {
	ac, ok := session(c)
	if !ok {
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxPhotoBytes)
	file, hdr, err := c.Request.FormFile("file")
	if err != nil {
		apperr.Respond(c, apperr.Invalid("file field required"))
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		apperr.Respond(c, apperr.Invalid("file too large or unreadable"))
		return
	}
	u, err := h.svc.UpdatePhoto(c.Request.Context(), ac, data, hdr.Filename)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *Handler) list(c *gin.Context) {
	out, err := h.svc.List(c.Request.Context(), c.Query("role"))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": out})
}

func (h *Handler) get(c *gin.Context) {
	u, err := h.svc.Get(c.Request.Context(), c.Param("uid"))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *Handler) update(c *gin.Context) {
	ac, ok := session(c)
	if !ok {
		return
	}
	var p ProfileUpdate
	if err := c.ShouldBindJSON(&p); err != nil {
		apperr.Respond(c, apperr.Invalid("invalid body"))
		return
	}
	u, err := h.svc.UpdateUser(c.Request.Context(), ac, c.Param("uid"), p)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *Handler) changeRole(c *gin.Context) {
	ac, ok := session(c)
	if !ok {
		return
	}
	var req struct {
		Role string `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Respond(c, apperr.Invalid("role is required"))
		return
	}
	u, err := h.svc.ChangeRole(c.Request.Context(), ac, c.Param("uid"), req.Role)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *Handler) setActive(c *gin.Context) {
	ac, ok := session(c)
	if !ok {
		return
	}
	var req struct {
		Active *bool `json:"active" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Respond(c, apperr.Invalid("active is required"))
		return
	}
	u, err := h.svc.SetActive(c.Request.Context(), ac, c.Param("uid"), *req.Active)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *Handler) delete(c *gin.Context) {
	ac, ok := session(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), ac, c.Param("uid")); err != nil {
		apperr.Respond(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
