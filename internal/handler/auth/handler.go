package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-sync/internal/handler"
	"github.com/jwalitptl/clinic-sync/internal/model"
	"github.com/jwalitptl/clinic-sync/internal/service/auth"
)

// HeaderStaffKey carries the access key required to register staff roles.
const HeaderStaffKey = "X-Staff-Key"

type Handler struct {
	svc *auth.Service
}

func NewHandler(svc *auth.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	auth := r.Group("/auth")
	{
		auth.POST("/register", h.Register)
		auth.POST("/login", h.Login)
	}
}

func (h *Handler) Register(c *gin.Context) {
	var req model.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BindError(c, err)
		return
	}

	resp, err := h.svc.Register(c.Request.Context(), req, c.GetHeader(HeaderStaffKey))
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(auth.MsgMissingCredentials))
		return
	}

	resp, err := h.svc.Login(c.Request.Context(), req)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
