package doctor

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-sync/internal/handler"
	"github.com/jwalitptl/clinic-sync/internal/model"
	"github.com/jwalitptl/clinic-sync/internal/repository"
	"github.com/jwalitptl/clinic-sync/internal/service/confirmation"
	apperrors "github.com/jwalitptl/clinic-sync/pkg/errors"
)

type Handler struct {
	svc     *confirmation.Service
	archive repository.RequestArchiveRepository
}

// NewHandler builds the doctor routes. archive may be nil when no database
// is configured; the history route then answers 404.
func NewHandler(svc *confirmation.Service, archive repository.RequestArchiveRepository) *Handler {
	return &Handler{svc: svc, archive: archive}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	doctor := r.Group("/doctor")
	{
		doctor.GET("/inbox", h.Inbox)
		doctor.GET("/slots", h.Slots)
		doctor.POST("/requests/:id/confirm", h.Confirm)
		doctor.GET("/requests/:id/history", h.History)
		doctor.GET("/emergency", h.Emergency)
		doctor.POST("/emergency/stop", h.StopAlarm)
	}
}

func (h *Handler) Inbox(c *gin.Context) {
	c.JSON(http.StatusOK, handler.NewSuccessResponse(h.svc.Inbox(c.Request.Context())))
}

func (h *Handler) Slots(c *gin.Context) {
	c.JSON(http.StatusOK, handler.NewSuccessResponse(h.svc.Slots()))
}

func (h *Handler) Confirm(c *gin.Context) {
	id, err := handler.ParamID(c)
	if err != nil {
		handler.Error(c, err)
		return
	}

	var in model.ConfirmRequestInput
	if err := c.ShouldBindJSON(&in); err != nil {
		handler.BindError(c, err)
		return
	}
	if in.Doctor == "" {
		if claims, ok := handler.Claims(c); ok && claims.Role == model.RoleDoctor {
			in.Doctor = claims.Name
		}
	}

	req, err := h.svc.Confirm(c.Request.Context(), id, in.Time, in.Doctor)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(req))
}

// History lists the archived events of one request, oldest first.
func (h *Handler) History(c *gin.Context) {
	id, err := handler.ParamID(c)
	if err != nil {
		handler.Error(c, err)
		return
	}
	if h.archive == nil {
		handler.Error(c, apperrors.NotFound("archive", nil))
		return
	}

	history, err := h.archive.History(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			handler.Error(c, apperrors.NotFound("request history", err))
			return
		}
		handler.Error(c, apperrors.Internal(err))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(history))
}

func (h *Handler) Emergency(c *gin.Context) {
	flag := h.svc.Emergency(c.Request.Context())
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{
		"active":      flag.Active,
		"patientName": flag.DisplayName(),
	}))
}

func (h *Handler) StopAlarm(c *gin.Context) {
	if err := h.svc.StopAlarm(c.Request.Context()); err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(nil))
}
