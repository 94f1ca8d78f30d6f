package requests

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-sync/internal/handler"
	"github.com/jwalitptl/clinic-sync/internal/model"
	"github.com/jwalitptl/clinic-sync/internal/service/request"
	apperrors "github.com/jwalitptl/clinic-sync/pkg/errors"
)

type Handler struct {
	svc *request.Service
}

func NewHandler(svc *request.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	requests := r.Group("/requests")
	{
		requests.POST("", h.Submit)
		requests.GET("", h.List)
		requests.POST("/reset", h.Reset)
		requests.GET("/:id", h.Get)
		requests.DELETE("/:id", h.Cancel)
	}
}

func (h *Handler) Submit(c *gin.Context) {
	var in model.SubmitRequestInput
	if err := c.ShouldBindJSON(&in); err != nil {
		handler.BindError(c, err)
		return
	}
	if in.PatientName == "" {
		if claims, ok := handler.Claims(c); ok {
			in.PatientName = claims.Name
		}
	}

	req, err := h.svc.Submit(c.Request.Context(), in)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(req))
}

func (h *Handler) List(c *gin.Context) {
	status := model.RequestStatus(c.Query("status"))
	if status != "" && !status.Valid() {
		handler.Error(c, apperrors.BadRequest("statut inconnu: "+string(status), nil))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(h.svc.List(c.Request.Context(), status)))
}

func (h *Handler) Get(c *gin.Context) {
	id, err := handler.ParamID(c)
	if err != nil {
		handler.Error(c, err)
		return
	}

	req, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(req))
}

func (h *Handler) Cancel(c *gin.Context) {
	id, err := handler.ParamID(c)
	if err != nil {
		handler.Error(c, err)
		return
	}

	if err := h.svc.Cancel(c.Request.Context(), id); err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"id": id}))
}

// Reset clears every request and the emergency flag of the demo.
func (h *Handler) Reset(c *gin.Context) {
	if err := h.svc.ResetDemo(c.Request.Context()); err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(nil))
}
