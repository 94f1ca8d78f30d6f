package advisor

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-sync/internal/handler"
	"github.com/jwalitptl/clinic-sync/internal/model"
	"github.com/jwalitptl/clinic-sync/internal/service/advisor"
)

// PendingLister supplies the pending requests the schedule is built for.
type PendingLister interface {
	List(ctx context.Context, status model.RequestStatus) []model.AppointmentRequest
}

type Handler struct {
	svc     *advisor.Service
	pending PendingLister
}

func NewHandler(svc *advisor.Service, pending PendingLister) *Handler {
	return &Handler{svc: svc, pending: pending}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	advisor := r.Group("/advisor")
	{
		advisor.POST("/symptoms", h.AnalyzeSymptoms)
		advisor.POST("/schedule", h.Schedule)
	}
}

// AnalyzeSymptoms always answers 200: advisor failures degrade to a fixed text.
func (h *Handler) AnalyzeSymptoms(c *gin.Context) {
	var req model.SymptomAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BindError(c, err)
		return
	}

	text := h.svc.AnalyzeSymptoms(c.Request.Context(), req.Symptoms, req.PatientData)
	c.JSON(http.StatusOK, handler.NewSuccessResponse(model.AdvisoryResponse{Text: text}))
}

func (h *Handler) Schedule(c *gin.Context) {
	var req model.ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BindError(c, err)
		return
	}

	ctx := c.Request.Context()
	text := h.svc.GenerateSmartSchedule(ctx, req.Doctors, h.pending.List(ctx, model.StatusPending))
	c.JSON(http.StatusOK, handler.NewSuccessResponse(model.AdvisoryResponse{Text: text}))
}
