package pharmacy

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-sync/internal/handler"
	"github.com/jwalitptl/clinic-sync/internal/model"
	"github.com/jwalitptl/clinic-sync/internal/service/pharmacy"
)

type Handler struct {
	svc *pharmacy.Service
}

func NewHandler(svc *pharmacy.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	pharmacy := r.Group("/pharmacy")
	{
		pharmacy.GET("", h.List)
		pharmacy.POST("", h.Add)
		pharmacy.GET("/low-stock", h.LowStock)
		pharmacy.GET("/predictions", h.Predictions)
		pharmacy.POST("/:id/restock", h.Restock)
	}
}

// List returns the inventory; ?q= searches name and category.
func (h *Handler) List(c *gin.Context) {
	meds, err := h.svc.List(c.Request.Context(), c.Query("q"))
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(meds))
}

func (h *Handler) Add(c *gin.Context) {
	var req model.CreateMedicineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BindError(c, err)
		return
	}

	med, err := h.svc.Add(c.Request.Context(), req)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(med))
}

func (h *Handler) Restock(c *gin.Context) {
	med, err := h.svc.Restock(c.Request.Context(), c.Param("id"))
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(med))
}

func (h *Handler) LowStock(c *gin.Context) {
	meds, err := h.svc.LowStock(c.Request.Context())
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(meds))
}

func (h *Handler) Predictions(c *gin.Context) {
	forecast, err := h.svc.Predictions(c.Request.Context())
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(forecast))
}
