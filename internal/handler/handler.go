package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

const Banner = "Serveur API Clinique Gamma actif"

// Handler serves the routes that belong to no feature.
type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

func (h *Handler) Home(c *gin.Context) {
	c.String(http.StatusOK, Banner)
}

func (h *Handler) NotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, NewErrorResponse(
		fmt.Sprintf("Impossible de trouver %s sur ce serveur!", c.Request.URL.RequestURI()),
	))
}
