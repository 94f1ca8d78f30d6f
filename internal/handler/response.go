package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-sync/internal/model"
	apperrors "github.com/jwalitptl/clinic-sync/pkg/errors"
	"github.com/jwalitptl/clinic-sync/pkg/validator"
)

const (
	StatusSuccess = "success"
	StatusFail    = "fail"

	// ContextClaims is the gin context key holding *model.TokenClaims.
	ContextClaims = "claims"
)

type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: StatusSuccess,
		Data:   data,
	}
}

func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  StatusFail,
		Message: message,
	}
}

// Error writes err with the status of its AppError. The error is also
// attached to the context so the error middleware logs it.
func Error(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)
	message := http.StatusText(status)
	if appErr, ok := apperrors.As(err); ok {
		message = appErr.Message
	}
	_ = c.Error(err)
	c.JSON(status, NewErrorResponse(message))
}

// BindError answers a failed ShouldBind with a 400 naming the bad fields.
func BindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, NewErrorResponse(validator.Describe(err).Error()))
}

// ParamID parses the :id path parameter of request routes.
func ParamID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.BadRequest("identifiant de demande invalide", errors.New("invalid id"))
	}
	return id, nil
}

// Claims returns the token claims set by the auth middleware.
func Claims(c *gin.Context) (*model.TokenClaims, bool) {
	v, ok := c.Get(ContextClaims)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*model.TokenClaims)
	return claims, ok
}
