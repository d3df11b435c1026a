package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/medsched/agenda-api/internal/model"
	apperrors "github.com/medsched/agenda-api/pkg/errors"
)

const contextActorKey = "actor"

type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: "success",
		Data:   data,
	}
}

func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  "error",
		Message: message,
	}
}

// ActorFrom returns the authenticated actor placed in the context by the
// auth middleware.
func ActorFrom(c *gin.Context) (model.Actor, bool) {
	value, exists := c.Get(contextActorKey)
	if !exists {
		return model.Actor{}, false
	}
	actor, ok := value.(model.Actor)
	return actor, ok
}

// RespondError writes err as a JSON error response. Business errors keep
// their status and message; anything else is logged via the error
// middleware and surfaces as a generic 500.
func RespondError(c *gin.Context, err error) {
	_ = c.Error(err)
	if appErr, ok := apperrors.AsAppError(err); ok {
		c.JSON(appErr.StatusCode(), NewErrorResponse(appErr.Message))
		return
	}
	c.JSON(http.StatusInternalServerError, NewErrorResponse("internal server error"))
}
