package physician

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/medsched/agenda-api/internal/handler"
	physicianService "github.com/medsched/agenda-api/internal/service/physician"
)

type Handler struct {
	service *physicianService.Service
}

func NewHandler(service *physicianService.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	physicians := r.Group("/physicians")
	{
		physicians.GET("", h.ListPhysicians)
		physicians.GET("/:id", h.GetPhysician)
	}
}

func (h *Handler) ListPhysicians(c *gin.Context) {
	physicians, err := h.service.List(c.Request.Context())
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(physicians))
}

func (h *Handler) GetPhysician(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid physician ID"))
		return
	}

	physician, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(physician))
}
