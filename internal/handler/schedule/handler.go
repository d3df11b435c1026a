package schedule

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/medsched/agenda-api/internal/handler"
	"github.com/medsched/agenda-api/internal/model"
	scheduleService "github.com/medsched/agenda-api/internal/service/schedule"
)

type Handler struct {
	service *scheduleService.Service
	// physicianOnly guards rule creation; rules are always self-service.
	physicianOnly gin.HandlerFunc
}

func NewHandler(service *scheduleService.Service, physicianOnly gin.HandlerFunc) *Handler {
	return &Handler{service: service, physicianOnly: physicianOnly}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	rules := r.Group("/schedule-rules")
	{
		rules.POST("", h.physicianOnly, h.CreateRule)
		rules.GET("", h.ListRules)
		rules.PUT("/:id", h.UpdateRule)
		rules.DELETE("/:id", h.DeactivateRule)
	}
}

func (h *Handler) CreateRule(c *gin.Context) {
	actor, ok := handler.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("not authenticated"))
		return
	}

	var req model.CreateScheduleRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	rule, err := h.service.Create(c.Request.Context(), actor, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(rule))
}

func (h *Handler) ListRules(c *gin.Context) {
	physicianID, err := uuid.Parse(c.Query("physician_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid physician ID"))
		return
	}

	rules, err := h.service.ListActive(c.Request.Context(), physicianID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(rules))
}

func (h *Handler) UpdateRule(c *gin.Context) {
	actor, ok := handler.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("not authenticated"))
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid rule ID"))
		return
	}

	var req model.UpdateScheduleRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	rule, err := h.service.Update(c.Request.Context(), actor, id, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(rule))
}

// DeactivateRule retires a rule without deleting it; history stays intact.
func (h *Handler) DeactivateRule(c *gin.Context) {
	actor, ok := handler.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("not authenticated"))
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid rule ID"))
		return
	}

	if err := h.service.Deactivate(c.Request.Context(), actor, id); err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"deactivated": true}))
}
