package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"rulify/internal/services"

	"github.com/gin-gonic/gin"
)

// EvaluationHandler 指标评估与规则试运行入口
type EvaluationHandler struct {
	service *services.AutomationService
}

func NewEvaluationHandler(service *services.AutomationService) *EvaluationHandler {
	return &EvaluationHandler{service: service}
}

// Evaluate 上报一次指标观测并触发所有命中的规则
// @Summary 评估并触发规则
// @Tags Automation
// @Produce json
// @Param entity_type query string true "employee, team, repository, or service"
// @Param entity_id query string true "实体ID"
// @Param metric_type query string true "指标类型"
// @Param current_value query number true "当前指标值"
// @Success 200 {array} models.RuleExecution
// @Failure 400 {object} ErrorResponse
// @Router /api/automation/evaluate [post]
func (h *EvaluationHandler) Evaluate(c *gin.Context) {
	entityType := c.Query("entity_type")
	entityID := c.Query("entity_id")
	metricType := c.Query("metric_type")
	valueStr := c.Query("current_value")

	if entityType == "" || entityID == "" || metricType == "" || valueStr == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request",
			Message: "entity_type, entity_id, metric_type and current_value are required",
		})
		return
	}

	currentValue, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: "current_value must be a number"})
		return
	}

	executions, err := h.service.EvaluateAndTrigger(c.Request.Context(), entityType, entityID, metricType, currentValue)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Evaluation failed", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, executions)
}

// TestRule 在不执行动作的情况下试运行规则
// @Summary 试运行规则
// @Tags Automation
// @Accept json
// @Produce json
// @Param id path string true "规则ID"
// @Param request body services.RuleTestRequest true "模拟观测"
// @Success 200 {object} services.RuleTestResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/automation/rules/{id}/test [post]
func (h *EvaluationHandler) TestRule(c *gin.Context) {
	var req services.RuleTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	preview, err := h.service.TestRule(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		if errors.Is(err, services.ErrRuleNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "Rule not found", Message: err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to test rule", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, preview)
}
