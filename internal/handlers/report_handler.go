package handlers

import (
	"net/http"
	"strconv"
	"time"

	"rulify/internal/services"

	"github.com/gin-gonic/gin"
)

// ReportHandler 执行历史与效果报表
type ReportHandler struct {
	service *services.AutomationService
}

func NewReportHandler(service *services.AutomationService) *ReportHandler {
	return &ReportHandler{service: service}
}

// ListExecutions 分页查询规则执行历史
// @Summary 执行历史
// @Tags Automation
// @Produce json
// @Param page query int false "页码（从0开始）"
// @Param size query int false "每页条数（1-100）"
// @Param rule_id query string false "规则ID过滤"
// @Param entity_id query string false "实体ID过滤"
// @Success 200 {object} PaginatedResponse
// @Router /api/automation/executions [get]
func (h *ReportHandler) ListExecutions(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "0"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "50"))

	executions, total, err := h.service.GetExecutionHistory(c.Request.Context(), c.Query("rule_id"), c.Query("entity_id"), page, size)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to list executions", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, PaginatedResponse{
		Data:     executions,
		Total:    total,
		Page:     page,
		PageSize: size,
	})
}

// EffectivenessReport 生成时间窗口内的触发效果报表
// @Summary 效果报表
// @Tags Automation
// @Produce json
// @Param period_start query string true "窗口起点（RFC3339）"
// @Param period_end query string true "窗口终点（RFC3339）"
// @Success 200 {object} services.EffectivenessReport
// @Failure 400 {object} ErrorResponse
// @Router /api/automation/report/effectiveness [get]
func (h *ReportHandler) EffectivenessReport(c *gin.Context) {
	startStr := c.Query("period_start")
	endStr := c.Query("period_end")
	if startStr == "" || endStr == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request",
			Message: "period_start and period_end are required",
		})
		return
	}

	periodStart, err := time.Parse(time.RFC3339, startStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: "period_start must be RFC3339"})
		return
	}
	periodEnd, err := time.Parse(time.RFC3339, endStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: "period_end must be RFC3339"})
		return
	}

	report, err := h.service.GenerateEffectivenessReport(c.Request.Context(), periodStart, periodEnd)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to generate report", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, report)
}
