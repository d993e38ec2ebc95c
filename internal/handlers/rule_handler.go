package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"rulify/internal/models"
	"rulify/internal/services"

	"github.com/gin-gonic/gin"
)

// RuleHandler 自动化规则 CRUD 与生命周期管理
type RuleHandler struct {
	service *services.AutomationService
}

func NewRuleHandler(service *services.AutomationService) *RuleHandler {
	return &RuleHandler{service: service}
}

func currentUser(c *gin.Context) string {
	if user := c.GetHeader("X-User-ID"); user != "" {
		return user
	}
	return defaultUser
}

func isValidationError(err error) bool {
	return errors.Is(err, services.ErrInvalidRequest)
}

// CreateRule 创建自动化规则
// @Summary 创建自动化规则
// @Tags Automation
// @Accept json
// @Produce json
// @Param rule body services.RuleCreateRequest true "规则定义"
// @Success 201 {object} models.AutomationRule
// @Failure 400 {object} ErrorResponse
// @Router /api/automation/rules [post]
func (h *RuleHandler) CreateRule(c *gin.Context) {
	var req services.RuleCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	rule, err := h.service.CreateRule(c.Request.Context(), &req, currentUser(c))
	if err != nil {
		if isValidationError(err) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to create rule", Message: err.Error()})
		return
	}

	c.JSON(http.StatusCreated, rule)
}

// GetRule 获取规则详情
// @Summary 获取规则详情
// @Tags Automation
// @Produce json
// @Param id path string true "规则ID"
// @Success 200 {object} models.AutomationRule
// @Failure 404 {object} ErrorResponse
// @Router /api/automation/rules/{id} [get]
func (h *RuleHandler) GetRule(c *gin.Context) {
	rule, err := h.service.GetRule(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrRuleNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "Rule not found", Message: err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to get rule", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, rule)
}

// UpdateRule 更新规则（部分字段合并）
// @Summary 更新规则
// @Tags Automation
// @Accept json
// @Produce json
// @Param id path string true "规则ID"
// @Param rule body services.RuleUpdateRequest true "要更新的字段"
// @Success 200 {object} models.AutomationRule
// @Failure 404 {object} ErrorResponse
// @Router /api/automation/rules/{id} [put]
func (h *RuleHandler) UpdateRule(c *gin.Context) {
	var req services.RuleUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	rule, err := h.service.UpdateRule(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		if errors.Is(err, services.ErrRuleNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "Rule not found", Message: err.Error()})
			return
		}
		if isValidationError(err) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to update rule", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, rule)
}

// DeleteRule 删除规则
// @Summary 删除规则
// @Tags Automation
// @Param id path string true "规则ID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Router /api/automation/rules/{id} [delete]
func (h *RuleHandler) DeleteRule(c *gin.Context) {
	if err := h.service.DeleteRule(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, services.ErrRuleNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "Rule not found", Message: err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to delete rule", Message: err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// ListRules 分页获取规则列表
// @Summary 规则列表
// @Tags Automation
// @Produce json
// @Param page query int false "页码（从0开始）"
// @Param size query int false "每页条数（1-100）"
// @Param status query string false "状态过滤"
// @Param scope_type query string false "作用域过滤"
// @Success 200 {object} PaginatedResponse
// @Router /api/automation/rules [get]
func (h *RuleHandler) ListRules(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "0"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "50"))
	status := models.RuleStatus(c.Query("status"))
	scopeType := c.Query("scope_type")

	if status != "" && !status.Valid() {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: "invalid status: " + string(status)})
		return
	}

	rules, total, err := h.service.ListRules(c.Request.Context(), page, size, status, scopeType)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to list rules", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, PaginatedResponse{
		Data:     rules,
		Total:    total,
		Page:     page,
		PageSize: size,
	})
}

// ActivateRule 激活规则
// @Summary 激活规则
// @Tags Automation
// @Produce json
// @Param id path string true "规则ID"
// @Success 200 {object} models.AutomationRule
// @Failure 404 {object} ErrorResponse
// @Router /api/automation/rules/{id}/activate [post]
func (h *RuleHandler) ActivateRule(c *gin.Context) {
	rule, err := h.service.ActivateRule(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrRuleNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "Rule not found", Message: err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to activate rule", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, rule)
}

// PauseRule 暂停规则
// @Summary 暂停规则
// @Tags Automation
// @Produce json
// @Param id path string true "规则ID"
// @Success 200 {object} models.AutomationRule
// @Failure 404 {object} ErrorResponse
// @Router /api/automation/rules/{id}/pause [post]
func (h *RuleHandler) PauseRule(c *gin.Context) {
	rule, err := h.service.PauseRule(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrRuleNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "Rule not found", Message: err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to pause rule", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, rule)
}
