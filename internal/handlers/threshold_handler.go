package handlers

import (
	"errors"
	"net/http"

	"rulify/internal/services"

	"github.com/gin-gonic/gin"
)

// ThresholdHandler 阈值覆盖配置管理
type ThresholdHandler struct {
	service *services.AutomationService
}

func NewThresholdHandler(service *services.AutomationService) *ThresholdHandler {
	return &ThresholdHandler{service: service}
}

// CreateThresholdConfig 创建实体级阈值/动作覆盖
// @Summary 创建阈值覆盖
// @Tags Automation
// @Accept json
// @Produce json
// @Param config body services.ThresholdConfigCreateRequest true "覆盖配置"
// @Success 201 {object} models.ThresholdConfig
// @Failure 400 {object} ErrorResponse
// @Router /api/automation/thresholds [post]
func (h *ThresholdHandler) CreateThresholdConfig(c *gin.Context) {
	var req services.ThresholdConfigCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	config, err := h.service.CreateThresholdConfig(c.Request.Context(), &req, currentUser(c))
	if err != nil {
		if errors.Is(err, services.ErrInvalidRequest) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to create threshold config", Message: err.Error()})
		return
	}

	c.JSON(http.StatusCreated, config)
}

// ListThresholdConfigs 列出阈值覆盖
// @Summary 阈值覆盖列表
// @Tags Automation
// @Produce json
// @Param entity_type query string false "实体类型过滤"
// @Param entity_id query string false "实体ID过滤"
// @Success 200 {array} models.ThresholdConfig
// @Router /api/automation/thresholds [get]
func (h *ThresholdHandler) ListThresholdConfigs(c *gin.Context) {
	configs, err := h.service.ListThresholdConfigs(c.Request.Context(), c.Query("entity_type"), c.Query("entity_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to list threshold configs", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, configs)
}
