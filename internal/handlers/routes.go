package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterAutomationRoutes 注册规则引擎全部路由
func RegisterAutomationRoutes(r *gin.RouterGroup, rules *RuleHandler, eval *EvaluationHandler, thresholds *ThresholdHandler, reports *ReportHandler) {
	auto := r.Group("/automation")
	{
		auto.POST("/rules", rules.CreateRule)
		auto.GET("/rules", rules.ListRules)
		auto.GET("/rules/:id", rules.GetRule)
		auto.PUT("/rules/:id", rules.UpdateRule)
		auto.DELETE("/rules/:id", rules.DeleteRule)
		auto.POST("/rules/:id/activate", rules.ActivateRule)
		auto.POST("/rules/:id/pause", rules.PauseRule)
		auto.POST("/rules/:id/test", eval.TestRule)

		auto.POST("/evaluate", eval.Evaluate)

		auto.POST("/thresholds", thresholds.CreateThresholdConfig)
		auto.GET("/thresholds", thresholds.ListThresholdConfigs)

		auto.GET("/executions", reports.ListExecutions)
		auto.GET("/report/effectiveness", reports.EffectivenessReport)
	}
}

type HealthHandler struct{}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "rulify",
	})
}

func (h *HealthHandler) Ready(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
	})
}
