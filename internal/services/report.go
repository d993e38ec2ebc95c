package services

import (
	"context"
	"fmt"
	"time"

	"rulify/internal/models"
)

// GetExecutionHistory 分页查询执行历史（按触发时间倒序）
func (s *AutomationService) GetExecutionHistory(ctx context.Context, ruleID, entityID string, page, size int) ([]models.RuleExecution, int64, error) {
	if page < 0 {
		page = 0
	}
	if size < 1 || size > 100 {
		size = 50
	}

	query := s.db.WithContext(ctx).Model(&models.RuleExecution{})
	if ruleID != "" {
		query = query.Where("rule_id = ?", ruleID)
	}
	if entityID != "" {
		query = query.Where("entity_id = ?", entityID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var executions []models.RuleExecution
	err := query.Order("triggered_at DESC").Offset(page * size).Limit(size).Find(&executions).Error
	if err != nil {
		return nil, 0, err
	}
	return executions, total, nil
}

// RuleEffectiveness 报表中按规则聚合的触发统计
type RuleEffectiveness struct {
	RuleID       string `json:"rule_id"`
	RuleName     string `json:"rule_name"`
	TriggerCount int    `json:"trigger_count"`
	SuccessCount int    `json:"success_count"`
}

// EffectivenessReport 时间窗口内的触发效果报表
type EffectivenessReport struct {
	PeriodStart          time.Time           `json:"period_start"`
	PeriodEnd            time.Time           `json:"period_end"`
	TotalTriggers        int                 `json:"total_triggers"`
	SuccessfulExecutions int                 `json:"successful_executions"`
	FailedExecutions     int                 `json:"failed_executions"`
	RulesSummary         []RuleEffectiveness `json:"rules_summary"`
	ImprovementsDetected []models.JSONMap    `json:"improvements_detected"`
	Recommendations      []string            `json:"recommendations"`
}

// GenerateEffectivenessReport aggregates all live (non-test) executions in
// [periodStart, periodEnd] per rule. Rules deleted since their executions
// were written are reported with name "Unknown".
func (s *AutomationService) GenerateEffectivenessReport(ctx context.Context, periodStart, periodEnd time.Time) (*EffectivenessReport, error) {
	var executions []models.RuleExecution
	err := s.db.WithContext(ctx).
		Where("triggered_at >= ? AND triggered_at <= ?", periodStart, periodEnd).
		Where("is_test_run = ?", false).
		Find(&executions).Error
	if err != nil {
		return nil, err
	}

	totalTriggers := len(executions)
	successful := 0
	for _, e := range executions {
		if e.ExecutionSuccess {
			successful++
		}
	}
	failed := totalTriggers - successful

	// Aggregate per rule, preserving first-seen order.
	summaryIndex := make(map[string]int)
	summary := make([]RuleEffectiveness, 0)
	for _, execution := range executions {
		idx, ok := summaryIndex[execution.RuleID]
		if !ok {
			name := "Unknown"
			if rule, err := s.GetRule(ctx, execution.RuleID); err == nil {
				name = rule.Name
			}
			summary = append(summary, RuleEffectiveness{
				RuleID:   execution.RuleID,
				RuleName: name,
			})
			idx = len(summary) - 1
			summaryIndex[execution.RuleID] = idx
		}
		summary[idx].TriggerCount++
		if execution.ExecutionSuccess {
			summary[idx].SuccessCount++
		}
	}

	recommendations := []string{}
	if failed > 0 {
		recommendations = append(recommendations, fmt.Sprintf("Review %d failed executions for potential configuration issues", failed))
	}
	if totalTriggers == 0 {
		recommendations = append(recommendations, "Consider adjusting thresholds if no rules have triggered")
	}

	return &EffectivenessReport{
		PeriodStart:          periodStart,
		PeriodEnd:            periodEnd,
		TotalTriggers:        totalTriggers,
		SuccessfulExecutions: successful,
		FailedExecutions:     failed,
		RulesSummary:         summary,
		ImprovementsDetected: []models.JSONMap{},
		Recommendations:      recommendations,
	}, nil
}
