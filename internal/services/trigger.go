package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rulify/internal/metrics"
	"rulify/internal/models"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// MetricHistory answers whether a condition has held continuously for a
// number of days. It is an external collaborator backed by historical metric
// samples; the engine only consumes the verdict.
type MetricHistory interface {
	HeldContinuously(ctx context.Context, entityType, entityID, metricType string, op models.ConditionOperator, threshold float64, days int) (bool, error)
}

// permissiveMetricHistory always passes the duration gate. The real
// time-series collaborator is not available yet, so duration_days > 0 rules
// fire on the current observation alone.
type permissiveMetricHistory struct{}

func (permissiveMetricHistory) HeldContinuously(context.Context, string, string, string, models.ConditionOperator, float64, int) (bool, error) {
	return true, nil
}

// EvaluateAndTrigger evaluates every applicable active rule against a metric
// observation and fires the ones whose condition holds. Each fire dispatches
// the effective action, writes an execution record and bumps the rule's
// trigger bookkeeping; a failed action still produces a record and still
// counts as a trigger. Persistence failures abort the sweep: executions fired
// before the failure are returned alongside the error.
func (s *AutomationService) EvaluateAndTrigger(ctx context.Context, entityType, entityID, metricType string, currentValue float64) ([]models.RuleExecution, error) {
	ctx, span := s.tracer.Start(ctx, "automation.EvaluateAndTrigger")
	span.SetAttributes(
		attribute.String("entity_type", entityType),
		attribute.String("entity_id", entityID),
		attribute.String("metric_type", metricType),
	)
	defer span.End()

	override, err := s.lookupThresholdOverride(ctx, entityType, entityID, metricType)
	if err != nil {
		return nil, err
	}

	var rules []models.AutomationRule
	err = s.db.WithContext(ctx).
		Where("status = ?", models.StatusActive).
		Where("metric_type = ?", metricType).
		Where("scope_type = ?", entityType).
		Where("scope_id IS NULL OR scope_id = '' OR scope_id = ?", entityID).
		Find(&rules).Error
	if err != nil {
		return nil, err
	}

	executions := make([]models.RuleExecution, 0, len(rules))
	for i := range rules {
		rule := &rules[i]

		// Effective threshold/action: an override for the exact
		// (entity_type, entity_id, metric_type) key always wins.
		threshold := rule.ThresholdValue
		actionType := rule.ActionType
		if override != nil {
			threshold = override.CustomThreshold
			if override.CustomAction != nil {
				actionType = *override.CustomAction
			}
		}

		if !EvaluateCondition(currentValue, rule.Operator, threshold) {
			metrics.RuleEvaluationsTotal.WithLabelValues(metricType, "skipped").Inc()
			continue
		}

		if rule.DurationDays > 0 {
			held, err := s.history.HeldContinuously(ctx, entityType, entityID, metricType, rule.Operator, threshold, rule.DurationDays)
			if err != nil {
				s.logger.Warnf("automation: duration check failed for rule %s: %v", rule.RuleID, err)
				metrics.RuleEvaluationsTotal.WithLabelValues(metricType, "skipped").Inc()
				continue
			}
			if !held {
				metrics.RuleEvaluationsTotal.WithLabelValues(metricType, "skipped").Inc()
				continue
			}
		}

		execution, err := s.fireRule(ctx, rule, entityType, entityID, currentValue, threshold, actionType)
		if err != nil {
			return executions, err
		}
		executions = append(executions, *execution)
		metrics.RuleEvaluationsTotal.WithLabelValues(metricType, "fired").Inc()
	}

	return executions, nil
}

// lookupThresholdOverride returns the most recently created override for the
// exact key, or nil when none exists.
func (s *AutomationService) lookupThresholdOverride(ctx context.Context, entityType, entityID, metricType string) (*models.ThresholdConfig, error) {
	var config models.ThresholdConfig
	err := s.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ? AND metric_type = ?", entityType, entityID, metricType).
		Order("created_at DESC").
		First(&config).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &config, nil
}

// fireRule dispatches the action, records the execution and updates trigger
// bookkeeping. Action failure is captured in the record, never propagated;
// a failure to persist the record or the trigger stats is.
func (s *AutomationService) fireRule(ctx context.Context, rule *models.AutomationRule, entityType, entityID string, metricValue, threshold float64, actionType models.ActionType) (*models.RuleExecution, error) {
	now := time.Now().UTC()

	result, err := s.buildActionResult(rule, entityType, entityID, metricValue, actionType)
	success := err == nil
	errorMessage := ""
	if err != nil {
		errorMessage = err.Error()
		result = models.JSONMap{}
		s.logger.Errorf("automation: action %s failed for rule %s: %v", actionType, rule.RuleID, err)
		metrics.RuleTriggersTotal.WithLabelValues(string(actionType), "failure").Inc()
	} else {
		metrics.RuleTriggersTotal.WithLabelValues(string(actionType), "success").Inc()
	}

	execution := &models.RuleExecution{
		ExecutionID:      uuid.NewString(),
		RuleID:           rule.RuleID,
		EntityType:       entityType,
		EntityID:         entityID,
		TriggeredAt:      now,
		MetricValue:      metricValue,
		ThresholdValue:   threshold,
		ActionExecuted:   string(actionType),
		ExecutionSuccess: success,
		ExecutionResult:  result,
		ErrorMessage:     errorMessage,
		IsTestRun:        false,
	}
	if err := s.db.WithContext(ctx).Create(execution).Error; err != nil {
		s.logger.Errorf("automation: record execution failed for rule %s: %v", rule.RuleID, err)
		return nil, fmt.Errorf("record execution for rule %s: %w", rule.RuleID, err)
	}

	// Atomic increment to avoid lost updates under concurrent evaluations.
	err = s.db.WithContext(ctx).Model(&models.AutomationRule{}).
		Where("rule_id = ?", rule.RuleID).
		UpdateColumns(map[string]interface{}{
			"last_triggered_at": now,
			"trigger_count":     gorm.Expr("trigger_count + 1"),
		}).Error
	if err != nil {
		s.logger.Errorf("automation: update trigger stats failed for rule %s: %v", rule.RuleID, err)
		return nil, fmt.Errorf("update trigger stats for rule %s: %w", rule.RuleID, err)
	}

	s.logger.Infof("automation: rule %s fired for %s/%s (value=%v threshold=%v action=%s success=%v)",
		rule.RuleID, entityType, entityID, metricValue, threshold, actionType, success)
	return execution, nil
}
