package services

import (
	"fmt"
	"time"

	"rulify/internal/models"
)

// Action builders construct the intent payload handed to the external
// notification/workflow backend. This service never performs the side effect
// itself; the payload is its boundary.

func (s *AutomationService) buildActionResult(rule *models.AutomationRule, entityType, entityID string, metricValue float64, actionType models.ActionType) (models.JSONMap, error) {
	switch actionType {
	case models.ActionSendNotification:
		return s.buildNotification(rule, entityType, entityID, metricValue), nil
	case models.ActionTriggerSkillGapAnalysis:
		return s.buildSkillGapAnalysis(entityID, metricValue), nil
	case models.ActionTriggerRootCauseAnalysis:
		return s.buildRootCauseAnalysis(entityID, metricValue), nil
	case models.ActionCreateWorkflowAssignment:
		return s.buildWorkflowAssignment(rule, entityID), nil
	case models.ActionResourceReallocation:
		return s.buildResourceReallocation(entityID, metricValue), nil
	default:
		return nil, fmt.Errorf("unsupported action type: %s", actionType)
	}
}

func (s *AutomationService) buildNotification(rule *models.AutomationRule, entityType, entityID string, metricValue float64) models.JSONMap {
	notification := models.JSONMap{
		"type":        "performance_alert",
		"rule_name":   rule.Name,
		"entity_type": entityType,
		"entity_id":   entityID,
		"metric":      rule.MetricType,
		"value":       metricValue,
		"threshold":   rule.ThresholdValue,
		"recipients":  rule.NotificationRecipients,
		"sent_at":     time.Now().UTC().Format(time.RFC3339),
	}
	s.logger.Infof("automation: notification queued for rule %s", rule.RuleID)
	return notification
}

func (s *AutomationService) buildSkillGapAnalysis(employeeID string, deploymentFrequency float64) models.JSONMap {
	workflow := models.JSONMap{
		"workflow_type":  "skill_gap_analysis",
		"employee_id":    employeeID,
		"trigger_reason": fmt.Sprintf("Low deployment frequency: %v", deploymentFrequency),
		"initiated_at":   time.Now().UTC().Format(time.RFC3339),
		"status":         "initiated",
	}
	s.logger.Infof("automation: skill gap analysis triggered for %s", employeeID)
	return workflow
}

func (s *AutomationService) buildRootCauseAnalysis(entityID string, incidentFrequency float64) models.JSONMap {
	workflow := models.JSONMap{
		"workflow_type":  "root_cause_analysis",
		"entity_id":      entityID,
		"trigger_reason": fmt.Sprintf("High incident frequency: %v", incidentFrequency),
		"initiated_at":   time.Now().UTC().Format(time.RFC3339),
		"status":         "initiated",
	}
	s.logger.Infof("automation: root cause analysis triggered for %s", entityID)
	return workflow
}

func (s *AutomationService) buildWorkflowAssignment(rule *models.AutomationRule, entityID string) models.JSONMap {
	template := "default"
	if t, ok := rule.ActionConfig["workflow_template"].(string); ok && t != "" {
		template = t
	}
	assignment := models.JSONMap{
		"workflow_type": "custom_workflow",
		"template":      template,
		"entity_id":     entityID,
		"initiated_at":  time.Now().UTC().Format(time.RFC3339),
		"status":        "created",
	}
	s.logger.Infof("automation: workflow assignment created for %s (template=%s)", entityID, template)
	return assignment
}

func (s *AutomationService) buildResourceReallocation(teamID string, blockedTickets float64) models.JSONMap {
	workflow := models.JSONMap{
		"workflow_type":  "resource_reallocation",
		"team_id":        teamID,
		"trigger_reason": fmt.Sprintf("Blocked tickets accumulated: %v", blockedTickets),
		"initiated_at":   time.Now().UTC().Format(time.RFC3339),
		"status":         "initiated",
	}
	s.logger.Infof("automation: resource reallocation triggered for %s", teamID)
	return workflow
}
