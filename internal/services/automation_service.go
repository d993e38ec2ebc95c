package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rulify/internal/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

var (
	ErrRuleNotFound   = errors.New("automation rule not found")
	ErrConfigNotFound = errors.New("threshold config not found")

	// ErrInvalidRequest marks request-validation failures so handlers can
	// map them to 400 with errors.Is instead of inspecting messages.
	ErrInvalidRequest = errors.New("invalid request")
)

// AutomationService 自动化规则引擎：规则 CRUD、阈值覆盖、评估触发与执行报表
type AutomationService struct {
	db      *gorm.DB
	logger  *logrus.Logger
	tracer  trace.Tracer
	history MetricHistory
}

// NewAutomationService 创建规则引擎服务
func NewAutomationService(db *gorm.DB, logger *logrus.Logger) *AutomationService {
	if logger == nil {
		logger = logrus.New()
	}
	return &AutomationService{
		db:      db,
		logger:  logger,
		tracer:  otel.Tracer("rulify.automation"),
		history: permissiveMetricHistory{},
	}
}

// SetMetricHistory injects the historical-metrics collaborator used by the
// duration-persistence gate. When unset, the gate always passes.
func (s *AutomationService) SetMetricHistory(h MetricHistory) {
	if h != nil {
		s.history = h
	}
}

func validScopeType(t string) bool {
	switch t {
	case "employee", "team", "repository", "service":
		return true
	}
	return false
}

// RuleCreateRequest 创建规则请求
type RuleCreateRequest struct {
	Name        string `json:"name" binding:"required,max=255"`
	Description string `json:"description"`

	ScopeType string  `json:"scope_type" binding:"required"` // employee, team, repository, service
	ScopeID   *string `json:"scope_id"`

	MetricType     string                   `json:"metric_type" binding:"required"`
	Operator       models.ConditionOperator `json:"operator" binding:"required"`
	ThresholdValue float64                  `json:"threshold_value"`
	DurationDays   int                      `json:"duration_days" binding:"min=0"`
	CustomFormula  string                   `json:"custom_formula"`

	ActionType             models.ActionType `json:"action_type" binding:"required"`
	ActionConfig           models.JSONMap    `json:"action_config"`
	NotificationRecipients models.StringList `json:"notification_recipients"`
}

// RuleUpdateRequest 部分更新请求，nil 字段保持原值
type RuleUpdateRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`

	ScopeType *string `json:"scope_type"`
	ScopeID   *string `json:"scope_id"`

	MetricType     *string                   `json:"metric_type"`
	Operator       *models.ConditionOperator `json:"operator"`
	ThresholdValue *float64                  `json:"threshold_value"`
	DurationDays   *int                      `json:"duration_days"`
	CustomFormula  *string                   `json:"custom_formula"`

	ActionType             *models.ActionType `json:"action_type"`
	ActionConfig           *models.JSONMap    `json:"action_config"`
	NotificationRecipients *models.StringList `json:"notification_recipients"`

	// Status assignment is advisory: any value may be set directly.
	Status *models.RuleStatus `json:"status"`
}

// CreateRule 创建规则，初始状态始终为 draft
func (s *AutomationService) CreateRule(ctx context.Context, req *RuleCreateRequest, createdBy string) (*models.AutomationRule, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: request body required", ErrInvalidRequest)
	}
	if createdBy == "" {
		return nil, fmt.Errorf("%w: created_by required", ErrInvalidRequest)
	}
	if !validScopeType(req.ScopeType) {
		return nil, fmt.Errorf("%w: unknown scope_type %q", ErrInvalidRequest, req.ScopeType)
	}
	if !req.Operator.Valid() {
		return nil, fmt.Errorf("%w: unknown operator %q", ErrInvalidRequest, req.Operator)
	}
	if !req.ActionType.Valid() {
		return nil, fmt.Errorf("%w: unknown action_type %q", ErrInvalidRequest, req.ActionType)
	}

	actionConfig := req.ActionConfig
	if actionConfig == nil {
		actionConfig = models.JSONMap{}
	}
	recipients := req.NotificationRecipients
	if recipients == nil {
		recipients = models.StringList{}
	}

	rule := &models.AutomationRule{
		RuleID:                 uuid.NewString(),
		Name:                   req.Name,
		Description:            req.Description,
		ScopeType:              req.ScopeType,
		ScopeID:                req.ScopeID,
		MetricType:             req.MetricType,
		Operator:               req.Operator,
		ThresholdValue:         req.ThresholdValue,
		DurationDays:           req.DurationDays,
		CustomFormula:          req.CustomFormula,
		ActionType:             req.ActionType,
		ActionConfig:           actionConfig,
		NotificationRecipients: recipients,
		Status:                 models.StatusDraft,
		CreatedBy:              createdBy,
	}

	if err := s.db.WithContext(ctx).Create(rule).Error; err != nil {
		return nil, err
	}
	s.logger.Infof("automation: created rule %s (%s)", rule.RuleID, rule.Name)
	return rule, nil
}

// GetRule 按 ID 获取规则
func (s *AutomationService) GetRule(ctx context.Context, ruleID string) (*models.AutomationRule, error) {
	var rule models.AutomationRule
	err := s.db.WithContext(ctx).Where("rule_id = ?", ruleID).First(&rule).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRuleNotFound
		}
		return nil, err
	}
	return &rule, nil
}

// UpdateRule 合并非空字段后保存
func (s *AutomationService) UpdateRule(ctx context.Context, ruleID string, req *RuleUpdateRequest) (*models.AutomationRule, error) {
	rule, err := s.GetRule(ctx, ruleID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		rule.Name = *req.Name
	}
	if req.Description != nil {
		rule.Description = *req.Description
	}
	if req.ScopeType != nil {
		if !validScopeType(*req.ScopeType) {
			return nil, fmt.Errorf("%w: unknown scope_type %q", ErrInvalidRequest, *req.ScopeType)
		}
		rule.ScopeType = *req.ScopeType
	}
	if req.ScopeID != nil {
		rule.ScopeID = req.ScopeID
	}
	if req.MetricType != nil {
		rule.MetricType = *req.MetricType
	}
	if req.Operator != nil {
		if !req.Operator.Valid() {
			return nil, fmt.Errorf("%w: unknown operator %q", ErrInvalidRequest, *req.Operator)
		}
		rule.Operator = *req.Operator
	}
	if req.ThresholdValue != nil {
		rule.ThresholdValue = *req.ThresholdValue
	}
	if req.DurationDays != nil {
		if *req.DurationDays < 0 {
			return nil, fmt.Errorf("%w: duration_days must be >= 0", ErrInvalidRequest)
		}
		rule.DurationDays = *req.DurationDays
	}
	if req.CustomFormula != nil {
		rule.CustomFormula = *req.CustomFormula
	}
	if req.ActionType != nil {
		if !req.ActionType.Valid() {
			return nil, fmt.Errorf("%w: unknown action_type %q", ErrInvalidRequest, *req.ActionType)
		}
		rule.ActionType = *req.ActionType
	}
	if req.ActionConfig != nil {
		rule.ActionConfig = *req.ActionConfig
	}
	if req.NotificationRecipients != nil {
		rule.NotificationRecipients = *req.NotificationRecipients
	}
	if req.Status != nil {
		if !req.Status.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidRequest, *req.Status)
		}
		rule.Status = *req.Status
	}

	if err := s.db.WithContext(ctx).Save(rule).Error; err != nil {
		return nil, err
	}
	return rule, nil
}

// DeleteRule 硬删除；历史执行记录按设计保留为孤儿
func (s *AutomationService) DeleteRule(ctx context.Context, ruleID string) error {
	result := s.db.WithContext(ctx).Where("rule_id = ?", ruleID).Delete(&models.AutomationRule{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// ListRules 分页列出规则，支持状态与作用域过滤
func (s *AutomationService) ListRules(ctx context.Context, page, size int, status models.RuleStatus, scopeType string) ([]models.AutomationRule, int64, error) {
	if page < 0 {
		page = 0
	}
	if size < 1 || size > 100 {
		size = 50
	}

	query := s.db.WithContext(ctx).Model(&models.AutomationRule{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if scopeType != "" {
		query = query.Where("scope_type = ?", scopeType)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rules []models.AutomationRule
	err := query.Order("created_at DESC").Offset(page * size).Limit(size).Find(&rules).Error
	if err != nil {
		return nil, 0, err
	}
	return rules, total, nil
}

// ActivateRule 无条件置为 active
func (s *AutomationService) ActivateRule(ctx context.Context, ruleID string) (*models.AutomationRule, error) {
	rule, err := s.GetRule(ctx, ruleID)
	if err != nil {
		return nil, err
	}
	rule.Status = models.StatusActive
	if err := s.db.WithContext(ctx).Save(rule).Error; err != nil {
		return nil, err
	}
	s.logger.Infof("automation: activated rule %s", ruleID)
	return rule, nil
}

// PauseRule 无条件置为 paused
func (s *AutomationService) PauseRule(ctx context.Context, ruleID string) (*models.AutomationRule, error) {
	rule, err := s.GetRule(ctx, ruleID)
	if err != nil {
		return nil, err
	}
	rule.Status = models.StatusPaused
	if err := s.db.WithContext(ctx).Save(rule).Error; err != nil {
		return nil, err
	}
	return rule, nil
}

// RuleTestRequest 规则试运行请求
type RuleTestRequest struct {
	EntityType           string  `json:"entity_type" binding:"required"`
	EntityID             string  `json:"entity_id" binding:"required"`
	SimulatedMetricValue float64 `json:"simulated_metric_value"`
}

// RuleTestResponse 规则试运行结果预览
type RuleTestResponse struct {
	RuleID                 string         `json:"rule_id"`
	WouldTrigger           bool           `json:"would_trigger"`
	MetricValue            float64        `json:"metric_value"`
	ThresholdValue         float64        `json:"threshold_value"`
	ActionThatWouldExecute string         `json:"action_that_would_execute"`
	SimulatedResult        models.JSONMap `json:"simulated_result"`
}

// TestRule evaluates a rule against a simulated value without executing the
// action. The rule's own threshold is used (overrides are ignored), a test
// execution record is committed, and trigger bookkeeping is left untouched.
func (s *AutomationService) TestRule(ctx context.Context, ruleID string, req *RuleTestRequest) (*RuleTestResponse, error) {
	ctx, span := s.tracer.Start(ctx, "automation.TestRule")
	defer span.End()

	rule, err := s.GetRule(ctx, ruleID)
	if err != nil {
		return nil, err
	}

	wouldTrigger := EvaluateCondition(req.SimulatedMetricValue, rule.Operator, rule.ThresholdValue)

	actionPreview := models.JSONMap{
		"action_type": string(rule.ActionType),
		"recipients":  rule.NotificationRecipients,
		"config":      rule.ActionConfig,
	}

	execution := &models.RuleExecution{
		ExecutionID:      uuid.NewString(),
		RuleID:           ruleID,
		EntityType:       req.EntityType,
		EntityID:         req.EntityID,
		TriggeredAt:      time.Now().UTC(),
		MetricValue:      req.SimulatedMetricValue,
		ThresholdValue:   rule.ThresholdValue,
		ActionExecuted:   string(rule.ActionType),
		ExecutionSuccess: true,
		ExecutionResult:  actionPreview,
		IsTestRun:        true,
	}
	if err := s.db.WithContext(ctx).Create(execution).Error; err != nil {
		return nil, err
	}

	return &RuleTestResponse{
		RuleID:                 ruleID,
		WouldTrigger:           wouldTrigger,
		MetricValue:            req.SimulatedMetricValue,
		ThresholdValue:         rule.ThresholdValue,
		ActionThatWouldExecute: string(rule.ActionType),
		SimulatedResult:        actionPreview,
	}, nil
}

// ThresholdConfigCreateRequest 创建阈值覆盖请求
type ThresholdConfigCreateRequest struct {
	EntityType      string             `json:"entity_type" binding:"required"`
	EntityID        string             `json:"entity_id" binding:"required"`
	MetricType      string             `json:"metric_type" binding:"required"`
	CustomThreshold float64            `json:"custom_threshold"`
	CustomAction    *models.ActionType `json:"custom_action"`
}

// CreateThresholdConfig 为指定实体创建阈值/动作覆盖
func (s *AutomationService) CreateThresholdConfig(ctx context.Context, req *ThresholdConfigCreateRequest, createdBy string) (*models.ThresholdConfig, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: request body required", ErrInvalidRequest)
	}
	if req.CustomAction != nil && !req.CustomAction.Valid() {
		return nil, fmt.Errorf("%w: unknown custom_action %q", ErrInvalidRequest, *req.CustomAction)
	}

	config := &models.ThresholdConfig{
		ConfigID:        uuid.NewString(),
		EntityType:      req.EntityType,
		EntityID:        req.EntityID,
		MetricType:      req.MetricType,
		CustomThreshold: req.CustomThreshold,
		CustomAction:    req.CustomAction,
		CreatedBy:       createdBy,
	}
	if err := s.db.WithContext(ctx).Create(config).Error; err != nil {
		return nil, err
	}
	return config, nil
}

// ListThresholdConfigs 列出阈值覆盖，支持实体过滤
func (s *AutomationService) ListThresholdConfigs(ctx context.Context, entityType, entityID string) ([]models.ThresholdConfig, error) {
	query := s.db.WithContext(ctx).Model(&models.ThresholdConfig{})
	if entityType != "" {
		query = query.Where("entity_type = ?", entityType)
	}
	if entityID != "" {
		query = query.Where("entity_id = ?", entityID)
	}

	var configs []models.ThresholdConfig
	if err := query.Order("created_at DESC").Find(&configs).Error; err != nil {
		return nil, err
	}
	return configs, nil
}
