package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ConditionOperator 规则条件比较运算符
type ConditionOperator string

const (
	OperatorLessThan           ConditionOperator = "<"
	OperatorLessThanOrEqual    ConditionOperator = "<="
	OperatorGreaterThan        ConditionOperator = ">"
	OperatorGreaterThanOrEqual ConditionOperator = ">="
	OperatorEqual              ConditionOperator = "=="
	OperatorNotEqual           ConditionOperator = "!="
)

// Valid reports whether op is one of the six supported operators.
func (op ConditionOperator) Valid() bool {
	switch op {
	case OperatorLessThan, OperatorLessThanOrEqual,
		OperatorGreaterThan, OperatorGreaterThanOrEqual,
		OperatorEqual, OperatorNotEqual:
		return true
	}
	return false
}

// ActionType 规则触发后执行的动作类型
type ActionType string

const (
	ActionSendNotification         ActionType = "send_notification"
	ActionTriggerSkillGapAnalysis  ActionType = "trigger_skill_gap_analysis"
	ActionTriggerRootCauseAnalysis ActionType = "trigger_root_cause_analysis"
	ActionCreateWorkflowAssignment ActionType = "create_workflow_assignment"
	ActionResourceReallocation     ActionType = "resource_reallocation"
)

// Valid reports whether t is a known action type.
func (t ActionType) Valid() bool {
	switch t {
	case ActionSendNotification, ActionTriggerSkillGapAnalysis,
		ActionTriggerRootCauseAnalysis, ActionCreateWorkflowAssignment,
		ActionResourceReallocation:
		return true
	}
	return false
}

// RuleStatus 规则生命周期状态
// draft -> testing -> active <-> paused -> disabled
// Transitions are advisory: Update may assign any status directly.
type RuleStatus string

const (
	StatusDraft    RuleStatus = "draft"
	StatusTesting  RuleStatus = "testing"
	StatusActive   RuleStatus = "active"
	StatusPaused   RuleStatus = "paused"
	StatusDisabled RuleStatus = "disabled"
)

// Valid reports whether s is a known rule status.
func (s RuleStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusTesting, StatusActive, StatusPaused, StatusDisabled:
		return true
	}
	return false
}

// JSONMap stores an open key-value map as a JSON column.
type JSONMap map[string]interface{}

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = JSONMap{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type for JSONMap: %T", value)
	}
	if len(data) == 0 {
		*m = JSONMap{}
		return nil
	}
	return json.Unmarshal(data, m)
}

// StringList stores an ordered list of strings as a JSON column.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = StringList{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type for StringList: %T", value)
	}
	if len(data) == 0 {
		*l = StringList{}
		return nil
	}
	return json.Unmarshal(data, l)
}

// AutomationRule 自动化规则定义
type AutomationRule struct {
	RuleID      string `gorm:"type:uuid;primaryKey" json:"rule_id"`
	Name        string `gorm:"size:255;not null" json:"name"`
	Description string `gorm:"type:text" json:"description"`

	// Scope: which entities this rule applies to.
	ScopeType string  `gorm:"size:50;not null;index" json:"scope_type"` // employee, team, repository, service
	ScopeID   *string `gorm:"size:255" json:"scope_id"`                 // nil = every entity of scope_type

	// Condition
	MetricType     string            `gorm:"size:100;not null;index" json:"metric_type"` // deployment_frequency, incident_frequency, etc.
	Operator       ConditionOperator `gorm:"size:10;not null" json:"operator"`
	ThresholdValue float64           `gorm:"not null" json:"threshold_value"`
	DurationDays   int               `gorm:"default:0" json:"duration_days"` // condition must persist for this many days
	CustomFormula  string            `gorm:"type:text" json:"custom_formula,omitempty"`

	// Action
	ActionType             ActionType `gorm:"size:100;not null" json:"action_type"`
	ActionConfig           JSONMap    `gorm:"type:text" json:"action_config"`
	NotificationRecipients StringList `gorm:"type:text" json:"notification_recipients"`

	Status RuleStatus `gorm:"size:20;default:draft;index" json:"status"`

	// Audit
	CreatedBy       string     `gorm:"size:255;not null" json:"created_by"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	LastTriggeredAt *time.Time `json:"last_triggered_at"`
	TriggerCount    int64      `gorm:"default:0" json:"trigger_count"`
}

// RuleExecution 一次评估触发的不可变记录
type RuleExecution struct {
	ExecutionID string `gorm:"type:uuid;primaryKey" json:"execution_id"`
	RuleID      string `gorm:"type:uuid;not null;index" json:"rule_id"`

	EntityType string `gorm:"size:50;not null" json:"entity_type"`
	EntityID   string `gorm:"size:255;not null;index" json:"entity_id"`

	TriggeredAt    time.Time `gorm:"index" json:"triggered_at"`
	MetricValue    float64   `gorm:"not null" json:"metric_value"`
	ThresholdValue float64   `gorm:"not null" json:"threshold_value"` // post-override value actually used

	ActionExecuted   string  `gorm:"size:100;not null" json:"action_executed"`
	ExecutionSuccess bool    `gorm:"default:true" json:"execution_success"`
	ExecutionResult  JSONMap `gorm:"type:text" json:"execution_result"`
	ErrorMessage     string  `gorm:"type:text" json:"error_message,omitempty"`

	IsTestRun bool `gorm:"default:false;index" json:"is_test_run"`
}

// ThresholdConfig 按实体自定义的阈值/动作覆盖
type ThresholdConfig struct {
	ConfigID string `gorm:"type:uuid;primaryKey" json:"config_id"`

	EntityType string `gorm:"size:50;not null;index" json:"entity_type"` // team, employee, ...
	EntityID   string `gorm:"size:255;not null;index" json:"entity_id"`

	MetricType      string      `gorm:"size:100;not null" json:"metric_type"`
	CustomThreshold float64     `gorm:"not null" json:"custom_threshold"`
	CustomAction    *ActionType `gorm:"size:100" json:"custom_action"`

	CreatedBy string    `gorm:"size:255;not null" json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
