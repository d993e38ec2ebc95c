package services

import "rulify/internal/models"

// EvaluateCondition compares a metric value against a threshold. It is total:
// an unknown operator never fires.
func EvaluateCondition(value float64, op models.ConditionOperator, threshold float64) bool {
	switch op {
	case models.OperatorLessThan:
		return value < threshold
	case models.OperatorLessThanOrEqual:
		return value <= threshold
	case models.OperatorGreaterThan:
		return value > threshold
	case models.OperatorGreaterThanOrEqual:
		return value >= threshold
	case models.OperatorEqual:
		return value == threshold
	case models.OperatorNotEqual:
		return value != threshold
	}
	return false
}
