package alerting

import "github.com/brisk-orange-fox/querywatch/internal/models"

// Classify maps a successful execution's row count against the alert
// threshold. Equality is bad: threshold rows already means the condition
// the alert watches for has been reached.
func Classify(resultCount, threshold int) models.Status {
	switch {
	case resultCount == 0:
		return models.StatusGood
	case resultCount < threshold:
		return models.StatusUnderThreshold
	default:
		return models.StatusBad
	}
}
