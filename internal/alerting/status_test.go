package alerting

import (
	"testing"

	"github.com/brisk-orange-fox/querywatch/internal/models"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		count     int
		threshold int
		want      models.Status
	}{
		{"zero rows is good", 0, 5, models.StatusGood},
		{"zero rows with zero threshold", 0, 0, models.StatusGood},
		{"one row with zero threshold", 1, 0, models.StatusBad},
		{"below threshold", 3, 5, models.StatusUnderThreshold},
		{"one below threshold", 4, 5, models.StatusUnderThreshold},
		{"at threshold is bad", 5, 5, models.StatusBad},
		{"above threshold is bad", 100, 5, models.StatusBad},
		{"threshold one fires on first row", 1, 1, models.StatusBad},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.count, tt.threshold); got != tt.want {
				t.Errorf("Classify(%d, %d) = %q, want %q", tt.count, tt.threshold, got, tt.want)
			}
		})
	}
}
