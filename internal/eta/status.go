package eta

import (
	"strings"

	"github.com/transitpulse/transitpulse_core/internal/models"
)

// statusRules maps provider free-text status fragments to normalized
// statuses, checked in order, first match wins. This is a compatibility
// heuristic inherited from the provider's wording; do not reorder.
var statusRules = []struct {
	fragment string
	status   models.DepartureStatus
}{
	{"delay", models.StatusDelayed},
	{"cancel", models.StatusCancelled},
	{"skip", models.StatusSkipped},
	{"no service", models.StatusNoService},
	{"hold", models.StatusDelayed},
}

// StatusFromText normalizes a prediction's free-text status field.
// Empty text defaults to on_time.
func StatusFromText(text string) models.DepartureStatus {
	lower := strings.ToLower(text)
	for _, rule := range statusRules {
		if strings.Contains(lower, rule.fragment) {
			return rule.status
		}
	}
	return models.StatusOnTime
}
