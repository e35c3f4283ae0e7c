// Package analysis resolves report reasons to their severity scores.
package analysis

import "anonrooms/backend/internal/config"

// GetWeight returns the weight (penalty) for a given report reason.
// It returns 0 if the reason is not recognized.
func GetWeight(reason string) int {
	return config.ReportWeights[reason]
}

// KnownReasons lists the reasons a report may carry, for surface validation.
func KnownReasons() []string {
	reasons := make([]string, 0, len(config.ReportWeights))
	for r := range config.ReportWeights {
		reasons = append(reasons, r)
	}
	return reasons
}
