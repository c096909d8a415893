package mission

import (
	"fmt"
	"strings"

	domainAnalysis "github.com/edu008/HeatQuest/internal/domain/analysis"
	domainMission "github.com/edu008/HeatQuest/internal/domain/mission"
)

// Heat-score bands used for mission titles and descriptions.
const (
	bandCritical = 30.0
	bandHigh     = 20.0
	bandModerate = 15.0
)

// locationKeywords maps summary keywords to a display location type, checked
// in order.
var locationKeywords = []struct {
	keywords []string
	label    string
}{
	{[]string{"residential", "houses", "apartments"}, "Residential Zone"},
	{[]string{"school", "playground"}, "School Area"},
	{[]string{"parking", "asphalt"}, "Parking Zone"},
	{[]string{"industrial", "warehouse"}, "Industrial Area"},
	{[]string{"park", "green space"}, "Park Zone"},
	{[]string{"commercial", "shopping"}, "Commercial District"},
}

// locationLabel prefers the analyzer's structured location type and falls
// back to keyword extraction from the summary.
func locationLabel(locationType, summary string) string {
	if locationType != "" {
		return locationType
	}
	lower := strings.ToLower(summary)
	for _, lk := range locationKeywords {
		for _, kw := range lk.keywords {
			if strings.Contains(lower, kw) {
				return lk.label
			}
		}
	}
	return "Area"
}

func buildTitle(heatScore float64, locationType, summary string) string {
	var prefix string
	switch {
	case heatScore > bandCritical:
		prefix = "Critical"
	case heatScore > bandHigh:
		prefix = "High Heat"
	case heatScore > bandModerate:
		prefix = "Moderate Heat"
	default:
		prefix = "Investigate"
	}
	return fmt.Sprintf("%s: %s", prefix, locationLabel(locationType, summary))
}

func buildDescription(summary string, heatScore float64, temperatureC *float64) string {
	var parts []string
	if summary != "" {
		parts = append(parts, summary)
	}
	switch {
	case heatScore > bandCritical:
		parts = append(parts, fmt.Sprintf("Critical heat score of %.1f, immediate action required.", heatScore))
	case heatScore > bandHigh:
		parts = append(parts, fmt.Sprintf("High heat score of %.1f, countermeasures strongly recommended.", heatScore))
	default:
		parts = append(parts, fmt.Sprintf("Heat score: %.1f", heatScore))
	}
	if temperatureC != nil {
		parts = append(parts, fmt.Sprintf("Surface temperature: %.1f C", *temperatureC))
	}
	return strings.Join(parts, " ")
}

// hotSurfaceC and sparseNDVI are the thresholds above/below which temperature
// and vegetation become reasons of their own.
const (
	hotSurfaceC = 35.0
	sparseNDVI  = 0.2
)

func buildReasons(mainCause, summary string, temperatureC, ndvi *float64) []string {
	var reasons []string
	if mainCause != "" {
		reasons = append(reasons, "Main cause: "+mainCause)
	} else if summary != "" {
		s := summary
		if len(s) > 200 {
			s = s[:200]
		}
		reasons = append(reasons, s)
	}
	if temperatureC != nil && *temperatureC > hotSurfaceC {
		reasons = append(reasons, fmt.Sprintf("Very high surface temperature (%.1f C)", *temperatureC))
	}
	if ndvi != nil && *ndvi < sparseNDVI {
		reasons = append(reasons, fmt.Sprintf("Sparse vegetation (NDVI %.2f)", *ndvi))
	}
	if len(reasons) == 0 {
		reasons = append(reasons, "Elevated heat load detected in this area")
	}
	return reasons
}

// defaultActions is the fallback when an analysis carries no suggested
// actions.
var defaultActions = []domainMission.Action{
	{Priority: "high", Action: "Plant trees", Description: "Plant trees for natural shade"},
	{Priority: "medium", Action: "Brighten surfaces", Description: "Install light-colored surfaces such as white roofs"},
	{Priority: "medium", Action: "Add water features", Description: "Add water features or fountains"},
}

// buildActions carries the analyzer's structured suggestions into the
// mission, each starting uncompleted.
func buildActions(suggested []domainAnalysis.SuggestedAction) []domainMission.Action {
	if len(suggested) == 0 {
		return append([]domainMission.Action(nil), defaultActions...)
	}
	out := make([]domainMission.Action, len(suggested))
	for i, a := range suggested {
		out[i] = domainMission.Action{
			Priority:    a.Priority,
			Action:      a.Action,
			Description: a.Description,
		}
	}
	return out
}
