package match

import (
	"fmt"
	"sort"
	"strings"
)

// reasoning renders the components above the display threshold into a
// human-readable sentence, strongest first. When nothing clears the
// threshold the pick came down to exploration between weak options, and
// the string says so.
func (m *Matcher) reasoning(subject string, components map[string]float64) string {
	type scored struct {
		name  string
		value float64
	}
	var strong []scored
	for name, v := range components {
		if v > m.cfg.DisplayThreshold {
			strong = append(strong, scored{name: name, value: v})
		}
	}
	if len(strong) == 0 {
		return fmt.Sprintf("selected %s by exploration: no component stood out among close alternatives", subject)
	}
	sort.Slice(strong, func(i, j int) bool {
		if strong[i].value != strong[j].value {
			return strong[i].value > strong[j].value
		}
		return strong[i].name < strong[j].name
	})

	phrases := make([]string, len(strong))
	for i, s := range strong {
		phrases[i] = componentPhrase(s.name, s.value)
	}
	return fmt.Sprintf("selected %s: %s", subject, strings.Join(phrases, "; "))
}

func componentPhrase(name string, v float64) string {
	switch name {
	case ComponentSimilarity:
		return fmt.Sprintf("profile closely matches (similarity %.2f)", v)
	case ComponentNeedsMatch:
		return fmt.Sprintf("covers %.0f%% of the team's needs", v*100)
	case ComponentExpertiseMatch:
		return fmt.Sprintf("domain expertise aligns (%.0f%%)", v*100)
	case ComponentArxivBoost:
		return fmt.Sprintf("strong research record (boost %.2f)", v)
	case ComponentCapacity:
		return "team has open capacity"
	case ComponentSuccessRate:
		return fmt.Sprintf("high historical success rate (%.2f)", v)
	case ComponentClusterSuccess:
		return fmt.Sprintf("good track record with this candidate profile (%.2f)", v)
	default:
		return fmt.Sprintf("%s %.2f", name, v)
	}
}
