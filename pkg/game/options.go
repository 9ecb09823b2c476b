package game

import (
	"strings"
)

var optionLabels = [3]string{"A", "B", "C"}

// FallbackOptions is substituted whenever the model fails to produce three
// usable choices for a turn that is still in play.
func FallbackOptions() []Option {
	return []Option{
		{Label: "A", Text: "先观察周围，寻找线索。"},
		{Label: "B", Text: "与附近的人交谈，试探信息。"},
		{Label: "C", Text: "沿着直觉前进，看看会遇到什么。"},
	}
}

// NormalizeOptions coerces raw option data (strings or {label, text}-like
// objects) into exactly three positionally labeled choices, or none when the
// game is over. Fewer than three usable entries discards the lot in favor of
// FallbackOptions so the response always carries a full choice set.
func NormalizeOptions(raw any, isGameOver bool) []Option {
	if isGameOver {
		return []Option{}
	}

	items, _ := raw.([]any)
	extracted := make([]Option, 0, 3)
	for i, item := range items {
		if len(extracted) == 3 {
			break
		}
		switch v := item.(type) {
		case string:
			if v == "" {
				continue
			}
			extracted = append(extracted, Option{Label: positionalLabel(i), Text: v})
		case map[string]any:
			text, _ := v["text"].(string)
			text = strings.TrimSpace(text)
			if text == "" {
				continue
			}
			label, _ := v["label"].(string)
			extracted = append(extracted, Option{Label: normalizeLabel(label, i), Text: text})
		}
	}

	if len(extracted) < 3 {
		return FallbackOptions()
	}

	// Relabel positionally so labels are unique and ordered regardless of
	// what survived matching.
	for i := range extracted {
		extracted[i].Label = positionalLabel(i)
	}
	return extracted
}

// normalizeLabel maps the first A/B/C character (case-insensitive), then the
// digits 1/2/3, then falls back to the positional label.
func normalizeLabel(label string, index int) string {
	upper := strings.ToUpper(strings.TrimSpace(label))
	for _, r := range upper {
		switch r {
		case 'A', 'B', 'C':
			return string(r)
		}
	}
	for _, r := range upper {
		switch r {
		case '1':
			return "A"
		case '2':
			return "B"
		case '3':
			return "C"
		}
	}
	return positionalLabel(index)
}

func positionalLabel(index int) string {
	if index >= 0 && index < len(optionLabels) {
		return optionLabels[index]
	}
	return "A"
}
