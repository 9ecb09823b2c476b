package game

import (
	"encoding/json"
	"strconv"
	"strings"
)

// ParseTurnRequest normalizes and validates an untyped request body.
// bookTitle is the only field that can fail validation; everything else is
// coerced with a lenient default so a sloppy client still gets a turn.
// No upstream call happens before this succeeds.
func ParseTurnRequest(body []byte) (TurnRequest, error) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil || raw == nil {
		return TurnRequest{}, &ValidationError{Reason: "请求体格式不正确。"}
	}

	title, _ := raw["bookTitle"].(string)
	title = strings.TrimSpace(title)
	if title == "" {
		return TurnRequest{}, &ValidationError{Field: "bookTitle", Reason: "字段不能为空。"}
	}

	req := TurnRequest{
		BookTitle: title,
		Round:     coerceRound(raw["round"]),
		History:   sanitizeHistory(raw["history"]),
	}
	if choice, ok := raw["choice"].(string); ok {
		req.Choice = &choice
	}
	if name, ok := raw["protagonistName"].(string); ok {
		req.ProtagonistName = &name
	}
	return req, nil
}

// coerceRound accepts anything JSON can carry and clamps to a non-negative
// integer, defaulting to 0 rather than failing.
func coerceRound(v any) int {
	n, ok := coerceNumber(v)
	if !ok || n < 0 {
		return 0
	}
	return int(n)
}

func coerceNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

// sanitizeHistory drops entries that are not objects or whose round is not
// numeric; label and text fall back to "?" and "" when not strings.
func sanitizeHistory(v any) []HistoryEntry {
	items, ok := v.([]any)
	if !ok {
		return nil
	}

	out := make([]HistoryEntry, 0, len(items))
	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		round, ok := coerceNumber(entry["round"])
		if !ok {
			continue
		}

		label, ok := entry["label"].(string)
		if !ok {
			label = "?"
		}
		text, _ := entry["text"].(string)

		out = append(out, HistoryEntry{
			Round: int(round),
			Label: label,
			Text:  text,
		})
	}
	return out
}
