package story

// ExtractJSONObject locates the first balanced top-level {...} object in raw
// model output and returns its substring. The scan tracks whether it is
// inside a quoted string and treats backslash-escaped characters as
// non-structural, so braces inside string values never affect depth.
// Returns "" when no balanced object exists.
func ExtractJSONObject(raw string) string {
	inString := false
	escaped := false
	depth := 0
	start := -1

	for i, ch := range raw {
		if escaped {
			escaped = false
			continue
		}
		switch ch {
		case '\\':
			escaped = true
		case '"':
			inString = !inString
		case '{':
			if inString {
				continue
			}
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if inString || depth == 0 {
				continue
			}
			depth--
			if depth == 0 && start >= 0 {
				return raw[start : i+len("}")]
			}
		}
	}
	return ""
}
