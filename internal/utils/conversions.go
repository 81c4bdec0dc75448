package utils

// ToStringSlice converts a decoded JSON claim into a string slice. It accepts
// []any (the encoding/json shape), []string, and a single string.
func ToStringSlice(value any) []string {
	switch v := value.(type) {
	case []string:
		return append([]string(nil), v...)
	case string:
		return []string{v}
	case []any:
		stringSlice := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				stringSlice = append(stringSlice, s)
			}
		}
		return stringSlice
	}
	return nil
}
