package services

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ArowuTest/edunotify-backend/internal/models"
)

var placeholder = regexp.MustCompile(`\{\{([^{}]+)\}\}`)

// Render substitutes every declared variable of t. A variable takes its value
// from data when the key is present and non-nil, otherwise its example,
// otherwise the empty string. Placeholders with no declared variable are
// left as written. Substituted values are never expanded again.
func Render(t *models.Template, data map[string]interface{}) string {
	values := make(map[string]string, len(t.Variables))
	for _, v := range t.Variables {
		if raw, ok := data[v.Name]; ok && raw != nil {
			values[v.Name] = stringify(raw)
			continue
		}
		values[v.Name] = v.Example
	}

	return placeholder.ReplaceAllStringFunc(t.Body, func(match string) string {
		name := strings.TrimSpace(match[2 : len(match)-2])
		if val, ok := values[name]; ok {
			return val
		}
		return match
	})
}

// Sample renders t using only the example value of each variable
func Sample(t *models.Template) string {
	return Render(t, nil)
}

// MergeData overlays per-recipient values on the shared ones
func MergeData(shared, recipient map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(shared)+len(recipient))
	for k, v := range shared {
		merged[k] = v
	}
	for k, v := range recipient {
		merged[k] = v
	}
	return merged
}

func stringify(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}
