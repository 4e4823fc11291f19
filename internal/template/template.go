// Package template renders message templates by substituting named
// placeholders with payload values.
package template

import (
	"fmt"
	"regexp"
	"strconv"
)

var placeholderRe = regexp.MustCompile(`\{\{(\w+)\}\}`)

// Render replaces every {{name}} token in body with the payload value under
// that name. A name absent from the payload leaves the literal token in
// place, so missing data is visible in the delivered text instead of being
// silently dropped.
func Render(body string, payload map[string]any) string {
	return placeholderRe.ReplaceAllStringFunc(body, func(token string) string {
		name := placeholderRe.FindStringSubmatch(token)[1]
		value, ok := payload[name]
		if !ok {
			return token
		}
		return stringify(value)
	})
}

// stringify formats a payload value the way it would read in a message.
// Whole-number floats come out of JSON decoding for integer payload values
// and must not render with a trailing ".0" fraction.
func stringify(v any) string {
	switch value := v.(type) {
	case string:
		return value
	case float64:
		if value == float64(int64(value)) {
			return strconv.FormatInt(int64(value), 10)
		}
		return strconv.FormatFloat(value, 'f', -1, 64)
	case int:
		return strconv.Itoa(value)
	case int64:
		return strconv.FormatInt(value, 10)
	case bool:
		return strconv.FormatBool(value)
	default:
		return fmt.Sprint(value)
	}
}
