package notify

import (
	"fmt"
	"regexp"
	"strconv"
)

// placeholder matches %(name)s style fields and the %% escape.
var placeholder = regexp.MustCompile(`%\(([A-Za-z_][A-Za-z0-9_]*)\)([sdif])|%%`)

// Render fills a template using printf-style named fields: %(name)s for text,
// %(name)d or %(name)i for integers, %(name)f for six-decimal floats, and %%
// for a literal percent sign. Fields with no entry in values are kept as
// written. An entry holding nil renders as an empty string with any verb,
// never as "None" or "<nil>", so %(coverage)s is blank in a message sent
// before coverage was measured.
func Render(template string, values map[string]any) string {
	return placeholder.ReplaceAllStringFunc(template, func(match string) string {
		if match == "%%" {
			return "%"
		}

		groups := placeholder.FindStringSubmatch(match)
		value, ok := values[groups[1]]
		if !ok {
			return match
		}
		if value == nil {
			return ""
		}
		return format(value, groups[2])
	})
}

func format(value any, verb string) string {
	switch verb {
	case "d", "i":
		switch v := value.(type) {
		case int:
			return strconv.Itoa(v)
		case int64:
			return strconv.FormatInt(v, 10)
		case float64:
			return strconv.FormatInt(int64(v), 10)
		}
	case "f":
		switch v := value.(type) {
		case int:
			return strconv.FormatFloat(float64(v), 'f', 6, 64)
		case int64:
			return strconv.FormatFloat(float64(v), 'f', 6, 64)
		case float64:
			return strconv.FormatFloat(v, 'f', 6, 64)
		}
	case "s":
		if v, ok := value.(float64); ok {
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return fmt.Sprint(value)
}
