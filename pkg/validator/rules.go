package validator

import (
	"fmt"
	"net/mail"
	"net/url"
	"slices"
	"strings"
	"unicode/utf8"
)

func rule(field, key, message string, check func() bool, values map[string]any) Rule {
	if values == nil {
		values = map[string]any{}
	}
	values["field"] = field
	return Rule{
		Check: check,
		Error: ValidationError{
			Field:             field,
			Message:           message,
			TranslationKey:    key,
			TranslationValues: values,
		},
	}
}

// RequiredString fails on empty or whitespace-only values.
func RequiredString(field, value string) Rule {
	return rule(field, "validation.required", "field is required", func() bool {
		return strings.TrimSpace(value) != ""
	}, nil)
}

func MaxLenString(field, value string, maxLen int) Rule {
	return rule(field, "validation.max_length", fmt.Sprintf("must be at most %d characters long", maxLen), func() bool {
		return utf8.RuneCountInString(value) <= maxLen
	}, map[string]any{"max": maxLen})
}

func ValidEmail(field, value string) Rule {
	return rule(field, "validation.email", "must be a valid email address", func() bool {
		addr, err := mail.ParseAddress(value)
		if err != nil || addr.Address != strings.TrimSpace(value) {
			return false
		}
		_, domain, ok := strings.Cut(addr.Address, "@")
		return ok && strings.Contains(domain, ".") && !strings.HasPrefix(domain, ".") && !strings.HasSuffix(domain, ".")
	}, nil)
}

// ValidURL accepts absolute http and https URLs with a host.
func ValidURL(field, value string) Rule {
	return rule(field, "validation.url", "must be a valid http or https URL", func() bool {
		u, err := url.Parse(value)
		if err != nil || u.Host == "" {
			return false
		}
		return u.Scheme == "http" || u.Scheme == "https"
	}, nil)
}

func OneOfString(field, value string, options []string) Rule {
	return rule(field, "validation.one_of", "must be one of: "+strings.Join(options, ", "), func() bool {
		return slices.Contains(options, value)
	}, map[string]any{"options": options})
}

func BetweenInt(field string, value, minValue, maxValue int) Rule {
	return rule(field, "validation.between", fmt.Sprintf("must be between %d and %d", minValue, maxValue), func() bool {
		return value >= minValue && value <= maxValue
	}, map[string]any{"min": minValue, "max": maxValue})
}

func NonZeroInt(field string, value int) Rule {
	return rule(field, "validation.non_zero", "must not be zero", func() bool {
		return value != 0
	}, nil)
}
