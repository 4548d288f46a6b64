package processing

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

// TransformFunc defines the signature for any transformation function.
// arg is the text after the first ':' in the transform call, if any.
type TransformFunc func(input any, arg string) (any, error)

// ValidationFunc defines the signature for any validation function.
type ValidationFunc func(input any, rule ValidationRule) error

var transformRegistry = make(map[string]TransformFunc)
var validationRegistry = make(map[string]ValidationFunc)

// validation order matters for error messages: required first.
var validationOrder = []string{"required", "enum", "regex"}

var (
	regexMu    sync.Mutex
	regexCache = make(map[string]*regexp.Regexp)
)

// init runs when the package is loaded, registering our built-in functions
func init() {
	// Register Transformations
	transformRegistry["trim_space"] = transformTrimSpace
	transformRegistry["to_uppercase"] = transformToUppercase
	transformRegistry["to_decimal"] = transformToDecimal
	transformRegistry["to_date"] = transformToDate
	transformRegistry["strip_non_digits"] = transformStripNonDigits

	// Register Validations
	validationRegistry["required"] = validationRequired
	validationRegistry["enum"] = validateEnum
	validationRegistry["regex"] = validateRegex
}

func lookupTransform(call string) (TransformFunc, error) {
	name, _, _ := strings.Cut(call, ":")
	t, ok := transformRegistry[name]
	if !ok {
		return nil, fmt.Errorf("unknown transform function: %s", name)
	}
	return t, nil
}

// --- Transformation Implementations ---

func transformTrimSpace(input any, arg string) (any, error) {
	str, ok := input.(string)
	if !ok {
		return nil, fmt.Errorf("trim_space requires a string input")
	}
	return strings.TrimSpace(str), nil
}

func transformToUppercase(input any, arg string) (any, error) {
	str, ok := input.(string)
	if !ok {
		return nil, fmt.Errorf("to_uppercase requires a string input")
	}
	return strings.ToUpper(str), nil
}

func transformStripNonDigits(input any, arg string) (any, error) {
	str, ok := input.(string)
	if !ok {
		return nil, fmt.Errorf("strip_non_digits requires a string input")
	}
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, str), nil
}

// transformToDecimal accepts thousands separators and a leading '$'.
func transformToDecimal(input any, arg string) (any, error) {
	str, ok := input.(string)
	if !ok {
		return nil, fmt.Errorf("to_decimal requires a string input")
	}
	clean := strings.TrimSpace(strings.ReplaceAll(str, ",", ""))
	clean = strings.TrimPrefix(clean, "$")
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return nil, fmt.Errorf("could not parse '%s' as decimal: %w", str, err)
	}
	return d, nil
}

func transformToDate(input any, arg string) (any, error) {
	layout := arg
	if layout == "" {
		layout = "2006-01-02"
	}
	str, ok := input.(string)
	if !ok {
		return nil, fmt.Errorf("to_date requires a string input")
	}
	t, err := time.ParseInLocation(layout, strings.TrimSpace(str), time.UTC)
	if err != nil {
		return nil, fmt.Errorf("could not parse date '%s' with format '%s' in UTC: %w", str, layout, err)
	}
	return t, nil
}

// --- Validation Implementation ---

func validationRequired(input any, rule ValidationRule) error {
	if !rule.Required {
		return nil
	}
	if input == nil {
		return fmt.Errorf("is a required field")
	}

	allowZero := true
	if rule.AllowZero != nil && !*rule.AllowZero {
		allowZero = false
	}

	switch v := input.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("is a required field")
		}
	case decimal.Decimal:
		if !allowZero && v.IsZero() {
			return fmt.Errorf("is a required field and zero is not an allowed value")
		}
	case time.Time:
		if v.IsZero() {
			return fmt.Errorf("is a required field")
		}
	}
	return nil
}

func validateEnum(input any, rule ValidationRule) error {
	if len(rule.Enum) == 0 {
		return nil
	}
	str, ok := input.(string)
	if !ok {
		return fmt.Errorf("value must be a string to be checked against an enum")
	}
	for _, allowedValue := range rule.Enum {
		if str == allowedValue {
			return nil
		}
	}
	return fmt.Errorf("value '%s' is not in the allowed list: %v", str, rule.Enum)
}

func validateRegex(input any, rule ValidationRule) error {
	if rule.Regex == "" {
		return nil
	}
	re, err := compileRegex(rule.Regex)
	if err != nil {
		return fmt.Errorf("invalid regex pattern in config: %s", rule.Regex)
	}
	str, ok := input.(string)
	if !ok {
		return fmt.Errorf("value must be a string to be matched against a regex")
	}
	if !re.MatchString(str) {
		return fmt.Errorf("value '%s' does not match regex pattern '%s'", str, rule.Regex)
	}
	return nil
}

func compileRegex(pattern string) (*regexp.Regexp, error) {
	regexMu.Lock()
	defer regexMu.Unlock()
	if re, ok := regexCache[pattern]; ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	regexCache[pattern] = re
	return re, nil
}
