package schemas

import (
	"math"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"google.golang.org/genai"
)

// Validate checks a decoded JSON value against the descriptor: every required key
// is present with the declared type, and every numeric-text field parses as a number.
func (d Descriptor) Validate(value any) error {
	if err := validateNode(d.Schema, value, "$"); err != nil {
		return err
	}
	for _, path := range d.NumericText {
		if err := checkNumericPath(value, strings.Split(path, "."), "$"); err != nil {
			return err
		}
	}
	return nil
}

func validateNode(schema *genai.Schema, value any, path string) error {
	if schema == nil {
		return nil
	}
	switch schema.Type {
	case genai.TypeObject:
		obj, ok := value.(map[string]any)
		if !ok {
			return errors.Newf("%s: expected object, got %T", path, value)
		}
		for _, key := range schema.Required {
			v, present := obj[key]
			if !present || v == nil {
				return errors.Newf("%s: missing required field %q", path, key)
			}
		}
		for key, prop := range schema.Properties {
			v, present := obj[key]
			if !present || v == nil {
				continue
			}
			if err := validateNode(prop, v, path+"."+key); err != nil {
				return err
			}
		}
	case genai.TypeArray:
		items, ok := value.([]any)
		if !ok {
			return errors.Newf("%s: expected array, got %T", path, value)
		}
		for i, item := range items {
			if err := validateNode(schema.Items, item, path+"["+strconv.Itoa(i)+"]"); err != nil {
				return err
			}
		}
	case genai.TypeString:
		s, ok := value.(string)
		if !ok {
			return errors.Newf("%s: expected string, got %T", path, value)
		}
		if len(schema.Enum) > 0 && !contains(schema.Enum, s) {
			return errors.Newf("%s: %q is not one of %v", path, s, schema.Enum)
		}
	case genai.TypeNumber, genai.TypeInteger:
		if _, ok := value.(float64); !ok {
			return errors.Newf("%s: expected number, got %T", path, value)
		}
	case genai.TypeBoolean:
		if _, ok := value.(bool); !ok {
			return errors.Newf("%s: expected boolean, got %T", path, value)
		}
	}
	return nil
}

func checkNumericPath(value any, segments []string, path string) error {
	if len(segments) == 0 {
		if value == nil {
			return nil
		}
		s, ok := value.(string)
		if !ok {
			return errors.Newf("%s: expected numeric text, got %T", path, value)
		}
		if _, err := ParseNumber(s); err != nil {
			return errors.Wrapf(err, "%s", path)
		}
		return nil
	}

	obj, ok := value.(map[string]any)
	if !ok {
		return nil
	}
	segment := segments[0]
	if key, isList := strings.CutSuffix(segment, "[]"); isList {
		items, _ := obj[key].([]any)
		for i, item := range items {
			if err := checkNumericPath(item, segments[1:], path+"."+key+"["+strconv.Itoa(i)+"]"); err != nil {
				return err
			}
		}
		return nil
	}
	v, present := obj[segment]
	if !present {
		return nil
	}
	return checkNumericPath(v, segments[1:], path+"."+segment)
}

// ParseNumber parses model-formatted numeric text such as "85", " 85.5 % " or "85/100".
// Anything that does not yield a finite number is rejected.
func ParseNumber(s string) (float64, error) {
	cleaned := strings.TrimSpace(s)
	if before, _, found := strings.Cut(cleaned, "/"); found {
		cleaned = strings.TrimSpace(before)
	}
	cleaned = strings.TrimSpace(strings.TrimSuffix(cleaned, "%"))
	if cleaned == "" {
		return 0, errors.Newf("empty numeric value %q", s)
	}
	n, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, errors.Newf("non-numeric value %q", s)
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, errors.Newf("non-finite value %q", s)
	}
	return n, nil
}

func contains(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}
