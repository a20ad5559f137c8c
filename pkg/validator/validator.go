package validator

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Kind is the JSON type a request field is expected to carry.
type Kind int

const (
	KindString Kind = iota
	KindNumber
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "a number"
	case KindBool:
		return "a boolean"
	default:
		return "a string"
	}
}

var ErrNotObject = errors.New("request body must be a JSON object")

// Object decodes raw into a JSON object, rejecting arrays, scalars and empty bodies.
func Object(raw []byte) (map[string]interface{}, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, ErrNotObject
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var body map[string]interface{}
	if err := dec.Decode(&body); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return body, nil
}

// Required reports each named field that is absent, null or a blank string.
func Required(body map[string]interface{}, fields ...string) []string {
	var details []string
	for _, f := range fields {
		v, ok := body[f]
		if !ok || v == nil {
			details = append(details, fmt.Sprintf("%s is required", f))
			continue
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			details = append(details, fmt.Sprintf("%s is required", f))
		}
	}
	return details
}

// Types reports each present, non-null field whose JSON type differs from kinds.
// Output is ordered by field name.
func Types(body map[string]interface{}, kinds map[string]Kind) []string {
	names := make([]string, 0, len(kinds))
	for name := range kinds {
		names = append(names, name)
	}
	sort.Strings(names)

	var details []string
	for _, name := range names {
		v, ok := body[name]
		if !ok || v == nil {
			continue
		}
		if !matches(v, kinds[name]) {
			details = append(details, fmt.Sprintf("%s must be %s", name, kinds[name]))
		}
	}
	return details
}

func matches(v interface{}, kind Kind) bool {
	switch kind {
	case KindNumber:
		switch n := v.(type) {
		case json.Number:
			f, err := n.Float64()
			return err == nil && !math.IsInf(f, 0) && !math.IsNaN(f)
		case float64:
			return true
		}
		return false
	case KindBool:
		_, ok := v.(bool)
		return ok
	default:
		_, ok := v.(string)
		return ok
	}
}

// ID extracts a positive integer identifier given as a JSON number or numeric string.
func ID(v interface{}) (int64, bool) {
	switch id := v.(type) {
	case json.Number:
		n, err := id.Int64()
		return n, err == nil && n > 0
	case float64:
		n := int64(id)
		return n, float64(n) == id && n > 0
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
		return n, err == nil && n > 0
	}
	return 0, false
}

// Decode re-encodes a validated body into a typed request struct.
func Decode(body map[string]interface{}, dst interface{}) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

// Validator checks lengths, ranges and formats declared in `validate` tags.
type Validator struct {
	v *validator.Validate
}

func New() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return &Validator{v: v}
}

// Struct returns one message per failed rule, or nil when s is valid.
func (v *Validator) Struct(s interface{}) []string {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	details := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, message(fe))
	}
	return details
}

func message(fe validator.FieldError) string {
	field := fe.Field()
	isString := fe.Kind() == reflect.String
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		if isString {
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		if isString {
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	case "lt":
		return fmt.Sprintf("%s must be less than %s", field, fe.Param())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
