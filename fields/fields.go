// Package fields implements the typed attribute-bag system that lets a
// gear type declare its own data fields without schema changes. Each data
// kind knows how to serialize a raw input, extract the typed value back,
// and describe the value for display.
package fields

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ExcursionClub/ExCSystem/models"
)

// The closed set of data kinds a CustomDataField may use.
const (
	KindRFID    = "rfid"
	KindString  = "string"
	KindText    = "text"
	KindBoolean = "boolean"
	KindInteger = "integer"
	KindFloat   = "float"
	KindChoice  = "choice"
)

// Structural problems: a bag that does not match its type's field set, a
// stored choice code no longer in the option list, an unknown kind.
var ErrStructural = errors.New("attribute data does not match field definitions")

// ErrBadValue reports a raw input that fails its field's validation.
var ErrBadValue = errors.New("invalid value for field")

// Value is one serialized attribute: the kind tag, the canonical raw
// value, and any kind-specific parameters frozen at write time.
type Value struct {
	Kind   string            `json:"kind"`
	Raw    string            `json:"value"`
	Params map[string]string `json:"params,omitempty"`
}

// Bag maps field name -> serialized value. A gear's bag contains exactly
// the field names its type declares, no more and no less.
type Bag map[string]Value

const maxStringLen = 50

// Serialize validates raw against def and produces the stored value.
func Serialize(def models.CustomDataField, raw any) (Value, error) {
	s := canonical(raw)
	if s == "" {
		if def.Required {
			return Value{}, fmt.Errorf("%w %q: value is required", ErrBadValue, def.Name)
		}
		return Value{Kind: def.DataType, Raw: ""}, nil
	}

	switch def.DataType {
	case KindRFID:
		if len(s) != 10 || strings.Trim(s, "0123456789") != "" {
			return Value{}, fmt.Errorf("%w %q: %q is not a 10 digit tag id", ErrBadValue, def.Name, s)
		}
	case KindString:
		if len(s) > maxStringLen {
			return Value{}, fmt.Errorf("%w %q: longer than %d characters", ErrBadValue, def.Name, maxStringLen)
		}
	case KindText:
		// free text, anything goes
	case KindBoolean:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return Value{}, fmt.Errorf("%w %q: %q is not a boolean", ErrBadValue, def.Name, s)
		}
		s = strconv.FormatBool(b)
	case KindInteger:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("%w %q: %q is not an integer", ErrBadValue, def.Name, s)
		}
		s = strconv.FormatInt(n, 10)
	case KindFloat:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Value{}, fmt.Errorf("%w %q: %q is not a number", ErrBadValue, def.Name, s)
		}
		s = strconv.FormatFloat(f, 'g', -1, 64)
	case KindChoice:
		opts, err := Options(def)
		if err != nil {
			return Value{}, err
		}
		found := false
		for _, o := range opts {
			if o.Code == s {
				found = true
				break
			}
		}
		if !found {
			return Value{}, fmt.Errorf("%w %q: %q is not one of the choices", ErrBadValue, def.Name, s)
		}
	default:
		return Value{}, fmt.Errorf("%w: unknown data kind %q", ErrStructural, def.DataType)
	}

	v := Value{Kind: def.DataType, Raw: s}
	if def.Suffix != "" {
		v.Params = map[string]string{"suffix": def.Suffix}
	}
	return v, nil
}

// Extract returns the typed value stored in v: string for rfid/string/
// text/choice, bool, int64 or float64 for the rest.
func Extract(v Value) (any, error) {
	switch v.Kind {
	case KindRFID, KindString, KindText, KindChoice:
		return v.Raw, nil
	case KindBoolean:
		if v.Raw == "" {
			return false, nil
		}
		return strconv.ParseBool(v.Raw)
	case KindInteger:
		if v.Raw == "" {
			return int64(0), nil
		}
		return strconv.ParseInt(v.Raw, 10, 64)
	case KindFloat:
		if v.Raw == "" {
			return float64(0), nil
		}
		return strconv.ParseFloat(v.Raw, 64)
	default:
		return nil, fmt.Errorf("%w: unknown data kind %q", ErrStructural, v.Kind)
	}
}

// Describe renders v for humans. Choice values are mapped back to their
// label through def's current option list; a stored code that is no
// longer an option is schema drift and reported as a structural error.
func Describe(def models.CustomDataField, v Value) (string, error) {
	if v.Raw == "" {
		return "", nil
	}
	switch v.Kind {
	case KindChoice:
		opts, err := Options(def)
		if err != nil {
			return "", err
		}
		for _, o := range opts {
			if o.Code == v.Raw {
				return o.Label, nil
			}
		}
		return "", fmt.Errorf("%w: stored code %q is not an option of %q", ErrStructural, v.Raw, def.Name)
	case KindBoolean:
		if v.Raw == "true" {
			return def.Label, nil
		}
		return "", nil
	case KindInteger, KindFloat:
		if sfx := v.Params["suffix"]; sfx != "" {
			return v.Raw + sfx, nil
		}
		return v.Raw, nil
	default:
		return v.Raw, nil
	}
}

// Options decodes a choice field's option list.
func Options(def models.CustomDataField) ([]models.ChoiceOption, error) {
	if len(def.Choices) == 0 {
		return nil, fmt.Errorf("%w: choice field %q has no options", ErrStructural, def.Name)
	}
	var opts []models.ChoiceOption
	if err := json.Unmarshal(def.Choices, &opts); err != nil {
		return nil, fmt.Errorf("%w: bad option list on %q: %v", ErrStructural, def.Name, err)
	}
	return opts, nil
}

func canonical(raw any) string {
	switch t := raw.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		// json numbers arrive as float64; keep integers clean
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'g', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}
