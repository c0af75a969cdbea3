package fields

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/ExcursionClub/ExCSystem/models"
	"gorm.io/datatypes"
)

// BuildBag serializes values into a bag, enforcing that the provided
// names are exactly the field names defs declares.
func BuildBag(defs []models.CustomDataField, values map[string]any) (Bag, error) {
	bag := make(Bag, len(defs))
	for _, def := range defs {
		raw, ok := values[def.Name]
		if !ok {
			if def.Required {
				return nil, fmt.Errorf("%w: missing field %q", ErrStructural, def.Name)
			}
			raw = ""
		}
		v, err := Serialize(def, raw)
		if err != nil {
			return nil, err
		}
		bag[def.Name] = v
	}
	for name := range values {
		if _, ok := bag[name]; !ok {
			return nil, fmt.Errorf("%w: %q is not a field of this gear type", ErrStructural, name)
		}
	}
	return bag, nil
}

func EncodeBag(bag Bag) (datatypes.JSON, error) {
	b, err := json.Marshal(bag)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

func DecodeBag(data datatypes.JSON) (Bag, error) {
	if len(data) == 0 {
		return Bag{}, nil
	}
	var bag Bag
	if err := json.Unmarshal(data, &bag); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStructural, err)
	}
	return bag, nil
}

// Get returns one attribute of the bag by field name. There is no dynamic
// attribute fallback: an absent name is an explicit failure.
func Get(bag Bag, name string) (Value, error) {
	v, ok := bag[name]
	if !ok {
		return Value{}, fmt.Errorf("%w: no attribute %q", ErrStructural, name)
	}
	return v, nil
}

// DisplayName synthesizes the human name of a piece of gear: the type
// name followed by the description of every non-identifier field, in
// declaration order. Gear has no fixed name column of its own.
func DisplayName(typeName string, defs []models.CustomDataField, bag Bag) (string, error) {
	ordered := make([]models.CustomDataField, len(defs))
	copy(ordered, defs)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Position < ordered[j].Position })

	parts := []string{typeName}
	for _, def := range ordered {
		if def.DataType == KindRFID {
			continue
		}
		v, ok := bag[def.Name]
		if !ok {
			continue
		}
		desc, err := Describe(def, v)
		if err != nil {
			return "", err
		}
		if desc != "" {
			parts = append(parts, desc)
		}
	}
	return strings.Join(parts, " "), nil
}

// DiffBags reports the per-field changes between two bags as
// "label: old -> new" lines, so audit readers see semantic changes
// rather than a JSON diff. Fields absent from either bag are diffed
// against the empty value.
func DiffBags(defs []models.CustomDataField, before, after Bag) ([]string, error) {
	ordered := make([]models.CustomDataField, len(defs))
	copy(ordered, defs)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Position < ordered[j].Position })

	var lines []string
	for _, def := range ordered {
		ov, ok := before[def.Name]
		if !ok {
			ov = Value{Kind: def.DataType}
		}
		nv, ok := after[def.Name]
		if !ok {
			nv = Value{Kind: def.DataType}
		}
		if ov.Raw == nv.Raw {
			continue
		}
		od, err := Describe(def, ov)
		if err != nil {
			// drifted old values still need to show up in the audit trail
			od = ov.Raw
		}
		nd, err := Describe(def, nv)
		if err != nil {
			return nil, err
		}
		lines = append(lines, fmt.Sprintf("%s: %s -> %s", def.Label, orEmpty(od), orEmpty(nd)))
	}
	return lines, nil
}

func orEmpty(s string) string {
	if s == "" {
		return "(empty)"
	}
	return s
}
