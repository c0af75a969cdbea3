package fields

import (
	"encoding/json"
	"testing"

	"github.com/ExcursionClub/ExCSystem/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func choiceField(name string, opts ...models.ChoiceOption) models.CustomDataField {
	b, _ := json.Marshal(opts)
	return models.CustomDataField{
		Name: name, DataType: KindChoice, Label: name, Required: true,
		Choices: b,
	}
}

func TestSerializeValidation(t *testing.T) {
	cases := []struct {
		name string
		def  models.CustomDataField
		raw  any
		want string
		bad  bool
	}{
		{"rfid ok", models.CustomDataField{Name: "tag", DataType: KindRFID}, "1234567890", "1234567890", false},
		{"rfid short", models.CustomDataField{Name: "tag", DataType: KindRFID}, "12345", "", true},
		{"rfid letters", models.CustomDataField{Name: "tag", DataType: KindRFID}, "12345abcde", "", true},
		{"string trimmed", models.CustomDataField{Name: "s", DataType: KindString}, "  blue  ", "blue", false},
		{"bool canonical", models.CustomDataField{Name: "b", DataType: KindBoolean}, "True", "true", false},
		{"bool native", models.CustomDataField{Name: "b", DataType: KindBoolean}, true, "true", false},
		{"bool garbage", models.CustomDataField{Name: "b", DataType: KindBoolean}, "yep", "", true},
		{"int from json number", models.CustomDataField{Name: "n", DataType: KindInteger}, float64(4), "4", false},
		{"int garbage", models.CustomDataField{Name: "n", DataType: KindInteger}, "4.5", "", true},
		{"float ok", models.CustomDataField{Name: "f", DataType: KindFloat}, "2.5", "2.5", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v, err := Serialize(tc.def, tc.raw)
			if tc.bad {
				assert.ErrorIs(t, err, ErrBadValue)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, v.Raw)
			assert.Equal(t, tc.def.DataType, v.Kind)
		})
	}
}

func TestExtractRoundTrip(t *testing.T) {
	cases := []struct {
		def  models.CustomDataField
		raw  any
		want any
	}{
		{models.CustomDataField{Name: "tag", DataType: KindRFID}, "1234567890", "1234567890"},
		{models.CustomDataField{Name: "s", DataType: KindString}, "blue", "blue"},
		{models.CustomDataField{Name: "t", DataType: KindText}, "long form", "long form"},
		{models.CustomDataField{Name: "b", DataType: KindBoolean}, true, true},
		{models.CustomDataField{Name: "n", DataType: KindInteger}, 42, int64(42)},
		{models.CustomDataField{Name: "f", DataType: KindFloat}, 2.5, 2.5},
	}
	for _, tc := range cases {
		v, err := Serialize(tc.def, tc.raw)
		require.NoError(t, err, tc.def.Name)
		got, err := Extract(v)
		require.NoError(t, err, tc.def.Name)
		assert.Equal(t, tc.want, got, tc.def.Name)
	}
}

func TestSerializeRequired(t *testing.T) {
	def := models.CustomDataField{Name: "size", DataType: KindString, Required: true}
	_, err := Serialize(def, "")
	assert.ErrorIs(t, err, ErrBadValue)

	def.Required = false
	v, err := Serialize(def, nil)
	require.NoError(t, err)
	assert.Equal(t, "", v.Raw)
}

func TestChoiceRoundTrip(t *testing.T) {
	def := choiceField("size", models.ChoiceOption{Code: "S", Label: "Small"}, models.ChoiceOption{Code: "L", Label: "Large"})

	v, err := Serialize(def, "L")
	require.NoError(t, err)
	assert.Equal(t, "L", v.Raw)

	desc, err := Describe(def, v)
	require.NoError(t, err)
	assert.Equal(t, "Large", desc)

	_, err = Serialize(def, "XL")
	assert.ErrorIs(t, err, ErrBadValue)
}

func TestChoiceDriftIsStructural(t *testing.T) {
	def := choiceField("size", models.ChoiceOption{Code: "S", Label: "Small"})
	// a value stored before "L" was dropped from the options
	v := Value{Kind: KindChoice, Raw: "L"}
	_, err := Describe(def, v)
	assert.ErrorIs(t, err, ErrStructural)
}

func TestDescribeSuffixAndBoolean(t *testing.T) {
	length := models.CustomDataField{Name: "length", DataType: KindFloat, Label: "Length", Suffix: "cm"}
	v, err := Serialize(length, "172.5")
	require.NoError(t, err)
	desc, err := Describe(length, v)
	require.NoError(t, err)
	assert.Equal(t, "172.5cm", desc)

	warm := models.CustomDataField{Name: "warm", DataType: KindBoolean, Label: "Winter Rated"}
	v, err = Serialize(warm, true)
	require.NoError(t, err)
	desc, err = Describe(warm, v)
	require.NoError(t, err)
	assert.Equal(t, "Winter Rated", desc)

	v, err = Serialize(warm, false)
	require.NoError(t, err)
	desc, err = Describe(warm, v)
	require.NoError(t, err)
	assert.Equal(t, "", desc)
}

func tentFields() []models.CustomDataField {
	return []models.CustomDataField{
		{Name: "rfid", DataType: KindRFID, Label: "RFID", Position: 0, Required: true},
		{Name: "brand", DataType: KindString, Label: "Brand", Position: 1, Required: true},
		{Name: "capacity", DataType: KindInteger, Label: "Capacity", Position: 2, Required: true, Suffix: " person"},
	}
}

func TestBuildBagEnforcesFieldSet(t *testing.T) {
	defs := tentFields()

	_, err := BuildBag(defs, map[string]any{"rfid": "1234567890", "brand": "Kelty"})
	assert.ErrorIs(t, err, ErrStructural, "missing required field")

	_, err = BuildBag(defs, map[string]any{
		"rfid": "1234567890", "brand": "Kelty", "capacity": 4, "color": "red",
	})
	assert.ErrorIs(t, err, ErrStructural, "undeclared field")

	bag, err := BuildBag(defs, map[string]any{"rfid": "1234567890", "brand": "Kelty", "capacity": 4})
	require.NoError(t, err)
	assert.Len(t, bag, 3)
}

func TestDisplayNameSkipsTagAndFollowsPosition(t *testing.T) {
	defs := tentFields()
	bag, err := BuildBag(defs, map[string]any{"rfid": "1234567890", "brand": "Kelty", "capacity": 4})
	require.NoError(t, err)

	name, err := DisplayName("Tent", defs, bag)
	require.NoError(t, err)
	assert.Equal(t, "Tent Kelty 4 person", name)
}

func TestEncodeDecodeBag(t *testing.T) {
	defs := tentFields()
	bag, err := BuildBag(defs, map[string]any{"rfid": "1234567890", "brand": "Kelty", "capacity": 4})
	require.NoError(t, err)

	data, err := EncodeBag(bag)
	require.NoError(t, err)
	back, err := DecodeBag(data)
	require.NoError(t, err)
	assert.Equal(t, bag, back)

	_, err = DecodeBag([]byte("{not json"))
	assert.ErrorIs(t, err, ErrStructural)
}

func TestGetHasNoDynamicFallback(t *testing.T) {
	defs := tentFields()
	bag, err := BuildBag(defs, map[string]any{"rfid": "1234567890", "brand": "Kelty", "capacity": 4})
	require.NoError(t, err)

	v, err := Get(bag, "brand")
	require.NoError(t, err)
	assert.Equal(t, "Kelty", v.Raw)

	_, err = Get(bag, "weight")
	assert.ErrorIs(t, err, ErrStructural)
}

func TestDiffBags(t *testing.T) {
	defs := tentFields()
	before, err := BuildBag(defs, map[string]any{"rfid": "1234567890", "brand": "Kelty", "capacity": 2})
	require.NoError(t, err)
	after, err := BuildBag(defs, map[string]any{"rfid": "1234567890", "brand": "REI", "capacity": 4})
	require.NoError(t, err)

	lines, err := DiffBags(defs, before, after)
	require.NoError(t, err)
	assert.Equal(t, []string{"Brand: Kelty -> REI", "Capacity: 2 person -> 4 person"}, lines)

	lines, err = DiffBags(defs, before, before)
	require.NoError(t, err)
	assert.Empty(t, lines)
}
