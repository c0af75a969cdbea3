package models

import "gorm.io/datatypes"

const (
	GearTypeTable        = "exc_gear_types"
	CustomDataFieldTable = "exc_custom_data_fields"
)

// GearType classifies gear ("Tent", "Crash Pad") and declares the typed
// data fields every piece of that type must carry. Field definitions are
// append-only once gear of the type exists: removing or retyping one would
// orphan the serialized data of existing gear.
type GearType struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Name         string     `gorm:"size:50;uniqueIndex;not null" json:"name"`
	DepartmentID uint       `gorm:"index;not null" json:"departmentId"`
	Department   Department `json:"department"`

	// Certifications a member must hold to rent gear of this type.
	RequiredCertifications []Certification `gorm:"many2many:exc_geartype_certifications" json:"requiredCertifications"`

	// Declaration order (Position) drives display-name synthesis.
	DataFields []CustomDataField `gorm:"foreignKey:GearTypeID" json:"dataFields"`

	CreatedAt int64 `gorm:"autoCreateTime" json:"-"`
}

func (GearType) TableName() string { return GearTypeTable }

// CustomDataField is the metadata for one dynamic attribute of a gear
// type: its name, data kind and validation/display parameters.
type CustomDataField struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	GearTypeID uint   `gorm:"index:idx_geartype_field,unique;not null" json:"gearTypeId"`
	Name       string `gorm:"index:idx_geartype_field,unique;size:50;not null" json:"name"`
	Position   int    `gorm:"not null" json:"position"`

	// One of the closed kind set understood by the fields package:
	// rfid, string, text, boolean, integer, float, choice.
	DataType string `gorm:"size:10;not null" json:"dataType"`

	Label    string `gorm:"size:50;not null" json:"label"`
	HelpText string `gorm:"size:255" json:"helpText"`
	Required bool   `gorm:"not null;default:false" json:"required"`
	// Unit suffix appended when displaying numeric values, e.g. "cm".
	Suffix string `gorm:"size:10" json:"suffix,omitempty"`

	// For choice fields only: ordered [{"code": "...", "label": "..."}].
	Choices datatypes.JSON `json:"choices,omitempty"`
}

func (CustomDataField) TableName() string { return CustomDataFieldTable }

// ChoiceOption is one entry of a choice field's option list.
type ChoiceOption struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}
