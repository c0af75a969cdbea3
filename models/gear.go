package models

import (
	"time"

	"gorm.io/datatypes"
)

const GearTable = "exc_gear"

// GearStatus is the lifecycle state of a piece of gear. Values are
// ordered so that "status <= Missing" selects everything still in
// circulation.
type GearStatus int

const (
	StatusInStock GearStatus = iota
	StatusCheckedOut
	StatusBroken
	StatusMissing
	StatusDormant
	StatusRemoved
)

var statusNames = map[GearStatus]string{
	StatusInStock:    "In Stock",
	StatusCheckedOut: "Checked Out",
	StatusBroken:     "Broken",
	StatusMissing:    "Missing",
	StatusDormant:    "Dormant",
	StatusRemoved:    "Removed",
}

func (s GearStatus) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return "Unknown"
}

// Gear is a single physical piece of rental equipment. It is a pure state
// holder: every mutation goes through the transaction ledger, never
// through direct writes, so that state and history cannot drift apart.
type Gear struct {
	ID string `gorm:"type:uuid;primaryKey" json:"id"`
	// Tag id from the physical RFID tag. Shares a namespace with member tags.
	// Column named explicitly: the default namer would split it as rf_id.
	RFID string `gorm:"column:rfid;size:10;uniqueIndex;not null" json:"rfid"`

	GearTypeID uint       `gorm:"index;not null" json:"gearTypeId"`
	GearType   GearType   `json:"gearType"`
	Status     GearStatus `gorm:"not null;default:0" json:"status"`

	CheckedOutToID *string    `gorm:"type:uuid;index" json:"checkedOutToId,omitempty"`
	CheckedOutTo   *Member    `json:"checkedOutTo,omitempty"`
	DueDate        *time.Time `gorm:"index" json:"dueDate,omitempty"`

	// Gear-specific certifications, on top of the gear type's own.
	RequiredCertifications []Certification `gorm:"many2many:exc_gear_certifications" json:"requiredCertifications"`

	// Attribute bag: field name -> serialized typed value, validated
	// against the gear type's data fields (see the fields package).
	GearData datatypes.JSON `json:"gearData"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Gear) TableName() string { return GearTable }

func (g *Gear) IsAvailable() bool { return g.Status == StatusInStock }
func (g *Gear) IsRentable() bool  { return g.Status == StatusInStock }
func (g *Gear) IsRentedOut() bool { return g.Status == StatusCheckedOut }
func (g *Gear) IsActive() bool {
	return g.Status == StatusInStock || g.Status == StatusCheckedOut
}
func (g *Gear) IsExistent() bool { return g.Status != StatusRemoved }

// AllRequiredCertifications is the union of the type's certifications and
// the gear-specific ones.
func (g *Gear) AllRequiredCertifications() []Certification {
	seen := make(map[uint]bool, len(g.RequiredCertifications))
	var all []Certification
	for _, c := range g.GearType.RequiredCertifications {
		if !seen[c.ID] {
			seen[c.ID] = true
			all = append(all, c)
		}
	}
	for _, c := range g.RequiredCertifications {
		if !seen[c.ID] {
			seen[c.ID] = true
			all = append(all, c)
		}
	}
	return all
}
