package models

const CertificationTable = "exc_certifications"

// Certification a member must hold before renting certain gear, e.g.
// "Kayaking" or "Mountaineering".
type Certification struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	Title        string `gorm:"size:140;uniqueIndex;not null" json:"title"`
	Requirements string `gorm:"type:text" json:"requirements"`
}

func (Certification) TableName() string { return CertificationTable }
