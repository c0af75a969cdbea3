package models

import "gorm.io/datatypes"

const DepartmentTable = "exc_departments"

// Department groups the gear for one category of trips ("Camping",
// "Kayaking", ...). Its senior trip leaders are notified when gear in the
// department needs attention.
type Department struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Name        string         `gorm:"size:20;uniqueIndex;not null" json:"name"`
	Description string         `gorm:"type:text" json:"description"`
	STLEmails   datatypes.JSON `gorm:"column:stl_emails" json:"stlEmails"`
}

func (Department) TableName() string { return DepartmentTable }
