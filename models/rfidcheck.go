package models

import "time"

// RFIDCheck records every tag scanned at the kiosk door and whether it
// admitted a member. Append-only audit data for the front desk.
type RFIDCheck struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	RFIDChecked string    `gorm:"column:rfid_checked;size:12;index;not null" json:"rfidChecked"`
	WasValid    bool      `gorm:"not null" json:"wasValid"`
	Message     string    `gorm:"size:100" json:"message"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (RFIDCheck) TableName() string { return "exc_rfid_checks" }
