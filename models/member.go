package models

import "time"

const MemberTable = "exc_members"

// Role names in ascending order of power. Each role also carries every
// capability of the roles below it (see the perms package).
const (
	RoleJustJoined = "Just Joined"
	RoleExpired    = "Expired"
	RoleMember     = "Member"
	RoleStaff      = "Staff"
	RoleBoard      = "Board"
	RoleAdmin      = "Admin"
)

// SystemAuthorizer is the reserved identity used when the system itself
// (an expiry sweep, the overdue job) authorizes a transaction. It is not
// a member row; the ledger treats it as holding every capability.
const SystemAuthorizer = "System"

type Member struct {
	ID string `gorm:"type:uuid;primaryKey" json:"id"`
	// Tag id from the physical RFID card. Shares a namespace with gear tags.
	// Column named explicitly: the default namer would split it as rf_id.
	RFID string `gorm:"column:rfid;size:10;uniqueIndex;not null" json:"rfid"`

	Email     string `gorm:"uniqueIndex;size:255;not null" json:"email"`
	FirstName string `gorm:"size:50" json:"firstName"`
	LastName  string `gorm:"size:50" json:"lastName"`

	Role        string    `gorm:"size:30;not null;default:'Just Joined'" json:"role"`
	DateJoined  time.Time `json:"dateJoined"`
	DateExpires time.Time `gorm:"index;not null" json:"dateExpires"`

	Certifications []Certification `gorm:"many2many:exc_member_certifications" json:"certifications"`

	LastSeenAt *time.Time `gorm:"index" json:"lastSeenAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

func (Member) TableName() string { return MemberTable }

func (m *Member) HasName() bool { return m.FirstName != "" && m.LastName != "" }

// FullName returns the member's name, or a placeholder until they finish
// signing up.
func (m *Member) FullName() string {
	if m.HasName() {
		return m.FirstName + " " + m.LastName
	}
	return "New Member"
}

func (m *Member) IsStaffer() bool {
	return m.Role == RoleStaff || m.Role == RoleBoard || m.Role == RoleAdmin
}
