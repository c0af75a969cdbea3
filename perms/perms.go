// Package perms evaluates what a member may do. Roles form an ordered
// ladder where each role adds capabilities on top of everything below it;
// a member's effective capability set is the union of every rung at or
// below their role.
package perms

import "github.com/ExcursionClub/ExCSystem/models"

// Capability codenames the ledger and HTTP surface check against.
const (
	// Granted from Just Joined up
	CapViewStaffer       = "view_staffer"
	CapCheckAvailability = "check_availability_gear"

	// Granted from Member up
	CapIsActiveMember    = "is_active_member"
	CapRentGear          = "rent_gear"
	CapViewGear          = "view_gear"
	CapViewDepartment    = "view_department"
	CapViewCertification = "view_certification"
	CapViewTransaction   = "view_transaction"

	// Granted from Staff up
	CapAddGear               = "add_gear"
	CapChangeGear            = "change_gear"
	CapViewGeneralGear       = "view_general_gear"
	CapAuthorizeTransactions = "authorize_transactions"
	CapViewMember            = "view_member"
	CapViewAllTransactions   = "view_all_transactions"
	CapAddMember             = "add_member"
	CapChangeMember          = "change_member"
	CapViewRFIDChecks        = "view_memberrfidcheck"

	// Granted from Board up
	CapViewAllGear         = "view_all_gear"
	CapRemoveGear          = "remove_gear"
	CapChangeGearType      = "change_gear_type"
	CapChangeCertification = "change_certification"
	CapChangeDepartment    = "change_department"

	// Admin only
	CapDeleteGear   = "delete_gear"
	CapDeleteMember = "delete_member"
)

// roleOrder lists the roles in ascending power; roleGrants holds only
// what each rung adds. Expired deliberately adds nothing on top of Just
// Joined: an expired member may still walk in and look around, but
// is_active_member (and everything above) starts at Member.
var roleOrder = []string{
	models.RoleJustJoined,
	models.RoleExpired,
	models.RoleMember,
	models.RoleStaff,
	models.RoleBoard,
	models.RoleAdmin,
}

var roleGrants = map[string][]string{
	models.RoleJustJoined: {
		CapViewStaffer,
		CapCheckAvailability,
	},
	models.RoleExpired: {},
	models.RoleMember: {
		CapIsActiveMember,
		CapRentGear,
		CapViewGear,
		CapViewDepartment,
		CapViewCertification,
		CapViewTransaction,
	},
	models.RoleStaff: {
		CapAddGear,
		CapChangeGear,
		CapViewGeneralGear,
		CapAuthorizeTransactions,
		CapViewMember,
		CapViewAllTransactions,
		CapAddMember,
		CapChangeMember,
		CapViewRFIDChecks,
	},
	models.RoleBoard: {
		CapViewAllGear,
		CapRemoveGear,
		CapChangeGearType,
		CapChangeCertification,
		CapChangeDepartment,
	},
	models.RoleAdmin: {
		CapDeleteGear,
		CapDeleteMember,
	},
}

// Rank returns the position of a role on the ladder, or -1 for an
// unknown role (which therefore holds no capabilities at all).
func Rank(role string) int {
	for i, r := range roleOrder {
		if r == role {
			return i
		}
	}
	return -1
}

// EffectiveCapabilities is the union of the grants at or below role.
func EffectiveCapabilities(role string) map[string]bool {
	rank := Rank(role)
	caps := make(map[string]bool)
	for i := 0; i <= rank && i < len(roleOrder); i++ {
		for _, c := range roleGrants[roleOrder[i]] {
			caps[c] = true
		}
	}
	return caps
}

// HasCapability reports whether the member's role grants capability. Pure
// function of current data, no side effects.
func HasCapability(m *models.Member, capability string) bool {
	if m == nil {
		return false
	}
	return EffectiveCapabilities(m.Role)[capability]
}

// HasCertifications reports whether the member holds every certification
// in required.
func HasCertifications(m *models.Member, required []models.Certification) bool {
	if len(required) == 0 {
		return true
	}
	if m == nil {
		return false
	}
	held := make(map[uint]bool, len(m.Certifications))
	for _, c := range m.Certifications {
		held[c.ID] = true
	}
	for _, c := range required {
		if !held[c.ID] {
			return false
		}
	}
	return true
}

// MissingCertifications lists the required certifications the member does
// not hold, for error messages.
func MissingCertifications(m *models.Member, required []models.Certification) []models.Certification {
	held := make(map[uint]bool)
	if m != nil {
		for _, c := range m.Certifications {
			held[c.ID] = true
		}
	}
	var missing []models.Certification
	for _, c := range required {
		if !held[c.ID] {
			missing = append(missing, c)
		}
	}
	return missing
}
