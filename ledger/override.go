package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ExcursionClub/ExCSystem/fields"
	"github.com/ExcursionClub/ExCSystem/models"
	"github.com/ExcursionClub/ExCSystem/perms"

	"gorm.io/gorm"
)

// ChangeSet is the arbitrary field-level edit an Override applies. Nil
// slices/maps mean "unchanged"; ClearDueDate distinguishes "set to
// nothing" from "leave alone".
type ChangeSet struct {
	DueDate      *time.Time
	ClearDueDate bool
	// Replaces the gear-specific certification set when non-nil.
	RequiredCertIDs []uint
	// Attribute-bag edits, raw values keyed by field name.
	Attributes map[string]any
}

func (c ChangeSet) empty() bool {
	return c.DueDate == nil && !c.ClearDueDate && c.RequiredCertIDs == nil && len(c.Attributes) == 0
}

// Override applies arbitrary field changes under a change capability and
// writes an Override entry enumerating every change as "field: old ->
// new". Attribute-bag fields are diffed per sub-field so the audit trail
// shows "capacity: 2 -> 4", not a JSON blob.
func (l *Ledger) Override(ctx context.Context, authorizerRFID, gearRFID string, changes ChangeSet) (*Result, error) {
	if changes.empty() {
		return nil, fmt.Errorf("%w: override with no changes", ErrStructuralMismatch)
	}

	var res *Result
	err := l.gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := authorize(tx, authorizerRFID, perms.CapChangeGear); err != nil {
			return err
		}
		gear, err := lockGearTx(tx, gearRFID)
		if err != nil {
			return err
		}
		if !gear.IsExistent() {
			return fmt.Errorf("%w: gear %s is removed", ErrGearUnavailable, gearRFID)
		}

		var lines []string
		updates := map[string]any{}

		if changes.DueDate != nil || changes.ClearDueDate {
			oldS, newS := fmtDate(gear.DueDate), "(none)"
			if changes.DueDate != nil {
				d := changes.DueDate.UTC()
				updates["due_date"] = d
				newS = fmtDate(&d)
			} else {
				updates["due_date"] = nil
			}
			if oldS != newS {
				lines = append(lines, fmt.Sprintf("due date: %s -> %s", oldS, newS))
			}
		}

		if changes.RequiredCertIDs != nil {
			var certs []models.Certification
			if len(changes.RequiredCertIDs) > 0 {
				if err := tx.Find(&certs, changes.RequiredCertIDs).Error; err != nil {
					return err
				}
				if len(certs) != len(changes.RequiredCertIDs) {
					return fmt.Errorf("%w: certification", ErrNotFound)
				}
			}
			oldS, newS := certTitles(gear.RequiredCertifications), certTitles(certs)
			if len(gear.RequiredCertifications) == 0 {
				oldS = "(none)"
			}
			if len(certs) == 0 {
				newS = "(none)"
			}
			if oldS != newS {
				lines = append(lines, fmt.Sprintf("required certifications: %s -> %s", oldS, newS))
			}
			if err := tx.Model(gear).Association("RequiredCertifications").Replace(certs); err != nil {
				return err
			}
		}

		if len(changes.Attributes) > 0 {
			defs := gear.GearType.DataFields
			oldBag, err := fields.DecodeBag(gear.GearData)
			if err != nil {
				return wrapStructural(err)
			}

			// Rebuild the whole bag from the merged raw values so the
			// result matches the type's current field set even after an
			// append-only schema change added fields this gear predates.
			merged := make(map[string]any, len(defs))
			for _, def := range defs {
				if v, ok := oldBag[def.Name]; ok {
					merged[def.Name] = v.Raw
				}
			}
			for name, raw := range changes.Attributes {
				merged[name] = raw
			}
			newBag, err := fields.BuildBag(defs, merged)
			if err != nil {
				return wrapStructural(err)
			}
			diff, err := fields.DiffBags(defs, oldBag, newBag)
			if err != nil {
				return wrapStructural(err)
			}
			lines = append(lines, diff...)

			data, err := fields.EncodeBag(newBag)
			if err != nil {
				return err
			}
			updates["gear_data"] = data
		}

		if len(updates) > 0 {
			if err := tx.Model(&models.Gear{}).Where("id = ?", gear.ID).Updates(updates).Error; err != nil {
				return err
			}
		}
		if len(lines) == 0 {
			lines = []string{"no effective changes"}
		}

		entry, err := appendEntry(tx, models.TxOverride, gear.ID, gear.CheckedOutToID, authorizerRFID,
			strings.Join(lines, "; "))
		if err != nil {
			return err
		}
		g, err := reloadGear(tx, gear.ID)
		if err != nil {
			return err
		}
		res = &Result{Transaction: entry, Gear: g}
		return nil
	})
	if err != nil && errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return res, err
}

func fmtDate(t *time.Time) string {
	if t == nil {
		return "(none)"
	}
	return t.Format("2006-01-02")
}
