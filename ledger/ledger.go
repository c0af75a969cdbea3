// Package ledger is the only writer of gear state. Every operation runs
// authorization, then domain preconditions, then the mutation together
// with exactly one appended Transaction, all inside a single database
// transaction: state and history cannot drift apart.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ExcursionClub/ExCSystem/db"
	"github.com/ExcursionClub/ExCSystem/fields"
	"github.com/ExcursionClub/ExCSystem/models"
	"github.com/ExcursionClub/ExCSystem/notify"
	"github.com/ExcursionClub/ExCSystem/perms"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultDormantAfter = 30 * 24 * time.Hour

type Options struct {
	// How long gear may stay Missing before FlagDormant declares it lost.
	DormantAfter time.Duration
}

type Ledger struct {
	gdb          *gorm.DB
	notifier     notify.Notifier
	log          *zap.SugaredLogger
	dormantAfter time.Duration
}

func New(gdb *gorm.DB, notifier notify.Notifier, log *zap.SugaredLogger, opts Options) *Ledger {
	if opts.DormantAfter <= 0 {
		opts.DormantAfter = defaultDormantAfter
	}
	return &Ledger{gdb: gdb, notifier: notifier, log: log, dormantAfter: opts.DormantAfter}
}

// Result is what every successful operation hands back: the appended
// ledger entry, the gear as mutated, and an optional warning from a
// best-effort side effect (currently only Remove's notification).
type Result struct {
	Transaction *models.Transaction `json:"transaction"`
	Gear        *models.Gear        `json:"gear"`
	Warning     string              `json:"warning,omitempty"`
}

// --- shared plumbing ---

// forUpdate takes the per-gear row lock. sqlite (tests) has no row
// locks; the guarded status updates below still decide any race.
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

func findMemberTx(tx *gorm.DB, rfid string) (*models.Member, error) {
	var m models.Member
	err := tx.Preload("Certifications").First(&m, "rfid = ?", rfid).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: member %s", ErrNotFound, rfid)
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func lockGearTx(tx *gorm.DB, rfid string) (*models.Gear, error) {
	var g models.Gear
	err := forUpdate(tx).
		Preload("GearType").
		Preload("GearType.DataFields").
		Preload("GearType.RequiredCertifications").
		Preload("RequiredCertifications").
		First(&g, "rfid = ?", rfid).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: gear %s", ErrNotFound, rfid)
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// authorize resolves the acting member and checks the capability the
// operation needs. The reserved System identity passes every check; it
// is provisioned with all capabilities by definition. The check runs
// before any write.
func authorize(tx *gorm.DB, authorizerRFID, capability string) (*models.Member, error) {
	if authorizerRFID == models.SystemAuthorizer {
		return nil, nil
	}
	m, err := findMemberTx(tx, authorizerRFID)
	if err != nil {
		return nil, err
	}
	if !perms.HasCapability(m, capability) {
		return nil, fmt.Errorf("%w: %s requires %s", ErrNotAuthorized, authorizerRFID, capability)
	}
	return m, nil
}

func appendEntry(tx *gorm.DB, kind models.TxKind, gearID string, memberID *string, authorizer, comment string) (*models.Transaction, error) {
	t := &models.Transaction{
		ID:         uuid.NewString(),
		Timestamp:  time.Now().UTC(),
		Type:       kind,
		GearID:     gearID,
		MemberID:   memberID,
		Authorizer: authorizer,
		Comments:   comment,
	}
	if err := tx.Create(t).Error; err != nil {
		return nil, err
	}
	return t, nil
}

func reloadGear(tx *gorm.DB, id string) (*models.Gear, error) {
	var g models.Gear
	err := tx.
		Preload("GearType").
		Preload("GearType.DataFields").
		Preload("GearType.RequiredCertifications").
		Preload("RequiredCertifications").
		Preload("CheckedOutTo").
		First(&g, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func wrapStructural(err error) error {
	if errors.Is(err, fields.ErrStructural) || errors.Is(err, fields.ErrBadValue) {
		return fmt.Errorf("%w: %v", ErrStructuralMismatch, err)
	}
	return err
}

// --- operations ---

// CreateGear brings a new piece of gear into the system: it validates
// the tag, builds the attribute bag against the gear type's fields, and
// writes the gear row together with its Create entry. Any failure rolls
// the whole unit back; no orphan gear survives a failed Create.
func (l *Ledger) CreateGear(
	ctx context.Context,
	authorizerRFID, gearRFID string,
	gearTypeID uint,
	requiredCertIDs []uint,
	values map[string]any,
) (*Result, error) {
	var res *Result
	err := l.gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		auth, err := authorize(tx, authorizerRFID, perms.CapAddGear)
		if err != nil {
			return err
		}
		if !validTag(gearRFID) {
			return fmt.Errorf("%w: tag id %q must be 10 digits", ErrStructuralMismatch, gearRFID)
		}
		taken, err := db.TagIDExistsTx(tx, gearRFID)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("%w: %s", ErrTagCollision, gearRFID)
		}

		var gt models.GearType
		err = tx.
			Preload("Department").
			Preload("RequiredCertifications").
			Preload("DataFields", func(q *gorm.DB) *gorm.DB { return q.Order("position ASC") }).
			First(&gt, gearTypeID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: gear type %d", ErrNotFound, gearTypeID)
		}
		if err != nil {
			return err
		}

		bag, err := fields.BuildBag(gt.DataFields, values)
		if err != nil {
			return wrapStructural(err)
		}
		data, err := fields.EncodeBag(bag)
		if err != nil {
			return err
		}

		var certs []models.Certification
		if len(requiredCertIDs) > 0 {
			if err := tx.Find(&certs, requiredCertIDs).Error; err != nil {
				return err
			}
			if len(certs) != len(requiredCertIDs) {
				return fmt.Errorf("%w: certification", ErrNotFound)
			}
		}

		g := &models.Gear{
			ID:                     uuid.NewString(),
			RFID:                   gearRFID,
			GearTypeID:             gt.ID,
			Status:                 models.StatusInStock,
			RequiredCertifications: certs,
			GearData:               data,
		}
		if err := tx.Create(g).Error; err != nil {
			return err
		}

		name, err := fields.DisplayName(gt.Name, gt.DataFields, bag)
		if err != nil {
			return wrapStructural(err)
		}
		entry, err := appendEntry(tx, models.TxCreate, g.ID, nil, authorizerName(auth, authorizerRFID),
			fmt.Sprintf("created %s", name))
		if err != nil {
			return err
		}

		g, err = reloadGear(tx, g.ID)
		if err != nil {
			return err
		}
		res = &Result{Transaction: entry, Gear: g}
		return nil
	})
	return res, err
}

// CheckOut rents gear to a member. The gear row is locked and the status
// flip is guarded so that of two racing checkouts exactly one wins and
// the loser sees ErrGearUnavailable. Only the gear row is ever locked.
func (l *Ledger) CheckOut(ctx context.Context, authorizerRFID, gearRFID, memberRFID string, dueDate time.Time) (*Result, error) {
	var res *Result
	err := l.gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := authorize(tx, authorizerRFID, perms.CapAuthorizeTransactions); err != nil {
			return err
		}
		member, err := findMemberTx(tx, memberRFID)
		if err != nil {
			return err
		}
		if !perms.HasCapability(member, perms.CapRentGear) {
			return fmt.Errorf("%w: member %s may not rent gear", ErrNotAuthorized, memberRFID)
		}

		gear, err := lockGearTx(tx, gearRFID)
		if err != nil {
			return err
		}
		if !gear.IsRentable() {
			return fmt.Errorf("%w: gear %s is %s", ErrGearUnavailable, gearRFID, gear.Status)
		}
		required := gear.AllRequiredCertifications()
		if !perms.HasCertifications(member, required) {
			missing := perms.MissingCertifications(member, required)
			return fmt.Errorf("%w: member %s lacks %s", ErrMissingCertification, memberRFID, certTitles(missing))
		}

		due := dueDate.UTC()
		upd := tx.Model(&models.Gear{}).
			Where("id = ? AND status = ?", gear.ID, models.StatusInStock).
			Updates(map[string]any{
				"status":            models.StatusCheckedOut,
				"checked_out_to_id": member.ID,
				"due_date":          due,
			})
		if upd.Error != nil {
			return upd.Error
		}
		if upd.RowsAffected == 0 {
			// another checkout won the race between read and write
			return fmt.Errorf("%w: gear %s was taken concurrently", ErrGearUnavailable, gearRFID)
		}

		entry, err := appendEntry(tx, models.TxCheckOut, gear.ID, &member.ID, authorizerRFID,
			fmt.Sprintf("checked out to %s, due %s", member.RFID, due.Format("2006-01-02")))
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
	return res, err
}

// CheckIn returns gear to stock. Valid from CheckedOut, Missing and
// Dormant. Checking in gear that is already in stock succeeds as a
// no-op: the kiosk flow scans whole armfuls of gear and a double scan is
// not a fault. The entry is still appended so the ledger records the
// scan.
func (l *Ledger) CheckIn(ctx context.Context, authorizerRFID, gearRFID string) (*Result, error) {
	var res *Result
	err := l.gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := authorize(tx, authorizerRFID, perms.CapAuthorizeTransactions); err != nil {
			return err
		}
		gear, err := lockGearTx(tx, gearRFID)
		if err != nil {
			return err
		}

		var comment string
		switch gear.Status {
		case models.StatusInStock:
			comment = "already in stock"
		case models.StatusCheckedOut, models.StatusMissing, models.StatusDormant:
			holder := ""
			if gear.CheckedOutToID != nil {
				holder = *gear.CheckedOutToID
			}
			upd := tx.Model(&models.Gear{}).
				Where("id = ? AND status = ?", gear.ID, gear.Status).
				Updates(map[string]any{
					"status":            models.StatusInStock,
					"checked_out_to_id": nil,
					"due_date":          nil,
				})
			if upd.Error != nil {
				return upd.Error
			}
			if upd.RowsAffected == 0 {
				return fmt.Errorf("%w: gear %s changed concurrently", ErrGearUnavailable, gearRFID)
			}
			comment = fmt.Sprintf("returned from %s", holderTag(tx, holder))
		default:
			return fmt.Errorf("%w: cannot check in gear that is %s", ErrGearUnavailable, gear.Status)
		}

		entry, err := appendEntry(tx, models.TxCheckIn, gear.ID, gear.CheckedOutToID, authorizerRFID, comment)
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
	return res, err
}

// ReTag moves a piece of gear to a new physical tag, e.g. after the old
// sticker wore out. History keeps following the gear because the ledger
// references its row id, not the tag.
func (l *Ledger) ReTag(ctx context.Context, authorizerRFID, oldRFID, newRFID string) (*Result, error) {
	var res *Result
	err := l.gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := authorize(tx, authorizerRFID, perms.CapChangeGear); err != nil {
			return err
		}
		if !validTag(newRFID) {
			return fmt.Errorf("%w: tag id %q must be 10 digits", ErrStructuralMismatch, newRFID)
		}
		gear, err := lockGearTx(tx, oldRFID)
		if err != nil {
			return err
		}
		if !gear.IsExistent() {
			return fmt.Errorf("%w: gear %s is removed", ErrGearUnavailable, oldRFID)
		}
		taken, err := db.TagIDExistsTx(tx, newRFID)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("%w: %s", ErrTagCollision, newRFID)
		}

		if err := tx.Model(&models.Gear{}).Where("id = ?", gear.ID).Update("rfid", newRFID).Error; err != nil {
			return err
		}
		entry, err := appendEntry(tx, models.TxReTag, gear.ID, nil, authorizerRFID,
			fmt.Sprintf("retagged %s -> %s", oldRFID, newRFID))
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
	return res, err
}

// MarkBroken pulls gear out of circulation for repair. The holder and
// due date stay frozen so MarkFixed can put the gear back where it was.
func (l *Ledger) MarkBroken(ctx context.Context, authorizerRFID, gearRFID, damage string) (*Result, error) {
	var res *Result
	err := l.gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := authorize(tx, authorizerRFID, perms.CapChangeGear); err != nil {
			return err
		}
		gear, err := lockGearTx(tx, gearRFID)
		if err != nil {
			return err
		}
		if gear.Status == models.StatusBroken || !gear.IsExistent() {
			return fmt.Errorf("%w: gear %s is %s", ErrGearUnavailable, gearRFID, gear.Status)
		}

		upd := tx.Model(&models.Gear{}).
			Where("id = ? AND status = ?", gear.ID, gear.Status).
			Update("status", models.StatusBroken)
		if upd.Error != nil {
			return upd.Error
		}
		if upd.RowsAffected == 0 {
			return fmt.Errorf("%w: gear %s changed concurrently", ErrGearUnavailable, gearRFID)
		}

		entry, err := appendEntry(tx, models.TxBreak, gear.ID, gear.CheckedOutToID, authorizerRFID,
			fmt.Sprintf("broken: %s", damage))
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
	return res, err
}

// MarkFixed puts repaired gear back into circulation: to its holder if
// somebody still has it out, otherwise to stock.
func (l *Ledger) MarkFixed(ctx context.Context, authorizerRFID, gearRFID, repair string) (*Result, error) {
	var res *Result
	err := l.gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := authorize(tx, authorizerRFID, perms.CapChangeGear); err != nil {
			return err
		}
		gear, err := lockGearTx(tx, gearRFID)
		if err != nil {
			return err
		}
		if gear.Status != models.StatusBroken {
			return fmt.Errorf("%w: gear %s is %s, not broken", ErrGearUnavailable, gearRFID, gear.Status)
		}

		restored := models.StatusInStock
		if gear.CheckedOutToID != nil {
			restored = models.StatusCheckedOut
		}
		upd := tx.Model(&models.Gear{}).
			Where("id = ? AND status = ?", gear.ID, models.StatusBroken).
			Update("status", restored)
		if upd.Error != nil {
			return upd.Error
		}
		if upd.RowsAffected == 0 {
			return fmt.Errorf("%w: gear %s changed concurrently", ErrGearUnavailable, gearRFID)
		}

		entry, err := appendEntry(tx, models.TxFix, gear.ID, gear.CheckedOutToID, authorizerRFID,
			fmt.Sprintf("fixed: %s", repair))
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
	return res, err
}

// FlagMissing is called by the overdue sweep: checked-out gear past its
// due date becomes Missing. Authorized by the System identity, which is
// still run through the same capability gate as everyone else.
func (l *Ledger) FlagMissing(ctx context.Context, gearRFID string) (*Result, error) {
	var res *Result
	err := l.gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := authorize(tx, models.SystemAuthorizer, perms.CapAuthorizeTransactions); err != nil {
			return err
		}
		gear, err := lockGearTx(tx, gearRFID)
		if err != nil {
			return err
		}
		if !gear.IsRentedOut() {
			return fmt.Errorf("%w: gear %s is %s, not checked out", ErrGearUnavailable, gearRFID, gear.Status)
		}
		now := time.Now().UTC()
		if gear.DueDate == nil || !now.After(*gear.DueDate) {
			return fmt.Errorf("%w: gear %s is not overdue", ErrGearUnavailable, gearRFID)
		}

		upd := tx.Model(&models.Gear{}).
			Where("id = ? AND status = ?", gear.ID, models.StatusCheckedOut).
			Update("status", models.StatusMissing)
		if upd.Error != nil {
			return upd.Error
		}
		if upd.RowsAffected == 0 {
			return fmt.Errorf("%w: gear %s changed concurrently", ErrGearUnavailable, gearRFID)
		}

		days := int(now.Sub(*gear.DueDate).Hours() / 24)
		entry, err := appendEntry(tx, models.TxMissing, gear.ID, gear.CheckedOutToID, models.SystemAuthorizer,
			fmt.Sprintf("%d days overdue, last held by %s", days, holderTag(tx, deref(gear.CheckedOutToID))))
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
	return res, err
}

// FlagDormant is called by the dormant sweep: gear missing beyond the
// configured threshold is presumed lost.
func (l *Ledger) FlagDormant(ctx context.Context, gearRFID string) (*Result, error) {
	var res *Result
	err := l.gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := authorize(tx, models.SystemAuthorizer, perms.CapAuthorizeTransactions); err != nil {
			return err
		}
		gear, err := lockGearTx(tx, gearRFID)
		if err != nil {
			return err
		}
		if gear.Status != models.StatusMissing {
			return fmt.Errorf("%w: gear %s is %s, not missing", ErrGearUnavailable, gearRFID, gear.Status)
		}
		now := time.Now().UTC()
		if gear.DueDate == nil || now.Sub(*gear.DueDate) < l.dormantAfter {
			return fmt.Errorf("%w: gear %s has not been missing long enough", ErrGearUnavailable, gearRFID)
		}

		upd := tx.Model(&models.Gear{}).
			Where("id = ? AND status = ?", gear.ID, models.StatusMissing).
			Update("status", models.StatusDormant)
		if upd.Error != nil {
			return upd.Error
		}
		if upd.RowsAffected == 0 {
			return fmt.Errorf("%w: gear %s changed concurrently", ErrGearUnavailable, gearRFID)
		}

		days := int(now.Sub(*gear.DueDate).Hours() / 24)
		entry, err := appendEntry(tx, models.TxExpire, gear.ID, gear.CheckedOutToID, models.SystemAuthorizer,
			fmt.Sprintf("missing for %d days, presumed lost; last held by %s", days, holderTag(tx, deref(gear.CheckedOutToID))))
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
	return res, err
}

// Remove retires gear permanently. The row and its history persist
// forever; Removed is terminal. The owning department is notified after
// commit; a failed notification comes back as a warning, never as a
// rolled-back removal.
func (l *Ledger) Remove(ctx context.Context, authorizerRFID, gearRFID, reason string) (*Result, error) {
	var res *Result
	err := l.gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := authorize(tx, authorizerRFID, perms.CapRemoveGear); err != nil {
			return err
		}
		gear, err := lockGearTx(tx, gearRFID)
		if err != nil {
			return err
		}
		if !gear.IsExistent() {
			return fmt.Errorf("%w: gear %s is already removed", ErrGearUnavailable, gearRFID)
		}

		upd := tx.Model(&models.Gear{}).
			Where("id = ? AND status = ?", gear.ID, gear.Status).
			Updates(map[string]any{
				"status":            models.StatusRemoved,
				"checked_out_to_id": nil,
				"due_date":          nil,
			})
		if upd.Error != nil {
			return upd.Error
		}
		if upd.RowsAffected == 0 {
			return fmt.Errorf("%w: gear %s changed concurrently", ErrGearUnavailable, gearRFID)
		}

		entry, err := appendEntry(tx, models.TxDelete, gear.ID, nil, authorizerRFID,
			fmt.Sprintf("removed from circulation: %s", reason))
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
	if err != nil {
		return nil, err
	}

	// Best-effort side effect, outside the committed unit.
	if warn := l.notifyRemoval(ctx, res.Gear); warn != nil {
		l.log.Warnw("removal notification failed", "gear", gearRFID, "err", warn)
		res.Warning = fmt.Sprintf("department not notified: %v", warn)
	}
	return res, nil
}

func (l *Ledger) notifyRemoval(ctx context.Context, gear *models.Gear) error {
	var dept models.Department
	if err := l.gdb.WithContext(ctx).First(&dept, gear.GearType.DepartmentID).Error; err != nil {
		return err
	}
	return l.notifier.NotifyDepartment(ctx, &dept, "Gear Removal",
		"The following piece of gear has been permanently removed from circulation!",
		[]*models.Gear{gear})
}

// --- small helpers ---

func validTag(rfid string) bool {
	if len(rfid) != 10 {
		return false
	}
	for _, r := range rfid {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func authorizerName(m *models.Member, rfid string) string {
	if m == nil {
		return models.SystemAuthorizer
	}
	return rfid
}

func certTitles(cs []models.Certification) string {
	if len(cs) == 0 {
		return "a certification"
	}
	titles := make([]string, len(cs))
	for i, c := range cs {
		titles[i] = c.Title
	}
	return strings.Join(titles, ", ")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// holderTag resolves a member id to their tag for ledger comments.
func holderTag(tx *gorm.DB, memberID string) string {
	if memberID == "" {
		return "nobody"
	}
	var m models.Member
	if err := tx.Select("rfid").First(&m, "id = ?", memberID).Error; err != nil {
		return memberID
	}
	return m.RFID
}
