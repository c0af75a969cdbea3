package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ExcursionClub/ExCSystem/db"
	"github.com/ExcursionClub/ExCSystem/models"
	"github.com/ExcursionClub/ExCSystem/notify"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// failingNotifier simulates an unreachable mail backend.
type failingNotifier struct{}

func (failingNotifier) NotifyDepartment(context.Context, *models.Department, string, string, []*models.Gear) error {
	return errors.New("smtp down")
}

type fixture struct {
	gdb    *gorm.DB
	ledger *Ledger
	repo   *db.Repo

	staffer   *models.Member // Staff, holds the kayak cert
	boardie   *models.Member // Board
	renter    *models.Member // Member, holds the kayak cert
	newbie    *models.Member // Just Joined
	expired   *models.Member // Expired
	kayakCert models.Certification
	tentType  models.GearType
	kayakType models.GearType
}

func newFixture(t *testing.T, n notify.Notifier) *fixture {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	// one connection, or the pool would hand out fresh empty in-memory DBs
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.Migrate(gdb))

	if n == nil {
		n = notify.NewLogNotifier(zap.NewNop().Sugar())
	}
	f := &fixture{
		gdb:    gdb,
		ledger: New(gdb, n, zap.NewNop().Sugar(), Options{DormantAfter: 30 * 24 * time.Hour}),
		repo:   db.NewRepo(gdb),
	}

	f.kayakCert = models.Certification{Title: "Kayaking"}
	require.NoError(t, gdb.Create(&f.kayakCert).Error)

	dept := models.Department{Name: "Camping", STLEmails: []byte(`["stl@club.org"]`)}
	require.NoError(t, gdb.Create(&dept).Error)

	choices, _ := json.Marshal([]models.ChoiceOption{
		{Code: "S", Label: "Small"}, {Code: "L", Label: "Large"},
	})
	f.tentType = models.GearType{
		Name:         "Tent",
		DepartmentID: dept.ID,
		DataFields: []models.CustomDataField{
			{Name: "rfid", DataType: "rfid", Label: "RFID", Position: 0, Required: true},
			{Name: "brand", DataType: "string", Label: "Brand", Position: 1, Required: true},
			{Name: "capacity", DataType: "integer", Label: "Capacity", Position: 2, Required: true, Suffix: " person"},
			{Name: "size", DataType: "choice", Label: "Size", Position: 3, Required: true, Choices: choices},
		},
	}
	require.NoError(t, gdb.Create(&f.tentType).Error)

	f.kayakType = models.GearType{
		Name:                   "Kayak",
		DepartmentID:           dept.ID,
		RequiredCertifications: []models.Certification{f.kayakCert},
		DataFields: []models.CustomDataField{
			{Name: "rfid", DataType: "rfid", Label: "RFID", Position: 0, Required: true},
			{Name: "color", DataType: "string", Label: "Color", Position: 1},
		},
	}
	require.NoError(t, gdb.Create(&f.kayakType).Error)

	f.staffer = f.member(t, "1000000001", "staffer@club.org", models.RoleStaff, f.kayakCert)
	f.boardie = f.member(t, "1000000002", "board@club.org", models.RoleBoard)
	f.renter = f.member(t, "1000000003", "renter@club.org", models.RoleMember, f.kayakCert)
	f.newbie = f.member(t, "1000000004", "newbie@club.org", models.RoleJustJoined)
	f.expired = f.member(t, "1000000005", "expired@club.org", models.RoleExpired)
	return f
}

func (f *fixture) member(t *testing.T, rfid, email, role string, certs ...models.Certification) *models.Member {
	t.Helper()
	now := time.Now().UTC()
	m := &models.Member{
		ID: uuid.NewString(), RFID: rfid, Email: email, Role: role,
		FirstName: "Test", LastName: "Member",
		DateJoined: now, DateExpires: now.AddDate(1, 0, 0),
		Certifications: certs,
	}
	require.NoError(t, f.gdb.Create(m).Error)
	return m
}

func (f *fixture) createTent(t *testing.T, rfid string) *models.Gear {
	t.Helper()
	res, err := f.ledger.CreateGear(context.Background(), f.staffer.RFID, rfid, f.tentType.ID, nil,
		map[string]any{"rfid": rfid, "brand": "Kelty", "capacity": 4, "size": "L"})
	require.NoError(t, err)
	return res.Gear
}

func (f *fixture) createKayak(t *testing.T, rfid string) *models.Gear {
	t.Helper()
	res, err := f.ledger.CreateGear(context.Background(), f.staffer.RFID, rfid, f.kayakType.ID, nil,
		map[string]any{"rfid": rfid, "color": "red"})
	require.NoError(t, err)
	return res.Gear
}

func (f *fixture) history(t *testing.T, gearID string) []models.Transaction {
	t.Helper()
	txs, err := f.repo.ListGearTransactions(context.Background(), gearID)
	require.NoError(t, err)
	return txs
}

func (f *fixture) assertReplayMatches(t *testing.T, gearID string) {
	t.Helper()
	var g models.Gear
	require.NoError(t, f.gdb.First(&g, "id = ?", gearID).Error)
	replayed, err := ReplayStatus(f.history(t, gearID))
	require.NoError(t, err)
	assert.Equal(t, g.Status, replayed, "stored status must equal the folded history")
}

func due(d time.Duration) time.Time { return time.Now().UTC().Add(d) }

func TestCreateGear(t *testing.T) {
	f := newFixture(t, nil)
	g := f.createTent(t, "2000000001")

	assert.Equal(t, models.StatusInStock, g.Status)
	txs := f.history(t, g.ID)
	require.Len(t, txs, 1)
	assert.Equal(t, models.TxCreate, txs[0].Type)
	assert.Equal(t, f.staffer.RFID, txs[0].Authorizer)
	assert.Equal(t, "created Tent Kelty 4 person Large", txs[0].Comments)
	f.assertReplayMatches(t, g.ID)
}

func TestCreateGearFailuresLeaveNoOrphan(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	cases := []struct {
		name   string
		run    func() error
		sentin error
	}{
		{"member role lacks add_gear", func() error {
			_, err := f.ledger.CreateGear(ctx, f.renter.RFID, "2000000009", f.tentType.ID, nil,
				map[string]any{"rfid": "2000000009", "brand": "Kelty", "capacity": 4, "size": "L"})
			return err
		}, ErrNotAuthorized},
		{"malformed tag", func() error {
			_, err := f.ledger.CreateGear(ctx, f.staffer.RFID, "123", f.tentType.ID, nil, nil)
			return err
		}, ErrStructuralMismatch},
		{"tag collides with a member tag", func() error {
			_, err := f.ledger.CreateGear(ctx, f.staffer.RFID, f.renter.RFID, f.tentType.ID, nil,
				map[string]any{"rfid": f.renter.RFID, "brand": "Kelty", "capacity": 4, "size": "L"})
			return err
		}, ErrTagCollision},
		{"missing required field", func() error {
			_, err := f.ledger.CreateGear(ctx, f.staffer.RFID, "2000000009", f.tentType.ID, nil,
				map[string]any{"rfid": "2000000009", "brand": "Kelty", "capacity": 4})
			return err
		}, ErrStructuralMismatch},
		{"undeclared field", func() error {
			_, err := f.ledger.CreateGear(ctx, f.staffer.RFID, "2000000009", f.tentType.ID, nil,
				map[string]any{"rfid": "2000000009", "brand": "Kelty", "capacity": 4, "size": "L", "color": "red"})
			return err
		}, ErrStructuralMismatch},
		{"unknown gear type", func() error {
			_, err := f.ledger.CreateGear(ctx, f.staffer.RFID, "2000000009", 999, nil, nil)
			return err
		}, ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, tc.run(), tc.sentin)
		})
	}

	// no gear row and no ledger entry survived any failed create
	var gearCount, txCount int64
	require.NoError(t, f.gdb.Model(&models.Gear{}).Count(&gearCount).Error)
	require.NoError(t, f.gdb.Model(&models.Transaction{}).Count(&txCount).Error)
	assert.Zero(t, gearCount)
	assert.Zero(t, txCount)
}

func TestCheckOutAndCheckIn(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	g := f.createTent(t, "2000000001")

	res, err := f.ledger.CheckOut(ctx, f.staffer.RFID, g.RFID, f.renter.RFID, due(7*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, models.StatusCheckedOut, res.Gear.Status)
	require.NotNil(t, res.Gear.CheckedOutToID)
	assert.Equal(t, f.renter.ID, *res.Gear.CheckedOutToID)
	require.NotNil(t, res.Gear.DueDate)
	f.assertReplayMatches(t, g.ID)

	// a second checkout of the same gear is refused
	_, err = f.ledger.CheckOut(ctx, f.staffer.RFID, g.RFID, f.renter.RFID, due(24*time.Hour))
	assert.ErrorIs(t, err, ErrGearUnavailable)

	res, err = f.ledger.CheckIn(ctx, f.staffer.RFID, g.RFID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInStock, res.Gear.Status)
	assert.Nil(t, res.Gear.CheckedOutToID)
	assert.Nil(t, res.Gear.DueDate)
	f.assertReplayMatches(t, g.ID)
}

func TestConcurrentCheckOutHasOneWinner(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	g := f.createTent(t, "2000000001")
	rival := f.member(t, "1000000007", "rival@club.org", models.RoleMember)

	renters := []*models.Member{f.renter, rival}
	errs := make([]error, len(renters))
	var wg sync.WaitGroup
	for i, m := range renters {
		wg.Add(1)
		go func(i int, rfid string) {
			defer wg.Done()
			_, errs[i] = f.ledger.CheckOut(ctx, f.staffer.RFID, g.RFID, rfid, due(24*time.Hour))
		}(i, m.RFID)
	}
	wg.Wait()

	var wins, losses int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrGearUnavailable):
			losses++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins, "exactly one checkout wins")
	assert.Equal(t, 1, losses, "the loser sees gear unavailable")

	var got models.Gear
	require.NoError(t, f.gdb.First(&got, "id = ?", g.ID).Error)
	assert.Equal(t, models.StatusCheckedOut, got.Status)
	require.NotNil(t, got.CheckedOutToID, "status and holder stay consistent")
	f.assertReplayMatches(t, g.ID)
}

func TestCheckOutAuthorization(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	g := f.createTent(t, "2000000001")

	// the renter cannot authorize their own checkout
	_, err := f.ledger.CheckOut(ctx, f.renter.RFID, g.RFID, f.renter.RFID, due(time.Hour))
	assert.ErrorIs(t, err, ErrNotAuthorized)

	// a renter whose role lacks rent_gear is refused even with a staffer authorizing
	for _, m := range []*models.Member{f.newbie, f.expired} {
		_, err = f.ledger.CheckOut(ctx, f.staffer.RFID, g.RFID, m.RFID, due(time.Hour))
		assert.ErrorIs(t, err, ErrNotAuthorized, m.Role)
	}

	// unknown identities
	_, err = f.ledger.CheckOut(ctx, "9999999999", g.RFID, f.renter.RFID, due(time.Hour))
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.ledger.CheckOut(ctx, f.staffer.RFID, g.RFID, "9999999999", due(time.Hour))
	assert.ErrorIs(t, err, ErrNotFound)

	// nothing was written along any refused path
	txs := f.history(t, g.ID)
	assert.Len(t, txs, 1)
}

func TestCheckOutRequiresCertification(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	kayak := f.createKayak(t, "2000000002")

	uncertified := f.member(t, "1000000006", "uncert@club.org", models.RoleMember)
	_, err := f.ledger.CheckOut(ctx, f.staffer.RFID, kayak.RFID, uncertified.RFID, due(time.Hour))
	require.ErrorIs(t, err, ErrMissingCertification)
	assert.Contains(t, err.Error(), "Kayaking")

	_, err = f.ledger.CheckOut(ctx, f.staffer.RFID, kayak.RFID, f.renter.RFID, due(time.Hour))
	assert.NoError(t, err)
}

func TestGearLevelCertification(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	// a tent with a gear-specific certification on top of its (empty) type set
	res, err := f.ledger.CreateGear(ctx, f.staffer.RFID, "2000000003", f.tentType.ID,
		[]uint{f.kayakCert.ID},
		map[string]any{"rfid": "2000000003", "brand": "Kelty", "capacity": 2, "size": "S"})
	require.NoError(t, err)

	uncertified := f.member(t, "1000000006", "uncert@club.org", models.RoleMember)
	_, err = f.ledger.CheckOut(ctx, f.staffer.RFID, res.Gear.RFID, uncertified.RFID, due(time.Hour))
	assert.ErrorIs(t, err, ErrMissingCertification)
}

func TestCheckInFromStockIsANoOp(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	g := f.createTent(t, "2000000001")

	res, err := f.ledger.CheckIn(ctx, f.staffer.RFID, g.RFID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInStock, res.Gear.Status)
	assert.Equal(t, "already in stock", res.Transaction.Comments)

	// the double scan still lands in the ledger
	txs := f.history(t, g.ID)
	require.Len(t, txs, 2)
	assert.Equal(t, models.TxCheckIn, txs[1].Type)
	f.assertReplayMatches(t, g.ID)
}

func TestCheckInBroken(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	g := f.createTent(t, "2000000001")
	_, err := f.ledger.MarkBroken(ctx, f.staffer.RFID, g.RFID, "bent pole")
	require.NoError(t, err)

	_, err = f.ledger.CheckIn(ctx, f.staffer.RFID, g.RFID)
	assert.ErrorIs(t, err, ErrGearUnavailable)
}

func TestReTag(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	g := f.createTent(t, "2000000001")

	res, err := f.ledger.ReTag(ctx, f.staffer.RFID, "2000000001", "2000000099")
	require.NoError(t, err)
	assert.Equal(t, "2000000099", res.Gear.RFID)

	// history stays attached to the gear, not the tag
	txs := f.history(t, g.ID)
	require.Len(t, txs, 2)
	assert.Equal(t, models.TxReTag, txs[1].Type)
	assert.Equal(t, "retagged 2000000001 -> 2000000099", txs[1].Comments)
	f.assertReplayMatches(t, g.ID)

	// old tag is free again, new tag collides
	_, err = f.ledger.ReTag(ctx, f.staffer.RFID, "2000000099", f.renter.RFID)
	assert.ErrorIs(t, err, ErrTagCollision)
	_, err = f.ledger.ReTag(ctx, f.staffer.RFID, "2000000099", "123")
	assert.ErrorIs(t, err, ErrStructuralMismatch)
}

func TestBreakAndFixRestoresRental(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	g := f.createTent(t, "2000000001")
	_, err := f.ledger.CheckOut(ctx, f.staffer.RFID, g.RFID, f.renter.RFID, due(7*24*time.Hour))
	require.NoError(t, err)

	res, err := f.ledger.MarkBroken(ctx, f.staffer.RFID, g.RFID, "torn fly")
	require.NoError(t, err)
	assert.Equal(t, models.StatusBroken, res.Gear.Status)
	// the rental is frozen, not cleared
	require.NotNil(t, res.Gear.CheckedOutToID)
	assert.Equal(t, f.renter.ID, *res.Gear.CheckedOutToID)
	f.assertReplayMatches(t, g.ID)

	// broken gear cannot go out again
	_, err = f.ledger.CheckOut(ctx, f.staffer.RFID, g.RFID, f.renter.RFID, due(time.Hour))
	assert.ErrorIs(t, err, ErrGearUnavailable)

	res, err = f.ledger.MarkFixed(ctx, f.staffer.RFID, g.RFID, "patched")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCheckedOut, res.Gear.Status, "fix restores the interrupted rental")
	f.assertReplayMatches(t, g.ID)
}

func TestBreakAndFixFromStock(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	g := f.createTent(t, "2000000001")

	_, err := f.ledger.MarkBroken(ctx, f.staffer.RFID, g.RFID, "bent pole")
	require.NoError(t, err)
	_, err = f.ledger.MarkFixed(ctx, f.staffer.RFID, g.RFID, "straightened")
	require.NoError(t, err)

	var got models.Gear
	require.NoError(t, f.gdb.First(&got, "id = ?", g.ID).Error)
	assert.Equal(t, models.StatusInStock, got.Status)
	f.assertReplayMatches(t, g.ID)

	// fixing unbroken gear is refused
	_, err = f.ledger.MarkFixed(ctx, f.staffer.RFID, g.RFID, "again")
	assert.ErrorIs(t, err, ErrGearUnavailable)
}

func TestMissingAndDormantSweepTransitions(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	g := f.createTent(t, "2000000001")
	_, err := f.ledger.CheckOut(ctx, f.staffer.RFID, g.RFID, f.renter.RFID, due(time.Hour))
	require.NoError(t, err)

	// not overdue yet
	_, err = f.ledger.FlagMissing(ctx, g.RFID)
	assert.ErrorIs(t, err, ErrGearUnavailable)

	// push the due date into the past
	past := time.Now().UTC().Add(-40 * 24 * time.Hour)
	require.NoError(t, f.gdb.Model(&models.Gear{}).Where("id = ?", g.ID).Update("due_date", past).Error)

	res, err := f.ledger.FlagMissing(ctx, g.RFID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusMissing, res.Gear.Status)
	assert.Equal(t, models.SystemAuthorizer, res.Transaction.Authorizer)
	assert.Contains(t, res.Transaction.Comments, "40 days overdue")
	assert.Contains(t, res.Transaction.Comments, f.renter.RFID)
	f.assertReplayMatches(t, g.ID)

	res, err = f.ledger.FlagDormant(ctx, g.RFID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDormant, res.Gear.Status)
	f.assertReplayMatches(t, g.ID)

	// a returned armful of dormant gear still checks in cleanly
	res, err = f.ledger.CheckIn(ctx, f.staffer.RFID, g.RFID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInStock, res.Gear.Status)
	f.assertReplayMatches(t, g.ID)

	// in-stock gear is not rented out and cannot go missing
	_, err = f.ledger.FlagMissing(ctx, g.RFID)
	assert.ErrorIs(t, err, ErrGearUnavailable)
}

func TestRemoveIsTerminal(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	g := f.createTent(t, "2000000001")

	_, err := f.ledger.Remove(ctx, f.staffer.RFID, g.RFID, "shredded")
	assert.ErrorIs(t, err, ErrNotAuthorized, "remove_gear starts at Board")

	res, err := f.ledger.Remove(ctx, f.boardie.RFID, g.RFID, "shredded")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRemoved, res.Gear.Status)
	assert.Empty(t, res.Warning)
	f.assertReplayMatches(t, g.ID)

	// nothing works on removed gear, but the row and history persist
	_, err = f.ledger.CheckOut(ctx, f.staffer.RFID, g.RFID, f.renter.RFID, due(time.Hour))
	assert.ErrorIs(t, err, ErrGearUnavailable)
	_, err = f.ledger.ReTag(ctx, f.staffer.RFID, g.RFID, "2000000099")
	assert.ErrorIs(t, err, ErrGearUnavailable)
	_, err = f.ledger.Remove(ctx, f.boardie.RFID, g.RFID, "again")
	assert.ErrorIs(t, err, ErrGearUnavailable)

	assert.Len(t, f.history(t, g.ID), 2)
}

func TestRemoveWarnsWhenNotificationFails(t *testing.T) {
	f := newFixture(t, failingNotifier{})
	g := f.createTent(t, "2000000001")

	res, err := f.ledger.Remove(context.Background(), f.boardie.RFID, g.RFID, "shredded")
	require.NoError(t, err, "a dead mail backend must not roll back the removal")
	assert.Equal(t, models.StatusRemoved, res.Gear.Status)
	assert.Contains(t, res.Warning, "department not notified")
	f.assertReplayMatches(t, g.ID)
}

func TestOverride(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	g := f.createTent(t, "2000000001")

	_, err := f.ledger.Override(ctx, f.staffer.RFID, g.RFID, ChangeSet{})
	assert.ErrorIs(t, err, ErrStructuralMismatch, "empty changeset")

	_, err = f.ledger.Override(ctx, f.renter.RFID, g.RFID, ChangeSet{ClearDueDate: true})
	assert.ErrorIs(t, err, ErrNotAuthorized)

	res, err := f.ledger.Override(ctx, f.staffer.RFID, g.RFID, ChangeSet{
		Attributes: map[string]any{"capacity": 6, "size": "S"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.TxOverride, res.Transaction.Type)
	assert.Contains(t, res.Transaction.Comments, "Capacity: 4 person -> 6 person")
	assert.Contains(t, res.Transaction.Comments, "Size: Large -> Small")
	f.assertReplayMatches(t, g.ID)

	// a bad value rolls the whole override back
	_, err = f.ledger.Override(ctx, f.staffer.RFID, g.RFID, ChangeSet{
		Attributes: map[string]any{"capacity": "many"},
	})
	assert.ErrorIs(t, err, ErrStructuralMismatch)

	var got models.Gear
	require.NoError(t, f.gdb.First(&got, "id = ?", g.ID).Error)
	replayed := f.history(t, g.ID)
	assert.Len(t, replayed, 2, "failed override appended nothing")
}

func TestOverrideDueDateAndCerts(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	g := f.createTent(t, "2000000001")
	_, err := f.ledger.CheckOut(ctx, f.staffer.RFID, g.RFID, f.renter.RFID, due(24*time.Hour))
	require.NoError(t, err)

	newDue := time.Now().UTC().Add(14 * 24 * time.Hour)
	res, err := f.ledger.Override(ctx, f.staffer.RFID, g.RFID, ChangeSet{
		DueDate:         &newDue,
		RequiredCertIDs: []uint{f.kayakCert.ID},
	})
	require.NoError(t, err)
	assert.Contains(t, res.Transaction.Comments, "due date:")
	assert.Contains(t, res.Transaction.Comments, "required certifications:")
	require.NotNil(t, res.Gear.DueDate)
	assert.Equal(t, newDue.Format("2006-01-02"), res.Gear.DueDate.Format("2006-01-02"))
	require.Len(t, res.Gear.RequiredCertifications, 1)
	assert.Equal(t, "Kayaking", res.Gear.RequiredCertifications[0].Title)
	f.assertReplayMatches(t, g.ID)
}

func TestOverrideAfterSchemaAppend(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	g := f.createTent(t, "2000000001")

	// a new optional field appended after this gear was created
	require.NoError(t, f.repo.AddDataField(ctx, f.tentType.ID, &models.CustomDataField{
		Name: "color", DataType: "string", Label: "Color",
	}))

	res, err := f.ledger.Override(ctx, f.staffer.RFID, g.RFID, ChangeSet{
		Attributes: map[string]any{"color": "red"},
	})
	require.NoError(t, err)
	assert.Contains(t, res.Transaction.Comments, "Color: (empty) -> red")
	f.assertReplayMatches(t, g.ID)
}

func TestReplayStatusRejectsMalformedHistory(t *testing.T) {
	_, err := ReplayStatus(nil)
	assert.ErrorIs(t, err, ErrStructuralMismatch)

	_, err = ReplayStatus([]models.Transaction{{Type: models.TxCheckIn, Timestamp: time.Now()}})
	assert.ErrorIs(t, err, ErrStructuralMismatch, "history must begin with Create")

	now := time.Now()
	_, err = ReplayStatus([]models.Transaction{
		{Type: models.TxCreate, Timestamp: now},
		{Type: models.TxCreate, Timestamp: now.Add(time.Second)},
	})
	assert.ErrorIs(t, err, ErrStructuralMismatch, "duplicate Create")
}

func TestReplayStatusFoldsOutOfOrderInput(t *testing.T) {
	now := time.Now()
	mid := "member-1"
	// deliberately shuffled; the fold must order by timestamp first
	txs := []models.Transaction{
		{Type: models.TxFix, Timestamp: now.Add(3 * time.Second), MemberID: &mid},
		{Type: models.TxCreate, Timestamp: now},
		{Type: models.TxCheckOut, Timestamp: now.Add(time.Second), MemberID: &mid},
		{Type: models.TxBreak, Timestamp: now.Add(2 * time.Second), MemberID: &mid},
	}
	status, err := ReplayStatus(txs)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCheckedOut, status, "a fix mid-rental restores the rental")
}
