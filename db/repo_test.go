package db

import (
	"context"
	"testing"
	"time"

	"github.com/ExcursionClub/ExCSystem/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testRepo(t *testing.T) *Repo {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, Migrate(gdb))
	return NewRepo(gdb)
}

func seedMember(t *testing.T, r *Repo, rfid, email, role string, expires time.Time) *models.Member {
	t.Helper()
	m := &models.Member{
		ID: uuid.NewString(), RFID: rfid, Email: email, Role: role,
		DateJoined: time.Now().UTC(), DateExpires: expires,
	}
	require.NoError(t, r.CreateMember(context.Background(), m))
	return m
}

func seedGear(t *testing.T, r *Repo, rfid string, status models.GearStatus, due *time.Time) *models.Gear {
	t.Helper()
	dept := models.Department{Name: "Dept " + rfid}
	require.NoError(t, r.DB.Create(&dept).Error)
	gt := models.GearType{Name: "Type " + rfid, DepartmentID: dept.ID}
	require.NoError(t, r.DB.Create(&gt).Error)
	g := &models.Gear{
		ID: uuid.NewString(), RFID: rfid, GearTypeID: gt.ID,
		Status: status, DueDate: due, GearData: []byte(`{}`),
	}
	require.NoError(t, r.DB.Create(g).Error)
	return g
}

func TestTagColumnsMatchRawPredicates(t *testing.T) {
	// Raw SQL throughout the repo and ledger addresses the tag column as
	// "rfid"; the model tags must pin that name against the namer.
	r := testRepo(t)
	mig := r.DB.Migrator()
	assert.True(t, mig.HasColumn(&models.Member{}, "rfid"))
	assert.True(t, mig.HasColumn(&models.Gear{}, "rfid"))
	assert.False(t, mig.HasColumn(&models.Member{}, "rf_id"))
	assert.False(t, mig.HasColumn(&models.Gear{}, "rf_id"))

	var tags []string
	require.NoError(t, r.DB.Raw("SELECT rfid FROM "+models.MemberTable).Scan(&tags).Error)
	require.NoError(t, r.DB.Raw("SELECT rfid FROM "+models.GearTable).Scan(&tags).Error)
}

func TestTagNamespaceIsShared(t *testing.T) {
	r := testRepo(t)
	ctx := context.Background()

	seedMember(t, r, "1000000001", "a@club.org", models.RoleMember, time.Now().AddDate(1, 0, 0))
	seedGear(t, r, "2000000001", models.StatusInStock, nil)

	for tag, want := range map[string]bool{
		"1000000001": true,  // member tag
		"2000000001": true,  // gear tag
		"3000000001": false, // free
	} {
		got, err := r.TagIDExists(ctx, tag)
		require.NoError(t, err)
		assert.Equal(t, want, got, tag)
	}
}

func TestSweepQueries(t *testing.T) {
	r := testRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	past := now.Add(-48 * time.Hour)
	longGone := now.Add(-60 * 24 * time.Hour)
	future := now.Add(48 * time.Hour)

	overdue := seedGear(t, r, "2000000001", models.StatusCheckedOut, &past)
	seedGear(t, r, "2000000002", models.StatusCheckedOut, &future)
	seedGear(t, r, "2000000003", models.StatusInStock, nil)
	dormant := seedGear(t, r, "2000000004", models.StatusMissing, &longGone)
	seedGear(t, r, "2000000005", models.StatusMissing, &past)

	gs, err := r.ListOverdueGear(ctx, now)
	require.NoError(t, err)
	if assert.Len(t, gs, 1) {
		assert.Equal(t, overdue.ID, gs[0].ID)
	}

	gs, err = r.ListDormantCandidates(ctx, now.Add(-30*24*time.Hour))
	require.NoError(t, err)
	if assert.Len(t, gs, 1) {
		assert.Equal(t, dormant.ID, gs[0].ID)
	}
}

func TestListExpiredActiveMembers(t *testing.T) {
	r := testRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()
	past := now.Add(-24 * time.Hour)

	lapsed := seedMember(t, r, "1000000001", "lapsed@club.org", models.RoleMember, past)
	seedMember(t, r, "1000000002", "current@club.org", models.RoleMember, now.AddDate(1, 0, 0))
	seedMember(t, r, "1000000003", "already@club.org", models.RoleExpired, past)
	seedMember(t, r, "1000000004", "staff@club.org", models.RoleStaff, past)

	ms, err := r.ListExpiredActiveMembers(ctx, now)
	require.NoError(t, err)
	if assert.Len(t, ms, 1) {
		assert.Equal(t, lapsed.ID, ms[0].ID)
	}
}

func TestAddDataFieldAppendOnly(t *testing.T) {
	r := testRepo(t)
	ctx := context.Background()

	dept := models.Department{Name: "Camping"}
	require.NoError(t, r.DB.Create(&dept).Error)
	gt := models.GearType{
		Name: "Tent", DepartmentID: dept.ID,
		DataFields: []models.CustomDataField{
			{Name: "rfid", DataType: "rfid", Label: "RFID", Position: 0, Required: true},
		},
	}
	require.NoError(t, r.CreateGearType(ctx, &gt))

	// optional fields append fine, positions keep increasing
	require.NoError(t, r.AddDataField(ctx, gt.ID, &models.CustomDataField{
		Name: "brand", DataType: "string", Label: "Brand",
	}))
	got, err := r.FindGearType(ctx, gt.ID)
	require.NoError(t, err)
	require.Len(t, got.DataFields, 2)
	assert.Equal(t, 1, got.DataFields[1].Position)

	// with gear of the type in the field, a new required field is refused
	g := &models.Gear{ID: uuid.NewString(), RFID: "2000000001", GearTypeID: gt.ID, GearData: []byte(`{}`)}
	require.NoError(t, r.DB.Create(g).Error)
	err = r.AddDataField(ctx, gt.ID, &models.CustomDataField{
		Name: "capacity", DataType: "integer", Label: "Capacity", Required: true,
	})
	assert.ErrorIs(t, err, ErrFieldChangeForbidden)

	// but optional ones still work
	require.NoError(t, r.AddDataField(ctx, gt.ID, &models.CustomDataField{
		Name: "color", DataType: "string", Label: "Color",
	}))
}

func TestListGearWithHolder(t *testing.T) {
	r := testRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()
	past := now.Add(-24 * time.Hour)
	future := now.Add(7 * 24 * time.Hour)

	holder := seedMember(t, r, "1000000001", "holder@club.org", models.RoleMember, now.AddDate(1, 0, 0))

	seedGear(t, r, "2000000001", models.StatusInStock, nil)
	out := seedGear(t, r, "2000000002", models.StatusCheckedOut, &future)
	late := seedGear(t, r, "2000000003", models.StatusCheckedOut, &past)
	seedGear(t, r, "2000000004", models.StatusRemoved, nil)
	require.NoError(t, r.DB.Model(&models.Gear{}).
		Where("id IN ?", []string{out.ID, late.ID}).
		Update("checked_out_to_id", holder.ID).Error)

	all, err := r.ListGearWithHolder(ctx, AdminGearQuery{})
	require.NoError(t, err)
	assert.EqualValues(t, 4, all.Total)

	res, err := r.ListGearWithHolder(ctx, AdminGearQuery{Status: "overdue"})
	require.NoError(t, err)
	require.Len(t, res.Gear, 1)
	assert.Equal(t, late.ID, res.Gear[0].ID)
	assert.True(t, res.Gear[0].Overdue)
	require.NotNil(t, res.Gear[0].HolderRFID)
	assert.Equal(t, holder.RFID, *res.Gear[0].HolderRFID)

	res, err = r.ListGearWithHolder(ctx, AdminGearQuery{Status: "available"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.Total)

	res, err = r.ListGearWithHolder(ctx, AdminGearQuery{Status: "circulating"})
	require.NoError(t, err)
	assert.EqualValues(t, 3, res.Total, "removed gear is out of circulation")

	// search by type name
	res, err = r.ListGearWithHolder(ctx, AdminGearQuery{Q: "type 2000000002"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.Total)
}
