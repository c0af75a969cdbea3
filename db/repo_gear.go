package db

import (
	"context"
	"time"

	"github.com/ExcursionClub/ExCSystem/models"

	"gorm.io/gorm"
)

// Gear reads. All writes to gear go through the ledger package; the repo
// deliberately exposes no gear save method.

func (r *Repo) gearQuery(ctx context.Context) *gorm.DB {
	return r.DB.WithContext(ctx).
		Preload("GearType").
		Preload("GearType.DataFields").
		Preload("GearType.RequiredCertifications").
		Preload("RequiredCertifications").
		Preload("CheckedOutTo")
}

func (r *Repo) FindGearByRFID(ctx context.Context, rfid string) (*models.Gear, error) {
	var g models.Gear
	if err := r.gearQuery(ctx).First(&g, "rfid = ?", rfid).Error; err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *Repo) FindGearByID(ctx context.Context, id string) (*models.Gear, error) {
	var g models.Gear
	if err := r.gearQuery(ctx).First(&g, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &g, nil
}

// ListOverdueGear returns checked-out gear whose due date has passed.
// The overdue sweep feeds these to the ledger one at a time.
func (r *Repo) ListOverdueGear(ctx context.Context, now time.Time) ([]models.Gear, error) {
	var gs []models.Gear
	err := r.DB.WithContext(ctx).
		Where("status = ? AND due_date IS NOT NULL AND due_date < ?", models.StatusCheckedOut, now).
		Find(&gs).Error
	return gs, err
}

// ListDormantCandidates returns missing gear whose due date is older than
// cutoff, i.e. gear that has been missing long enough to presume lost.
func (r *Repo) ListDormantCandidates(ctx context.Context, cutoff time.Time) ([]models.Gear, error) {
	var gs []models.Gear
	err := r.DB.WithContext(ctx).
		Where("status = ? AND due_date IS NOT NULL AND due_date < ?", models.StatusMissing, cutoff).
		Find(&gs).Error
	return gs, err
}

// Transactions. Append-only: the repo offers create and read, nothing
// that updates or deletes a ledger row.

func (r *Repo) ListGearTransactions(ctx context.Context, gearID string) ([]models.Transaction, error) {
	var ts []models.Transaction
	err := r.DB.WithContext(ctx).
		Where("gear_id = ?", gearID).
		Order("timestamp ASC, id ASC").
		Find(&ts).Error
	return ts, err
}

type ListTransactionsResult struct {
	Transactions []models.Transaction `json:"transactions"`
	Total        int64                `json:"total"`
}

func (r *Repo) ListTransactions(ctx context.Context, page, size int) (ListTransactionsResult, error) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 || size > 200 {
		size = 50
	}

	tx := r.DB.WithContext(ctx).Model(&models.Transaction{})
	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return ListTransactionsResult{}, err
	}

	var ts []models.Transaction
	if err := tx.
		Preload("Gear").
		Preload("Member").
		Order("timestamp DESC, id DESC").
		Offset((page - 1) * size).
		Limit(size).
		Find(&ts).Error; err != nil {
		return ListTransactionsResult{}, err
	}
	return ListTransactionsResult{Transactions: ts, Total: total}, nil
}
