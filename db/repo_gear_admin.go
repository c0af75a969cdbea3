// db/repo_gear_admin.go
package db

import (
	"context"
	"strings"
	"time"

	"github.com/ExcursionClub/ExCSystem/models"

	"gorm.io/gorm"
)

type AdminGearRow struct {
	// Gear fields. The tag columns are named explicitly so the scan
	// matches the SELECT aliases instead of the namer's rf_id split.
	ID       string            `json:"id"`
	RFID     string            `gorm:"column:rfid" json:"rfid"`
	Status   models.GearStatus `json:"status"`
	TypeName string            `json:"typeName"`

	// Current holder (nullable)
	HolderID    *string    `json:"holderId,omitempty"`
	HolderRFID  *string    `gorm:"column:holder_rfid" json:"holderRfid,omitempty"`
	HolderEmail *string    `json:"holderEmail,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Overdue     bool       `json:"overdue"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type AdminGearQuery struct {
	Q      string // matches gear rfid / type name
	Status string // "", "available", "out", "overdue", "circulating", "inactive"
	Page   int
	Size   int
}

type PagedAdminGear struct {
	Total int64          `json:"total"`
	Gear  []AdminGearRow `json:"gear"`
}

// ListGearWithHolder is the front-desk view: every piece of gear with its
// current holder and an overdue flag computed in SQL.
func (r *Repo) ListGearWithHolder(ctx context.Context, q AdminGearQuery) (*PagedAdminGear, error) {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.Size <= 0 || q.Size > 200 {
		q.Size = 20
	}
	offset := (q.Page - 1) * q.Size
	now := time.Now().UTC()

	base := r.DB.WithContext(ctx).
		Table(models.GearTable+" g").
		Joins("JOIN "+models.GearTypeTable+" gt ON gt.id = g.gear_type_id").
		Joins("LEFT JOIN "+models.MemberTable+" m ON m.id = g.checked_out_to_id")

	if s := strings.TrimSpace(q.Q); s != "" {
		pat := "%" + strings.ToLower(s) + "%"
		base = base.Where("g.rfid LIKE ? OR LOWER(gt.name) LIKE ?", pat, pat)
	}
	switch q.Status {
	case "available":
		base = base.Where("g.status = ?", models.StatusInStock)
	case "out":
		base = base.Where("g.status = ?", models.StatusCheckedOut)
	case "overdue":
		base = base.Where("g.status = ? AND g.due_date IS NOT NULL AND g.due_date < ?", models.StatusCheckedOut, now)
	case "circulating":
		base = base.Where("g.status <= ?", models.StatusMissing)
	case "inactive":
		base = base.Where("g.status > ?", models.StatusCheckedOut)
	default:
		// all
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, err
	}

	var rows []AdminGearRow
	err := base.
		Select(`
			g.id, g.rfid, g.status, g.created_at, g.updated_at,
			gt.name      AS type_name,
			g.checked_out_to_id AS holder_id,
			m.rfid       AS holder_rfid,
			m.email      AS holder_email,
			g.due_date,
			CASE WHEN g.due_date IS NOT NULL AND g.due_date < ? THEN TRUE ELSE FALSE END AS overdue
		`, now).
		Order("g.created_at DESC").
		Offset(offset).Limit(q.Size).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	return &PagedAdminGear{Total: total, Gear: rows}, nil
}
