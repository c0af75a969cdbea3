package db

import (
	"context"
	"strings"
	"time"

	"github.com/ExcursionClub/ExCSystem/models"

	"gorm.io/gorm"
)

type Repo struct{ DB *gorm.DB }

func NewRepo(gdb *gorm.DB) *Repo { return &Repo{DB: gdb} }

// Members

func (r *Repo) CreateMember(ctx context.Context, m *models.Member) error {
	return r.DB.WithContext(ctx).Create(m).Error
}

func (r *Repo) FindMemberByID(ctx context.Context, id string) (*models.Member, error) {
	var m models.Member
	if err := r.DB.WithContext(ctx).Preload("Certifications").First(&m, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *Repo) FindMemberByRFID(ctx context.Context, rfid string) (*models.Member, error) {
	var m models.Member
	if err := r.DB.WithContext(ctx).Preload("Certifications").First(&m, "rfid = ?", rfid).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *Repo) TouchMemberSeen(ctx context.Context, id string) error {
	return r.DB.WithContext(ctx).Model(&models.Member{}).
		Where("id = ?", id).
		Update("last_seen_at", time.Now().UTC()).Error
}

func (r *Repo) SetMemberRole(ctx context.Context, id, role string) error {
	return r.DB.WithContext(ctx).Model(&models.Member{}).
		Where("id = ?", id).
		Update("role", role).Error
}

// ListExpiredActiveMembers returns members whose membership has lapsed
// but who still hold a non-staff active role. Staffers keep their role
// regardless of membership dates; the expiry sweep moves everyone else
// to Expired.
func (r *Repo) ListExpiredActiveMembers(ctx context.Context, now time.Time) ([]models.Member, error) {
	var ms []models.Member
	err := r.DB.WithContext(ctx).
		Where("date_expires < ? AND role IN ?", now, []string{models.RoleJustJoined, models.RoleMember}).
		Find(&ms).Error
	return ms, err
}

func (r *Repo) CountMembersWithRole(ctx context.Context, role string) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&models.Member{}).
		Where("role = ?", role).
		Count(&n).Error
	return n, err
}

type ListMembersResult struct {
	Members []models.Member `json:"members"`
	Total   int64           `json:"total"`
}

func (r *Repo) ListMembers(ctx context.Context, q string, page, size int) (ListMembersResult, error) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}

	tx := r.DB.WithContext(ctx).Model(&models.Member{})
	if q = strings.TrimSpace(q); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		tx = tx.Where(
			"LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR LOWER(email) LIKE ? OR rfid LIKE ?",
			like, like, like, like,
		)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return ListMembersResult{}, err
	}

	var members []models.Member
	if err := tx.
		Preload("Certifications").
		Order("created_at DESC").
		Offset((page - 1) * size).
		Limit(size).
		Find(&members).Error; err != nil {
		return ListMembersResult{}, err
	}
	return ListMembersResult{Members: members, Total: total}, nil
}

// TagIDExists checks the shared tag namespace: a tag id is taken if any
// member or any gear carries it.
func (r *Repo) TagIDExists(ctx context.Context, rfid string) (bool, error) {
	return tagIDExists(r.DB.WithContext(ctx), rfid)
}

// TagIDExistsTx is the same check inside a caller-owned transaction, so
// the ledger can verify uniqueness in the unit that creates the tag.
func TagIDExistsTx(tx *gorm.DB, rfid string) (bool, error) {
	return tagIDExists(tx, rfid)
}

func tagIDExists(tx *gorm.DB, rfid string) (bool, error) {
	var n int64
	if err := tx.Model(&models.Member{}).Where("rfid = ?", rfid).Count(&n).Error; err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}
	if err := tx.Model(&models.Gear{}).Where("rfid = ?", rfid).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}
