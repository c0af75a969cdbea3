package db

import (
	"context"
	"errors"

	"github.com/ExcursionClub/ExCSystem/models"

	"gorm.io/gorm"
)

var ErrFieldChangeForbidden = errors.New("field definitions are append-only once gear of the type exists")

func (r *Repo) CreateCertification(ctx context.Context, c *models.Certification) error {
	return r.DB.WithContext(ctx).Create(c).Error
}

func (r *Repo) FindCertificationsByIDs(ctx context.Context, ids []uint) ([]models.Certification, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var cs []models.Certification
	if err := r.DB.WithContext(ctx).Find(&cs, ids).Error; err != nil {
		return nil, err
	}
	if len(cs) != len(ids) {
		return nil, gorm.ErrRecordNotFound
	}
	return cs, nil
}

func (r *Repo) CreateDepartment(ctx context.Context, d *models.Department) error {
	return r.DB.WithContext(ctx).Create(d).Error
}

func (r *Repo) FindDepartment(ctx context.Context, id uint) (*models.Department, error) {
	var d models.Department
	if err := r.DB.WithContext(ctx).First(&d, id).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *Repo) CreateGearType(ctx context.Context, gt *models.GearType) error {
	return r.DB.WithContext(ctx).Create(gt).Error
}

func (r *Repo) FindGearType(ctx context.Context, id uint) (*models.GearType, error) {
	var gt models.GearType
	err := r.DB.WithContext(ctx).
		Preload("Department").
		Preload("RequiredCertifications").
		Preload("DataFields", func(tx *gorm.DB) *gorm.DB { return tx.Order("position ASC") }).
		First(&gt, id).Error
	if err != nil {
		return nil, err
	}
	return &gt, nil
}

func (r *Repo) ListGearTypes(ctx context.Context) ([]models.GearType, error) {
	var gts []models.GearType
	err := r.DB.WithContext(ctx).
		Preload("Department").
		Preload("RequiredCertifications").
		Preload("DataFields", func(tx *gorm.DB) *gorm.DB { return tx.Order("position ASC") }).
		Order("name ASC").
		Find(&gts).Error
	return gts, err
}

// AddDataField appends a field definition to a gear type. Appending is
// the only schema change allowed once gear of the type exists: existing
// attribute bags stay valid because the new field is optional for them
// until the next override touches it.
func (r *Repo) AddDataField(ctx context.Context, gearTypeID uint, def *models.CustomDataField) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var gt models.GearType
		if err := tx.First(&gt, gearTypeID).Error; err != nil {
			return err
		}
		if def.Required {
			var n int64
			if err := tx.Model(&models.Gear{}).Where("gear_type_id = ?", gearTypeID).Count(&n).Error; err != nil {
				return err
			}
			if n > 0 {
				// a new required field would invalidate every existing bag
				return ErrFieldChangeForbidden
			}
		}
		var maxPos int
		row := tx.Model(&models.CustomDataField{}).
			Where("gear_type_id = ?", gearTypeID).
			Select("COALESCE(MAX(position), -1)").Row()
		if err := row.Scan(&maxPos); err != nil {
			return err
		}
		def.GearTypeID = gearTypeID
		def.Position = maxPos + 1
		return tx.Create(def).Error
	})
}
