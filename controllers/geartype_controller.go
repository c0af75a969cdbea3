// controllers/geartype_controller.go
package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/ExcursionClub/ExCSystem/app"
	"github.com/ExcursionClub/ExCSystem/db"
	"github.com/ExcursionClub/ExCSystem/fields"
	"github.com/ExcursionClub/ExCSystem/models"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
)

type GearTypeController struct{ *Srv }

func NewGearTypeController(s *Srv) *GearTypeController { return &GearTypeController{Srv: s} }

func (tc *GearTypeController) CreateDepartment(c *gin.Context) {
	var in struct {
		Name        string   `json:"name" binding:"required"`
		Description string   `json:"description"`
		STLEmails   []string `json:"stlEmails"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}
	emails, err := json.Marshal(in.STLEmails)
	if err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}
	d := &models.Department{Name: in.Name, Description: in.Description, STLEmails: datatypes.JSON(emails)}
	if err := tc.Repo.CreateDepartment(c.Request.Context(), d); err != nil {
		c.JSON(http.StatusInternalServerError, app.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, d)
}

func (tc *GearTypeController) CreateCertification(c *gin.Context) {
	var in struct {
		Title        string `json:"title" binding:"required"`
		Requirements string `json:"requirements"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}
	cert := &models.Certification{Title: in.Title, Requirements: in.Requirements}
	if err := tc.Repo.CreateCertification(c.Request.Context(), cert); err != nil {
		c.JSON(http.StatusInternalServerError, app.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, cert)
}

type dataFieldInput struct {
	Name     string                `json:"name" binding:"required"`
	DataType string                `json:"dataType" binding:"required"`
	Label    string                `json:"label" binding:"required"`
	HelpText string                `json:"helpText"`
	Required bool                  `json:"required"`
	Suffix   string                `json:"suffix"`
	Choices  []models.ChoiceOption `json:"choices"`
}

func (in dataFieldInput) toModel() (*models.CustomDataField, error) {
	switch in.DataType {
	case fields.KindRFID, fields.KindString, fields.KindText, fields.KindBoolean,
		fields.KindInteger, fields.KindFloat, fields.KindChoice:
	default:
		return nil, errors.New("unknown data type " + strconv.Quote(in.DataType))
	}
	def := &models.CustomDataField{
		Name:     in.Name,
		DataType: in.DataType,
		Label:    in.Label,
		HelpText: in.HelpText,
		Required: in.Required,
		Suffix:   in.Suffix,
	}
	if in.DataType == fields.KindChoice {
		if len(in.Choices) == 0 {
			return nil, errors.New("choice field needs at least one option")
		}
		b, err := json.Marshal(in.Choices)
		if err != nil {
			return nil, err
		}
		def.Choices = datatypes.JSON(b)
	}
	return def, nil
}

// CreateGearType declares a new kind of gear together with its data
// fields. Field positions follow the order given here.
func (tc *GearTypeController) CreateGearType(c *gin.Context) {
	var in struct {
		Name            string           `json:"name" binding:"required"`
		DepartmentID    uint             `json:"departmentId" binding:"required"`
		RequiredCertIDs []uint           `json:"requiredCertIds"`
		DataFields      []dataFieldInput `json:"dataFields"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}
	if _, err := tc.Repo.FindDepartment(c.Request.Context(), in.DepartmentID); err != nil {
		c.JSON(http.StatusNotFound, app.H{"error": "department not found"})
		return
	}
	certs, err := tc.Repo.FindCertificationsByIDs(c.Request.Context(), in.RequiredCertIDs)
	if err != nil {
		c.JSON(http.StatusNotFound, app.H{"error": "certification not found"})
		return
	}

	gt := &models.GearType{
		Name:                   in.Name,
		DepartmentID:           in.DepartmentID,
		RequiredCertifications: certs,
	}
	for i, f := range in.DataFields {
		def, err := f.toModel()
		if err != nil {
			c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
			return
		}
		def.Position = i
		gt.DataFields = append(gt.DataFields, *def)
	}
	if err := tc.Repo.CreateGearType(c.Request.Context(), gt); err != nil {
		c.JSON(http.StatusInternalServerError, app.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gt)
}

func (tc *GearTypeController) ListGearTypes(c *gin.Context) {
	gts, err := tc.Repo.ListGearTypes(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, app.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, app.H{"gearTypes": gts})
}

func (tc *GearTypeController) GetGearType(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": "bad gear type id"})
		return
	}
	gt, err := tc.Repo.FindGearType(c.Request.Context(), uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, app.H{"error": "gear type not found"})
		return
	}
	c.JSON(http.StatusOK, gt)
}

// AddDataField appends one field definition to an existing type. Adding
// a required field is rejected once gear of the type exists.
func (tc *GearTypeController) AddDataField(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": "bad gear type id"})
		return
	}
	var in dataFieldInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}
	def, err := in.toModel()
	if err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}
	if err := tc.Repo.AddDataField(c.Request.Context(), uint(id), def); err != nil {
		if errors.Is(err, db.ErrFieldChangeForbidden) {
			c.JSON(http.StatusConflict, app.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, app.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, def)
}
