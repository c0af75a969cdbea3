// controllers/gear_controller.go
package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/ExcursionClub/ExCSystem/app"
	"github.com/ExcursionClub/ExCSystem/db"
	"github.com/ExcursionClub/ExCSystem/fields"
	"github.com/ExcursionClub/ExCSystem/ledger"

	"github.com/gin-gonic/gin"
)

type GearController struct{ *Srv }

func NewGearController(s *Srv) *GearController { return &GearController{Srv: s} }

// Staffers create gear by scanning a fresh tag and filling the type's
// data fields.
func (gc *GearController) CreateGear(c *gin.Context) {
	var in struct {
		RFID            string         `json:"rfid" binding:"required"`
		GearTypeID      uint           `json:"gearTypeId" binding:"required"`
		RequiredCertIDs []uint         `json:"requiredCertIds"`
		Data            map[string]any `json:"data"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}
	authorizer := c.GetString("memberRFID")

	res, err := gc.Ledger.CreateGear(c.Request.Context(), authorizer, in.RFID, in.GearTypeID, in.RequiredCertIDs, in.Data)
	if err != nil {
		c.JSON(httpStatus(err), app.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, app.H{"transaction": res.Transaction, "gear": res.Gear})
}

// Front-desk list with holder, search and status filters.
func (gc *GearController) ListGearAdmin(c *gin.Context) {
	q := db.AdminGearQuery{
		Q:      c.Query("q"),
		Status: c.Query("status"), // "", "available", "out", "overdue", "circulating", "inactive"
	}
	if v := c.DefaultQuery("page", "1"); v != "" {
		q.Page, _ = strconv.Atoi(v)
	}
	if v := c.DefaultQuery("size", "20"); v != "" {
		q.Size, _ = strconv.Atoi(v)
	}

	res, err := gc.Repo.ListGearWithHolder(c.Request.Context(), q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, app.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}

// One piece of gear with its display name and full transaction history.
func (gc *GearController) GetGear(c *gin.Context) {
	rfid := c.Param("rfid")
	g, err := gc.Repo.FindGearByRFID(c.Request.Context(), rfid)
	if err != nil {
		c.JSON(http.StatusNotFound, app.H{"error": "gear not found"})
		return
	}

	name := g.GearType.Name
	if bag, err := fields.DecodeBag(g.GearData); err == nil {
		if dn, err := fields.DisplayName(g.GearType.Name, g.GearType.DataFields, bag); err == nil {
			name = dn
		}
	}

	history, err := gc.Repo.ListGearTransactions(c.Request.Context(), g.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, app.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, app.H{"gear": g, "displayName": name, "history": history})
}

func (gc *GearController) ReTag(c *gin.Context) {
	var in struct {
		NewRFID string `json:"newRfid" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}
	res, err := gc.Ledger.ReTag(c.Request.Context(), c.GetString("memberRFID"), c.Param("rfid"), in.NewRFID)
	if err != nil {
		c.JSON(httpStatus(err), app.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, app.H{"transaction": res.Transaction, "gear": res.Gear})
}

func (gc *GearController) MarkBroken(c *gin.Context) {
	var in struct {
		Damage string `json:"damage" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}
	res, err := gc.Ledger.MarkBroken(c.Request.Context(), c.GetString("memberRFID"), c.Param("rfid"), in.Damage)
	if err != nil {
		c.JSON(httpStatus(err), app.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, app.H{"transaction": res.Transaction, "gear": res.Gear})
}

func (gc *GearController) MarkFixed(c *gin.Context) {
	var in struct {
		Repair string `json:"repair"`
	}
	_ = c.ShouldBindJSON(&in)
	res, err := gc.Ledger.MarkFixed(c.Request.Context(), c.GetString("memberRFID"), c.Param("rfid"), in.Repair)
	if err != nil {
		c.JSON(httpStatus(err), app.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, app.H{"transaction": res.Transaction, "gear": res.Gear})
}

// Remove retires gear permanently. The response carries a warning when
// the department notification could not be delivered.
func (gc *GearController) Remove(c *gin.Context) {
	var in struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}
	res, err := gc.Ledger.Remove(c.Request.Context(), c.GetString("memberRFID"), c.Param("rfid"), in.Reason)
	if err != nil {
		c.JSON(httpStatus(err), app.H{"error": err.Error()})
		return
	}
	out := app.H{"transaction": res.Transaction, "gear": res.Gear}
	if res.Warning != "" {
		out["warning"] = res.Warning
	}
	c.JSON(http.StatusOK, out)
}

// Override applies arbitrary field edits under staffer authority.
func (gc *GearController) Override(c *gin.Context) {
	var in struct {
		DueDate         *time.Time     `json:"dueDate"`
		ClearDueDate    bool           `json:"clearDueDate"`
		RequiredCertIDs []uint         `json:"requiredCertIds"`
		Attributes      map[string]any `json:"attributes"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}
	changes := ledger.ChangeSet{
		DueDate:         in.DueDate,
		ClearDueDate:    in.ClearDueDate,
		RequiredCertIDs: in.RequiredCertIDs,
		Attributes:      in.Attributes,
	}
	res, err := gc.Ledger.Override(c.Request.Context(), c.GetString("memberRFID"), c.Param("rfid"), changes)
	if err != nil {
		c.JSON(httpStatus(err), app.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, app.H{"transaction": res.Transaction, "gear": res.Gear})
}
