// controllers/kiosk_controller.go
package controllers

import (
	"net/http"
	"regexp"
	"time"

	"github.com/ExcursionClub/ExCSystem/app"
	"github.com/ExcursionClub/ExCSystem/models"
	"github.com/ExcursionClub/ExCSystem/perms"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type KioskController struct{ *Srv }

func NewKioskController(s *Srv) *KioskController { return &KioskController{Srv: s} }

var tagPattern = regexp.MustCompile(`^[0-9]{10}$`)

// CheckTag is the door/login endpoint. Every scan is recorded, valid or
// not; a scan from an active member also opens a kiosk session.
func (kc *KioskController) CheckTag(c *gin.Context) {
	var in struct {
		RFID string `json:"rfid" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}

	scanned := in.RFID
	if len(scanned) > 12 {
		scanned = scanned[:12]
	}
	check := &models.RFIDCheck{RFIDChecked: scanned}
	defer func() {
		if err := kc.Repo.CreateRFIDCheck(c.Request.Context(), check); err != nil {
			kc.Log.Errorf("record rfid check: %v", err)
		}
	}()

	if !tagPattern.MatchString(in.RFID) {
		check.Message = "malformed tag"
		c.JSON(http.StatusBadRequest, app.H{"valid": false, "error": "malformed tag"})
		return
	}

	m, err := kc.Repo.FindMemberByRFID(c.Request.Context(), in.RFID)
	if err != nil {
		check.Message = "unknown tag"
		c.JSON(http.StatusOK, app.H{"valid": false})
		return
	}
	if !perms.HasCapability(m, perms.CapIsActiveMember) {
		check.Message = "membership expired"
		c.JSON(http.StatusOK, app.H{"valid": false, "error": "membership expired"})
		return
	}

	check.WasValid = true
	id := uuid.NewString()
	if err := kc.Sess.Create(c.Request.Context(), id, m.ID, m.RFID, m.Role); err != nil {
		c.JSON(http.StatusInternalServerError, app.H{"error": err.Error()})
		return
	}
	kc.setKioskCookie(c.Writer, id, kc.Cfg.SessionTTL)
	c.JSON(http.StatusOK, app.H{
		"valid":  true,
		"member": app.H{"id": m.ID, "name": m.FullName(), "role": m.Role},
	})
}

// Checkout rents gear to a member. The scanning staffer is the
// authorizer; omitting dueDate applies the configured default period.
func (kc *KioskController) Checkout(c *gin.Context) {
	var in struct {
		GearRFID   string     `json:"gearRfid" binding:"required"`
		MemberRFID string     `json:"memberRfid" binding:"required"`
		DueDate    *time.Time `json:"dueDate"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}
	authorizer := c.GetString("memberRFID")

	due := time.Now().UTC().Add(kc.Cfg.CheckoutDuration)
	if in.DueDate != nil {
		due = in.DueDate.UTC()
	}

	res, err := kc.Ledger.CheckOut(c.Request.Context(), authorizer, in.GearRFID, in.MemberRFID, due)
	if err != nil {
		c.JSON(httpStatus(err), app.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, app.H{"transaction": res.Transaction, "gear": res.Gear})
}

// Checkin returns gear to stock.
func (kc *KioskController) Checkin(c *gin.Context) {
	var in struct {
		GearRFID string `json:"gearRfid" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}
	authorizer := c.GetString("memberRFID")

	res, err := kc.Ledger.CheckIn(c.Request.Context(), authorizer, in.GearRFID)
	if err != nil {
		c.JSON(httpStatus(err), app.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, app.H{"transaction": res.Transaction, "gear": res.Gear})
}

func (kc *KioskController) Logout(c *gin.Context) {
	if ck, err := c.Request.Cookie(app.KioskSessionCookie); err == nil && ck.Value != "" {
		_ = kc.Sess.Delete(c.Request.Context(), ck.Value)
	}
	kc.setKioskCookie(c.Writer, "", -time.Second)
	c.JSON(http.StatusOK, app.H{"ok": true})
}
