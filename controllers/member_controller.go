// controllers/member_controller.go
package controllers

import (
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/ExcursionClub/ExCSystem/app"
	"github.com/ExcursionClub/ExCSystem/models"
	"github.com/ExcursionClub/ExCSystem/perms"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type MemberController struct{ *Srv }

func NewMemberController(s *Srv) *MemberController { return &MemberController{Srv: s} }

// New members start at the bottom of the ladder. Their tag shares the
// id namespace with gear tags, so the collision check covers both.
func (mc *MemberController) CreateMember(c *gin.Context) {
	var in struct {
		RFID           string `json:"rfid" binding:"required"`
		Email          string `json:"email" binding:"required"`
		FirstName      string `json:"firstName"`
		LastName       string `json:"lastName"`
		DurationMonths int    `json:"durationMonths"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}
	if !tagPattern.MatchString(in.RFID) {
		c.JSON(http.StatusBadRequest, app.H{"error": "tag must be 10 digits"})
		return
	}
	if exists, err := mc.Repo.TagIDExists(c.Request.Context(), in.RFID); err != nil {
		c.JSON(http.StatusInternalServerError, app.H{"error": err.Error()})
		return
	} else if exists {
		c.JSON(http.StatusConflict, app.H{"error": "tag already in use"})
		return
	}

	months := in.DurationMonths
	if months <= 0 {
		months = 12
	}
	now := time.Now().UTC()
	m := &models.Member{
		ID:          uuid.NewString(),
		RFID:        in.RFID,
		Email:       in.Email,
		FirstName:   in.FirstName,
		LastName:    in.LastName,
		Role:        models.RoleJustJoined,
		DateJoined:  now,
		DateExpires: now.AddDate(0, months, 0),
	}
	if err := mc.Repo.CreateMember(c.Request.Context(), m); err != nil {
		c.JSON(http.StatusInternalServerError, app.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (mc *MemberController) ListMembers(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))
	res, err := mc.Repo.ListMembers(c.Request.Context(), c.Query("q"), page, size)
	if err != nil {
		c.JSON(http.StatusInternalServerError, app.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (mc *MemberController) GetMember(c *gin.Context) {
	m, err := mc.Repo.FindMemberByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, app.H{"error": "member not found"})
		return
	}
	c.JSON(http.StatusOK, app.H{
		"member":       m,
		"capabilities": capabilityList(m.Role),
	})
}

// SetRole promotes or demotes along the ladder. Sessions are revoked so
// a demotion takes effect on the next scan.
func (mc *MemberController) SetRole(c *gin.Context) {
	var in struct {
		Role string `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}
	if perms.Rank(in.Role) < 0 {
		c.JSON(http.StatusBadRequest, app.H{"error": "unknown role"})
		return
	}
	id := c.Param("id")
	if _, err := mc.Repo.FindMemberByID(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusNotFound, app.H{"error": "member not found"})
		return
	}
	if err := mc.Repo.SetMemberRole(c.Request.Context(), id, in.Role); err != nil {
		c.JSON(http.StatusInternalServerError, app.H{"error": err.Error()})
		return
	}
	if err := mc.Sess.RevokeAllForMember(c.Request.Context(), id); err != nil {
		mc.Log.Errorf("revoke sessions for %s: %v", id, err)
	}
	c.JSON(http.StatusOK, app.H{"ok": true})
}

func capabilityList(role string) []string {
	caps := perms.EffectiveCapabilities(role)
	out := make([]string, 0, len(caps))
	for name := range caps {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
