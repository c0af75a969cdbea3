package app

import (
	"net/http"

	"github.com/ExcursionClub/ExCSystem/db"
	"github.com/ExcursionClub/ExCSystem/perms"
	"github.com/ExcursionClub/ExCSystem/session"

	"github.com/gin-gonic/gin"
)

const KioskSessionCookie = "kiosk_session"

// SessionRequired resolves the kiosk session cookie and loads the member
// behind it. Sets memberID, memberRFID and role in the request context.
func SessionRequired(sess *session.KioskSessionStore, repo *db.Repo) gin.HandlerFunc {
	return func(c *gin.Context) {
		ck, err := c.Request.Cookie(KioskSessionCookie)
		if err != nil || ck.Value == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "unauthorized"})
			return
		}
		ks, err := sess.Get(c.Request.Context(), ck.Value)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "invalid session"})
			return
		}

		// Confirm the member still exists; role may have changed since login.
		m, err := repo.FindMemberByID(c.Request.Context(), ks.MemberID)
		if err != nil {
			_ = sess.Delete(c.Request.Context(), ck.Value)
			c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "unauthorized"})
			return
		}
		c.Set("memberID", m.ID)
		c.Set("memberRFID", m.RFID)
		c.Set("role", m.Role)
		c.Next()
	}
}

// RequireCapability gates a route group on one capability from the role
// ladder. Must run after SessionRequired.
func RequireCapability(capability string, repo *db.Repo) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, ok := c.Get("memberID")
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "unauthorized"})
			return
		}
		mid, _ := v.(string)
		m, err := repo.FindMemberByID(c.Request.Context(), mid)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "unauthorized"})
			return
		}
		if !perms.HasCapability(m, capability) {
			c.AbortWithStatusJSON(http.StatusForbidden, H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}
