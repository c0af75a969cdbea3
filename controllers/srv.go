// controllers/srv.go
package controllers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ExcursionClub/ExCSystem/app"
	"github.com/ExcursionClub/ExCSystem/config"
	"github.com/ExcursionClub/ExCSystem/db"
	"github.com/ExcursionClub/ExCSystem/ledger"
	"github.com/ExcursionClub/ExCSystem/session"

	"go.uber.org/zap"
)

type Srv struct {
	Repo      *db.Repo
	Ledger    *ledger.Ledger
	Sess      *session.KioskSessionStore
	Log       *zap.SugaredLogger
	WebOrigin string
	Cfg       config.Config
}

func GetSrv(a *app.App) *Srv {
	return &Srv{
		Repo:      a.Repo,
		Ledger:    a.Ledger,
		Sess:      a.KioskSessions(),
		Log:       a.Log,
		WebOrigin: a.Config.WebOrigin,
		Cfg:       a.Config,
	}
}

// --- helpers ---

// Kiosk session cookie, HttpOnly. Secure tracks the deployed origin.
func (s *Srv) setKioskCookie(w http.ResponseWriter, sessionID string, maxAge time.Duration) {
	secure := strings.HasPrefix(s.WebOrigin, "https://")
	http.SetCookie(w, &http.Cookie{
		Name:     app.KioskSessionCookie,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   secure,
		MaxAge:   int(maxAge / time.Second),
	})
}

// httpStatus maps the ledger's sentinel errors onto response codes.
func httpStatus(err error) int {
	switch {
	case errors.Is(err, ledger.ErrNotAuthorized),
		errors.Is(err, ledger.ErrMissingCertification):
		return http.StatusForbidden
	case errors.Is(err, ledger.ErrGearUnavailable),
		errors.Is(err, ledger.ErrTagCollision):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrStructuralMismatch):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
