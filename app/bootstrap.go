package app

import (
	"context"
	"time"

	"github.com/ExcursionClub/ExCSystem/config"
	"github.com/ExcursionClub/ExCSystem/db"
	"github.com/ExcursionClub/ExCSystem/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BootstrapFirstAdmin provisions an admin member from the environment on
// a fresh database. Skipped when an admin already exists or the config
// leaves the bootstrap identity unset.
func BootstrapFirstAdmin(ctx context.Context, cfg config.Config, repo *db.Repo, log *zap.SugaredLogger) {
	if cfg.BootstrapAdminEmail == "" || cfg.BootstrapAdminRFID == "" {
		return
	}
	n, err := repo.CountMembersWithRole(ctx, models.RoleAdmin)
	if err != nil {
		log.Errorf("bootstrap: count admins: %v", err)
		return
	}
	if n > 0 {
		return
	}

	now := time.Now().UTC()
	m := &models.Member{
		ID:          uuid.NewString(),
		RFID:        cfg.BootstrapAdminRFID,
		Email:       cfg.BootstrapAdminEmail,
		FirstName:   "Admin",
		LastName:    "Admin",
		Role:        models.RoleAdmin,
		DateJoined:  now,
		DateExpires: now.AddDate(10, 0, 0),
	}
	if err := repo.CreateMember(ctx, m); err != nil {
		log.Errorf("bootstrap: create admin: %v", err)
		return
	}
	log.Infow("bootstrap admin created", "email", cfg.BootstrapAdminEmail, "rfid", cfg.BootstrapAdminRFID)
}
