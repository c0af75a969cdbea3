package main

import (
	"context"

	"github.com/ExcursionClub/ExCSystem/app"
	"github.com/ExcursionClub/ExCSystem/config"
	"github.com/ExcursionClub/ExCSystem/routes"
	"github.com/ExcursionClub/ExCSystem/tasks"
)

func main() {
	config.LoadEnv()

	application := app.MustNew()
	defer application.Close()

	app.BootstrapFirstAdmin(context.Background(), application.Config, application.Repo, application.Log)

	sweeper := tasks.NewSweeper(application.Repo, application.Ledger, application.Log, application.Config)
	if err := sweeper.Start(); err != nil {
		application.Log.Fatalf("start sweeps: %v", err)
	}
	defer sweeper.Stop()

	r := application.Router

	// Health
	r.GET("/healthz", func(c *app.Ctx) { c.JSON(200, app.H{"ok": true}) })

	routes.RegisterRoutes(r, application)

	application.Log.Infof("listening on :%s", application.Config.Port)
	if err := r.Run(":" + application.Config.Port); err != nil {
		application.Log.Fatalf("server: %v", err)
	}
}
