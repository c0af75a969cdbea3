package routes

import (
	"time"

	"github.com/ExcursionClub/ExCSystem/app"
	"github.com/ExcursionClub/ExCSystem/controllers"
	"github.com/ExcursionClub/ExCSystem/perms"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.Engine, a *app.App) {
	s := controllers.GetSrv(a)
	kioskCtl := controllers.NewKioskController(s)
	gearCtl := controllers.NewGearController(s)
	typeCtl := controllers.NewGearTypeController(s)
	memberCtl := controllers.NewMemberController(s)
	txCtl := controllers.NewTransactionController(s)

	sessMW := app.SessionRequired(a.KioskSessions(), s.Repo)
	seenMW := app.TouchLastSeen(s.Repo, a.RDB, 5*time.Minute)
	needCap := func(capability string) gin.HandlerFunc {
		return app.RequireCapability(capability, s.Repo)
	}

	// ------------------------------
	// Kiosk: door scan is public, the rest rides the scan's session
	// ------------------------------
	kiosk := r.Group("/kiosk")
	{
		kiosk.POST("/checktag", kioskCtl.CheckTag)
	}
	kioskAuth := kiosk.Group("", sessMW, seenMW)
	{
		kioskAuth.POST("/checkout", needCap(perms.CapAuthorizeTransactions), kioskCtl.Checkout)
		kioskAuth.POST("/checkin", needCap(perms.CapAuthorizeTransactions), kioskCtl.Checkin)
		kioskAuth.POST("/logout", kioskCtl.Logout)
	}

	// ------------------------------
	// Gear
	// ------------------------------
	gear := r.Group("/api/gear", sessMW, seenMW)
	{
		gear.GET("", needCap(perms.CapViewGear), gearCtl.ListGearAdmin)
		gear.GET("/:rfid", needCap(perms.CapViewGear), gearCtl.GetGear)
		gear.POST("", needCap(perms.CapAddGear), gearCtl.CreateGear)
		gear.POST("/:rfid/retag", needCap(perms.CapChangeGear), gearCtl.ReTag)
		gear.POST("/:rfid/break", needCap(perms.CapChangeGear), gearCtl.MarkBroken)
		gear.POST("/:rfid/fix", needCap(perms.CapChangeGear), gearCtl.MarkFixed)
		gear.POST("/:rfid/override", needCap(perms.CapChangeGear), gearCtl.Override)
		gear.POST("/:rfid/remove", needCap(perms.CapRemoveGear), gearCtl.Remove)
	}

	// ------------------------------
	// Catalog: departments, certifications, gear types
	// ------------------------------
	catalog := r.Group("/api", sessMW, seenMW)
	{
		catalog.GET("/geartypes", needCap(perms.CapViewGear), typeCtl.ListGearTypes)
		catalog.GET("/geartypes/:id", needCap(perms.CapViewGear), typeCtl.GetGearType)
		catalog.POST("/geartypes", needCap(perms.CapChangeGearType), typeCtl.CreateGearType)
		catalog.POST("/geartypes/:id/fields", needCap(perms.CapChangeGearType), typeCtl.AddDataField)
		catalog.POST("/departments", needCap(perms.CapChangeDepartment), typeCtl.CreateDepartment)
		catalog.POST("/certifications", needCap(perms.CapChangeCertification), typeCtl.CreateCertification)
	}

	// ------------------------------
	// Members
	// ------------------------------
	members := r.Group("/api/members", sessMW, seenMW)
	{
		members.GET("", needCap(perms.CapViewMember), memberCtl.ListMembers)
		members.GET("/:id", needCap(perms.CapViewMember), memberCtl.GetMember)
		members.POST("", needCap(perms.CapAddMember), memberCtl.CreateMember)
		members.PUT("/:id/role", needCap(perms.CapChangeMember), memberCtl.SetRole)
	}

	// ------------------------------
	// Audit trails
	// ------------------------------
	audit := r.Group("/api", sessMW, seenMW)
	{
		audit.GET("/transactions", needCap(perms.CapViewAllTransactions), txCtl.ListTransactions)
		audit.GET("/rfidchecks", needCap(perms.CapViewRFIDChecks), txCtl.ListRFIDChecks)
	}
}
