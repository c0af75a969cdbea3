// Package notify is the boundary to the people who look after gear.
// Delivery (email, chat) lives outside this service; failures here are
// surfaced to callers as warnings, never as operation failures.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ExcursionClub/ExCSystem/models"

	"go.uber.org/zap"
)

type Notifier interface {
	// NotifyDepartment tells the department's senior trip leaders that
	// the listed gear needs their attention.
	NotifyDepartment(ctx context.Context, dept *models.Department, subject, message string, gear []*models.Gear) error
}

// Message renders the body the way the club's automated mails always
// read, so whatever transport picks it up stays recognizable.
func Message(dept *models.Department, message string, gear []*models.Gear) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s STL!\n\nThis is an automated message to let you know that:\n%s\n", dept.Name, message)
	for _, g := range gear {
		fmt.Fprintf(&b, "    %s (%s)\n", g.GearType.Name, g.RFID)
	}
	b.WriteString("From your dearest robot <3")
	return b.String()
}

// LogNotifier writes notifications to the structured log. It stands in
// wherever a mail transport is not wired up.
type LogNotifier struct {
	Log *zap.SugaredLogger
}

func NewLogNotifier(log *zap.SugaredLogger) *LogNotifier { return &LogNotifier{Log: log} }

func (n *LogNotifier) NotifyDepartment(ctx context.Context, dept *models.Department, subject, message string, gear []*models.Gear) error {
	var stls []string
	if len(dept.STLEmails) > 0 {
		// best effort; an unreadable list still gets the notification logged
		_ = json.Unmarshal(dept.STLEmails, &stls)
	}
	n.Log.Infow("department notification",
		"department", dept.Name,
		"stls", stls,
		"subject", subject,
		"body", Message(dept, message, gear),
	)
	return nil
}
