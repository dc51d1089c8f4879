package autovoice

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/zekurio/hearth/internal/services/database"
	"github.com/zekurio/hearth/pkg/discordutils"
)

// alerter posts messages to the alert channel of a guild.
// Alerts of a guild are dropped while it is on cooldown.
type alerter struct {
	db       database.Database
	dc       discordutils.Client
	log      *log.Logger
	cooldown time.Duration

	mtx      sync.Mutex
	limiters map[string]*rate.Limiter
}

func newAlerter(db database.Database, dc discordutils.Client, logger *log.Logger, cooldown time.Duration) *alerter {
	return &alerter{
		db:       db,
		dc:       dc,
		log:      logger,
		cooldown: cooldown,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (a *alerter) allow(guildID string) bool {
	a.mtx.Lock()
	defer a.mtx.Unlock()

	l, ok := a.limiters[guildID]
	if !ok {
		limit := rate.Inf
		if a.cooldown > 0 {
			limit = rate.Every(a.cooldown)
		}
		l = rate.NewLimiter(limit, 1)
		a.limiters[guildID] = l
	}

	return l.Allow()
}

func (a *alerter) send(guildID, format string, args ...any) {
	chID, err := a.db.GetAlertChannel(guildID)
	if err != nil {
		a.log.Error("Failed to get alert channel", "guild", guildID, "err", err)
		return
	}
	if chID == "" {
		return
	}

	if !a.allow(guildID) {
		a.log.Debug("Alert dropped, guild on cooldown", "guild", guildID)
		return
	}

	if err = a.dc.SendMessage(chID, fmt.Sprintf(format, args...)); err != nil {
		a.log.Warn("Failed to send alert", "guild", guildID, "channel", chID, "err", err)
	}
}

// forbidden sends an alert if err is a missing permission error
// and reports whether it did classify as one.
func (a *alerter) forbidden(guildID string, err error, action string) bool {
	if !discordutils.IsForbidden(err) {
		return false
	}

	a.log.Warn("Missing permissions", "guild", guildID, "action", action, "err", err)
	a.send(guildID, ":warning: I am missing permissions to %s. Please check my role and channel permissions.", action)
	return true
}
