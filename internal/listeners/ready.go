package listeners

import (
	"context"
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/charmbracelet/log"
	"github.com/sarulabs/di/v2"

	"github.com/zekurio/hearth/internal/models"
	"github.com/zekurio/hearth/internal/services/autovoice"
	"github.com/zekurio/hearth/internal/services/scheduler"
	"github.com/zekurio/hearth/internal/util/static"
	"github.com/zekurio/hearth/pkg/discordutils"
)

type ListenerReady struct {
	cfg   models.Config
	av    autovoice.AutovoiceProvider
	sched scheduler.Provider

	once sync.Once
}

func NewListenerReady(ctn di.Container) *ListenerReady {
	return &ListenerReady{
		cfg:   ctn.Get(static.DiConfig).(models.Config),
		av:    ctn.Get(static.DiAutovoice).(autovoice.AutovoiceProvider),
		sched: ctn.Get(static.DiScheduler).(scheduler.Provider),
	}
}

func (l *ListenerReady) Handler(s *discordgo.Session, e *discordgo.Ready) {
	if err := s.UpdateListeningStatus("/voicegroup"); err != nil {
		log.Error("Failed to update status", "err", err)
	}

	log.Info("Signed in!", "Username", fmt.Sprintf("%s#%s", e.User.Username, e.User.Discriminator), "ID", e.User.ID)
	log.Infof("Invite link: %s", discordutils.GetInviteLink(s, static.OAuthScopes, static.InvitePermission))

	// ready is sent again after every full reconnect
	l.once.Do(func() {
		l.schedule(s)
		l.sched.Start()
	})
}

func (l *ListenerReady) schedule(s *discordgo.Session) {
	spec := l.cfg.Autovoice.ReconcileSchedule
	if spec == "" {
		log.Info("Periodic reconciliation is disabled")
		return
	}

	_, err := l.sched.Schedule(spec, func() {
		guildIDs := guildIDs(s)
		log.Debug("Running scheduled reconciliation", "guilds", len(guildIDs))
		if err := l.av.ReconcileAll(context.Background(), guildIDs); err != nil {
			log.Error("Scheduled reconciliation failed", "err", err)
		}
	})
	if err != nil {
		log.Error("Failed to schedule reconciliation", "spec", spec, "err", err)
	}
}

func guildIDs(s *discordgo.Session) []string {
	s.State.RLock()
	defer s.State.RUnlock()

	ids := make([]string, 0, len(s.State.Guilds))
	for _, g := range s.State.Guilds {
		if !g.Unavailable {
			ids = append(ids, g.ID)
		}
	}

	return ids
}
