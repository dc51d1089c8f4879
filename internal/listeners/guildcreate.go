package listeners

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/charmbracelet/log"
	"github.com/sarulabs/di/v2"

	"github.com/zekurio/hearth/internal/models"
	"github.com/zekurio/hearth/internal/services/autovoice"
	"github.com/zekurio/hearth/internal/util/static"
	"github.com/zekurio/hearth/pkg/discordutils"
)

// joinWindow is the age up to which a guild counts as
// freshly joined rather than as part of the initial state.
const joinWindow = 30 * time.Second

type GuildCreate struct {
	cfg models.Config
	av  autovoice.AutovoiceProvider

	now   func() time.Time
	leave func(s *discordgo.Session, e *discordgo.GuildCreate, limit int) error
}

func NewGuildCreate(ctn di.Container) *GuildCreate {
	return &GuildCreate{
		cfg:   ctn.Get(static.DiConfig).(models.Config),
		av:    ctn.Get(static.DiAutovoice).(autovoice.AutovoiceProvider),
		now:   time.Now,
		leave: leaveGuild,
	}
}

// Handler enforces the guild limit and repairs the voice groups
// of the guild every time it becomes available, which includes
// reconnects. Guilds left due to the limit are not reconciled.
func (g *GuildCreate) Handler(s *discordgo.Session, e *discordgo.GuildCreate) {
	if e.Unavailable {
		return
	}

	if g.exceedsLimit(s, e) {
		log.Debug("Guild limit triggered", "guild", e.Guild.ID)
		if err := g.leave(s, e, g.cfg.Discord.GuildLimit); err != nil {
			log.Error("Failed to leave guild", "guild", e.Guild.ID, "err", err)
			return
		}
		log.Debug("Left guild due to guild limit", "guild", e.Guild.ID)
		return
	}

	log.Debug("Reconciling voice groups", "guild", e.Guild.ID)

	if err := g.av.Reconcile(context.Background(), e.Guild.ID); err != nil {
		log.Error("Reconciliation failed", "guild", e.Guild.ID, "err", err)
	}
}

func (g *GuildCreate) exceedsLimit(s *discordgo.Session, e *discordgo.GuildCreate) bool {
	limit := g.cfg.Discord.GuildLimit
	if limit == -1 || g.now().Sub(e.JoinedAt) > joinWindow {
		return false
	}

	s.State.RLock()
	defer s.State.RUnlock()

	return len(s.State.Guilds) > limit
}

func leaveGuild(s *discordgo.Session, e *discordgo.GuildCreate, limit int) error {
	_, err := discordutils.SendMessageDM(s, e.OwnerID,
		fmt.Sprintf("Sorry, the instance owner disallowed me to join more than %d guilds.", limit))
	if err != nil {
		log.Error("Failed to send message", "guild", e.Guild.ID, "user", e.OwnerID, "err", err)
	}

	return s.GuildLeave(e.Guild.ID)
}
