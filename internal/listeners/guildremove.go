package listeners

import (
	"github.com/bwmarrin/discordgo"
	"github.com/charmbracelet/log"
	"github.com/sarulabs/di/v2"

	"github.com/zekurio/hearth/internal/services/database"
	"github.com/zekurio/hearth/internal/util/static"
)

type GuildRemove struct {
	db database.Database
}

func NewGuildRemove(ctn di.Container) *GuildRemove {
	return &GuildRemove{
		db: ctn.Get(static.DiDatabase).(database.Database),
	}
}

func (g *GuildRemove) FlushGuildData(s *discordgo.Session, e *discordgo.GuildDelete) {
	// outages are reported as unavailable guilds, keep their data
	if e.Unavailable {
		return
	}

	if err := g.db.FlushGuildData(e.ID); err != nil {
		log.Error("Failed to flush guild data", "guild", e.ID, "err", err)
		return
	}

	log.Info("Flushed guild data", "guild", e.ID)
}
