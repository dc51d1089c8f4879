package inits

import (
	"github.com/bwmarrin/discordgo"
	"github.com/sarulabs/di/v2"

	"github.com/zekurio/hearth/internal/models"
	"github.com/zekurio/hearth/internal/services/autovoice"
	"github.com/zekurio/hearth/internal/services/database"
	"github.com/zekurio/hearth/internal/util/static"
	"github.com/zekurio/hearth/pkg/discordutils"
)

func InitDiscordClient(ctn di.Container) discordutils.Client {
	return discordutils.NewClient(ctn.Get(static.DiDiscord).(*discordgo.Session))
}

func InitAutovoice(ctn di.Container) *autovoice.AutovoiceHandler {
	return autovoice.NewAutovoiceHandler(
		ctn.Get(static.DiDatabase).(database.Database),
		ctn.Get(static.DiDiscordClient).(discordutils.Client),
		ctn.Get(static.DiConfig).(models.Config).Autovoice)
}
