package inits

import (
	"github.com/bwmarrin/discordgo"
	"github.com/charmbracelet/log"
	"github.com/sarulabs/di/v2"
	"github.com/zekrotja/ken"

	"github.com/zekurio/hearth/internal/middlewares"
	"github.com/zekurio/hearth/internal/services/permissions"
	"github.com/zekurio/hearth/internal/slashcommands"
	"github.com/zekurio/hearth/internal/util/static"
)

func InitKen(ctn di.Container) (*ken.Ken, error) {
	s := ctn.Get(static.DiDiscord).(*discordgo.Session)
	p := ctn.Get(static.DiPermissions).(*permissions.Permissions)

	k, err := ken.New(s, ken.Options{
		DependencyProvider: ctn,
		EmbedColors: ken.EmbedColors{
			Default: static.ColorDefault,
			Error:   static.ColorRed,
		},
		OnSystemError: func(context string, err error, args ...interface{}) {
			log.Error("Ken system error", "context", context, "err", err)
		},
		OnCommandError: func(err error, ctx *ken.Ctx) {
			log.Error("Command failed", "command", ctx.Command.Name(), "guild", ctx.GetEvent().GuildID, "err", err)
			// the interaction is answered anyway so the user
			// is not left with a pending response
			ctx.Defer()
			ctx.FollowUpError("The command failed unexpectedly, please try again later.", "").Send()
		},
	})
	if err != nil {
		return nil, err
	}

	err = k.RegisterMiddlewares(
		p,
		middlewares.NewCooldownMiddleware(),
	)
	if err != nil {
		return nil, err
	}

	err = k.RegisterCommands(
		new(slashcommands.VoiceGroup),
		new(slashcommands.VoiceRole),
	)
	if err != nil {
		return nil, err
	}

	return k, nil
}
