package slashcommands

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/zekrotja/ken"

	"github.com/zekurio/hearth/internal/services/autovoice"
	"github.com/zekurio/hearth/internal/services/permissions"
	"github.com/zekurio/hearth/internal/util/static"
)

type VoiceRole struct {
	ken.EphemeralCommand
}

var (
	_ ken.SlashCommand         = (*VoiceRole)(nil)
	_ permissions.CommandPerms = (*VoiceRole)(nil)
)

func (c *VoiceRole) Name() string {
	return "voicerole"
}

func (c *VoiceRole) Description() string {
	return "Grant roles to members connected to voice channels."
}

func (c *VoiceRole) Version() string {
	return "1.0.0"
}

func (c *VoiceRole) Type() discordgo.ApplicationCommandType {
	return discordgo.ChatApplicationCommand
}

func (c *VoiceRole) Options() []*discordgo.ApplicationCommandOption {
	linkOptions := func() []*discordgo.ApplicationCommandOption {
		return []*discordgo.ApplicationCommandOption{
			voiceChannelOption("The voice channel or group template.", true),
			{
				Type:        discordgo.ApplicationCommandOptionRole,
				Name:        "role",
				Description: "The role.",
				Required:    true,
			},
		}
	}

	return []*discordgo.ApplicationCommandOption{
		{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        "link",
			Description: "Grant a role to members in a voice channel.",
			Options:     linkOptions(),
		},
		{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        "unlink",
			Description: "Remove a role link.",
			Options:     linkOptions(),
		},
		{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        "list",
			Description: "List all role links of this guild.",
		},
	}
}

func (c *VoiceRole) Perm() string {
	return "ht.guild.config.voice"
}

func (c *VoiceRole) SubPerms() []permissions.SubCommandPerms {
	return nil
}

func (c *VoiceRole) Cooldown() int {
	return 3
}

func (c *VoiceRole) Run(ctx ken.Context) (err error) {
	if err = ctx.Defer(); err != nil {
		return
	}

	err = ctx.HandleSubCommands(
		ken.SubCommandHandler{
			Name: "link",
			Run:  c.link,
		},
		ken.SubCommandHandler{
			Name: "unlink",
			Run:  c.unlink,
		},
		ken.SubCommandHandler{
			Name: "list",
			Run:  c.list,
		},
	)

	return
}

func (c *VoiceRole) link(ctx ken.SubCommandContext) (err error) {
	av := ctx.Get(static.DiAutovoice).(autovoice.AutovoiceProvider)

	channelID := ctx.Options().GetByName("channel").ChannelValue(ctx).ID
	roleID := ctx.Options().GetByName("role").RoleValue(ctx).ID

	if err = av.LinkRole(context.Background(), ctx.GetEvent().GuildID, channelID, roleID); err != nil {
		return respondErr(ctx, err)
	}

	return ctx.FollowUpEmbed(&discordgo.MessageEmbed{
		Color:       static.ColorGreen,
		Description: fmt.Sprintf("Members in <#%s> will get the role <@&%s>.", channelID, roleID),
	}).Send().Error
}

func (c *VoiceRole) unlink(ctx ken.SubCommandContext) (err error) {
	av := ctx.Get(static.DiAutovoice).(autovoice.AutovoiceProvider)

	channelID := ctx.Options().GetByName("channel").ChannelValue(ctx).ID
	roleID := ctx.Options().GetByName("role").RoleValue(ctx).ID

	if err = av.UnlinkRole(context.Background(), ctx.GetEvent().GuildID, channelID, roleID); err != nil {
		return respondErr(ctx, err)
	}

	return ctx.FollowUpEmbed(&discordgo.MessageEmbed{
		Color:       static.ColorGreen,
		Description: fmt.Sprintf("Removed the link of <@&%s> to <#%s>.", roleID, channelID),
	}).Send().Error
}

func (c *VoiceRole) list(ctx ken.SubCommandContext) (err error) {
	av := ctx.Get(static.DiAutovoice).(autovoice.AutovoiceProvider)

	links, err := av.RoleLinks(ctx.GetEvent().GuildID)
	if err != nil {
		return err
	}

	if len(links) == 0 {
		return ctx.FollowUpEmbed(&discordgo.MessageEmbed{
			Color:       static.ColorGray,
			Description: "There are no role links yet, create one with `/voicerole link`.",
		}).Send().Error
	}

	var sb strings.Builder
	for _, l := range links {
		fmt.Fprintf(&sb, "<#%s> → <@&%s>\n", l.ChannelID, l.RoleID)
	}

	return ctx.FollowUpEmbed(&discordgo.MessageEmbed{
		Color:       static.ColorDefault,
		Title:       "Role links",
		Description: sb.String(),
	}).Send().Error
}
