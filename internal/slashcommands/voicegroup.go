package slashcommands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/zekrotja/ken"

	"github.com/zekurio/hearth/internal/services/autovoice"
	"github.com/zekurio/hearth/internal/services/permissions"
	"github.com/zekurio/hearth/internal/util/static"
)

type VoiceGroup struct {
	ken.EphemeralCommand
}

var (
	_ ken.SlashCommand         = (*VoiceGroup)(nil)
	_ permissions.CommandPerms = (*VoiceGroup)(nil)
)

func (c *VoiceGroup) Name() string {
	return "voicegroup"
}

func (c *VoiceGroup) Description() string {
	return "Manage dynamic voice groups."
}

func (c *VoiceGroup) Version() string {
	return "1.0.0"
}

func (c *VoiceGroup) Type() discordgo.ApplicationCommandType {
	return discordgo.ChatApplicationCommand
}

func (c *VoiceGroup) Options() []*discordgo.ApplicationCommandOption {
	return []*discordgo.ApplicationCommandOption{
		{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        "create",
			Description: "Turn a voice channel into the template of a voice group.",
			Options: []*discordgo.ApplicationCommandOption{
				voiceChannelOption("The template channel.", true),
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "name",
					Description: "Name of the group, defaults to the channel name.",
				},
				{
					Type:        discordgo.ApplicationCommandOptionBoolean,
					Name:        "public",
					Description: "Whether everyone can join the spawned channels (default: true).",
				},
			},
		},
		{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        "delete",
			Description: "Remove a voice group and all of its channels.",
			Options: []*discordgo.ApplicationCommandOption{
				voiceChannelOption("The template channel of the group.", true),
			},
		},
		{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        "list",
			Description: "List all voice groups of this guild.",
		},
		{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        "alerts",
			Description: "Set the channel alerts are posted to, omit to disable alerts.",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:         discordgo.ApplicationCommandOptionChannel,
					Name:         "channel",
					Description:  "The alert channel.",
					ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText},
				},
			},
		},
	}
}

func (c *VoiceGroup) Perm() string {
	return "ht.guild.config.voice"
}

func (c *VoiceGroup) SubPerms() []permissions.SubCommandPerms {
	return nil
}

func (c *VoiceGroup) Cooldown() int {
	return 3
}

func (c *VoiceGroup) Run(ctx ken.Context) (err error) {
	if err = ctx.Defer(); err != nil {
		return
	}

	err = ctx.HandleSubCommands(
		ken.SubCommandHandler{
			Name: "create",
			Run:  c.create,
		},
		ken.SubCommandHandler{
			Name: "delete",
			Run:  c.delete,
		},
		ken.SubCommandHandler{
			Name: "list",
			Run:  c.list,
		},
		ken.SubCommandHandler{
			Name: "alerts",
			Run:  c.alerts,
		},
	)

	return
}

func (c *VoiceGroup) create(ctx ken.SubCommandContext) (err error) {
	av := ctx.Get(static.DiAutovoice).(autovoice.AutovoiceProvider)

	channelID := ctx.Options().GetByName("channel").ChannelValue(ctx).ID

	var name string
	if v, ok := ctx.Options().GetByNameOptional("name"); ok {
		name = strings.TrimSpace(v.StringValue())
	}

	public := true
	if v, ok := ctx.Options().GetByNameOptional("public"); ok {
		public = v.BoolValue()
	}

	g, err := av.CreateGroup(context.Background(), ctx.GetEvent().GuildID, channelID, name, public)
	if err != nil {
		return respondErr(ctx, err)
	}

	visibility := "public"
	if !g.Public {
		visibility = "private"
	}

	return ctx.FollowUpEmbed(&discordgo.MessageEmbed{
		Color: static.ColorGreen,
		Description: fmt.Sprintf("Created the %s voice group **%s**. Join <#%s> to get your own channel.",
			visibility, g.Name, g.ChannelID),
	}).Send().Error
}

func (c *VoiceGroup) delete(ctx ken.SubCommandContext) (err error) {
	av := ctx.Get(static.DiAutovoice).(autovoice.AutovoiceProvider)

	channelID := ctx.Options().GetByName("channel").ChannelValue(ctx).ID

	g, err := av.DeleteGroup(context.Background(), ctx.GetEvent().GuildID, channelID)
	if err != nil {
		return respondErr(ctx, err)
	}

	return ctx.FollowUpEmbed(&discordgo.MessageEmbed{
		Color:       static.ColorGreen,
		Description: fmt.Sprintf("Removed the voice group **%s** and all of its channels.", g.Name),
	}).Send().Error
}

func (c *VoiceGroup) list(ctx ken.SubCommandContext) (err error) {
	av := ctx.Get(static.DiAutovoice).(autovoice.AutovoiceProvider)

	groups, err := av.Groups(ctx.GetEvent().GuildID)
	if err != nil {
		return err
	}

	if len(groups) == 0 {
		return ctx.FollowUpEmbed(&discordgo.MessageEmbed{
			Color:       static.ColorGray,
			Description: "There are no voice groups yet, create one with `/voicegroup create`.",
		}).Send().Error
	}

	var sb strings.Builder
	for _, g := range groups {
		visibility := "public"
		if !g.Public {
			visibility = "private"
		}
		fmt.Fprintf(&sb, "<#%s> **%s** (%s), %d active\n", g.ChannelID, g.Name, visibility, len(g.Channels))
	}

	return ctx.FollowUpEmbed(&discordgo.MessageEmbed{
		Color:       static.ColorDefault,
		Title:       "Voice groups",
		Description: sb.String(),
	}).Send().Error
}

func (c *VoiceGroup) alerts(ctx ken.SubCommandContext) (err error) {
	av := ctx.Get(static.DiAutovoice).(autovoice.AutovoiceProvider)

	var channelID string
	if v, ok := ctx.Options().GetByNameOptional("channel"); ok {
		channelID = v.ChannelValue(ctx).ID
	}

	if err = av.SetAlertChannel(ctx.GetEvent().GuildID, channelID); err != nil {
		return respondErr(ctx, err)
	}

	msg := "Alerts are disabled."
	if channelID != "" {
		msg = fmt.Sprintf("Alerts will be posted to <#%s>.", channelID)
	}

	return ctx.FollowUpEmbed(&discordgo.MessageEmbed{
		Color:       static.ColorGreen,
		Description: msg,
	}).Send().Error
}

func voiceChannelOption(description string, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionChannel,
		Name:        "channel",
		Description: description,
		Required:    required,
		ChannelTypes: []discordgo.ChannelType{
			discordgo.ChannelTypeGuildVoice,
			discordgo.ChannelTypeGuildStageVoice,
		},
	}
}

// respondErr answers with a readable message for errors caused by
// invalid input and passes everything else on to the error handler.
func respondErr(ctx ken.SubCommandContext, err error) error {
	for _, e := range []error{
		autovoice.ErrChannelNotFound,
		autovoice.ErrNotVoiceChannel,
		autovoice.ErrNotTextChannel,
		autovoice.ErrAlreadyGroup,
		autovoice.ErrDynamicChannel,
		autovoice.ErrGroupNotFound,
		autovoice.ErrRoleNotFound,
		autovoice.ErrRoleNotAssignable,
	} {
		if errors.Is(err, e) {
			msg := err.Error()
			return ctx.FollowUpError(strings.ToUpper(msg[:1])+msg[1:]+".", "").Send().Error
		}
	}
	return err
}
