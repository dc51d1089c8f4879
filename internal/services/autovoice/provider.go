package autovoice

import (
	"context"

	"github.com/bwmarrin/discordgo"

	"github.com/zekurio/hearth/internal/models"
)

type AutovoiceProvider interface {
	// CreateGroup turns the voice channel into the template
	// of a new dynamic voice group.
	CreateGroup(ctx context.Context, guildID, channelID, name string, public bool) (models.DynamicVoiceGroup, error)

	// DeleteGroup removes the group of the given template
	// channel and every channel spawned from it.
	DeleteGroup(ctx context.Context, guildID, channelID string) (models.DynamicVoiceGroup, error)

	// Groups returns the groups of a guild together
	// with their currently active channels.
	Groups(guildID string) ([]models.VoiceGroupResponse, error)

	// LinkRole links the role to a voice channel, members in
	// the channel are granted the role.
	LinkRole(ctx context.Context, guildID, channelID, roleID string) error

	// UnlinkRole removes a link created by LinkRole and revokes
	// the role from members which no longer qualify for it.
	UnlinkRole(ctx context.Context, guildID, channelID, roleID string) error

	// RoleLinks returns all role links of a guild.
	RoleLinks(guildID string) ([]models.RoleVoiceLink, error)

	// SetAlertChannel sets the channel administrator alerts
	// are posted to. An empty ID disables alerts.
	SetAlertChannel(guildID, channelID string) error

	// HandleVoiceStateUpdate applies a member's voice
	// state transition from before to after.
	HandleVoiceStateUpdate(ctx context.Context, before, after *discordgo.VoiceState) error

	// HandleChannelDelete prunes everything referencing
	// the deleted channel.
	HandleChannelDelete(ctx context.Context, ch *discordgo.Channel) error

	// Reconcile repairs the drift between the database
	// and the live state of a guild.
	Reconcile(ctx context.Context, guildID string) error

	// ReconcileAll runs Reconcile for all given guilds.
	ReconcileAll(ctx context.Context, guildIDs []string) error
}
