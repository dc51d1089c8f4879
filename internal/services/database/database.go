package database

import (
	"github.com/zekurio/hearth/internal/models"
	"github.com/zekurio/hearth/pkg/perms"
)

// Database is the interface for our database service
// which is implemented by sqldb for postgres and sqlite
type Database interface {
	Close() error

	// Guild settings

	GetAlertChannel(guildID string) (string, error)
	SetAlertChannel(guildID, channelID string) error

	// Permissions

	GetPermissions(guildID string) (map[string]perms.PermsArray, error)
	SetPermissions(guildID, roleID string, perms perms.PermsArray) error

	// Voice groups

	AddVoiceGroup(g models.DynamicVoiceGroup) error
	GetVoiceGroup(groupID string) (models.DynamicVoiceGroup, error)
	GetVoiceGroupByChannel(channelID string) (models.DynamicVoiceGroup, error)
	GetVoiceGroups(guildID string) ([]models.DynamicVoiceGroup, error)
	// DeleteVoiceGroup removes the group only. Its channel
	// entries stay until their channels are gone.
	DeleteVoiceGroup(groupID string) error

	// Voice channels

	AddVoiceChannel(c models.DynamicVoiceChannel) error
	GetVoiceChannel(channelID string) (models.DynamicVoiceChannel, error)
	GetVoiceChannels(groupID string) ([]models.DynamicVoiceChannel, error)
	GetGuildVoiceChannels(guildID string) ([]models.DynamicVoiceChannel, error)
	SetVoiceChannelOwner(channelID, ownerID string) error
	DeleteVoiceChannel(channelID string) error

	// Role voice links

	AddRoleVoiceLink(l models.RoleVoiceLink) error
	GetRoleVoiceLinks(guildID string) ([]models.RoleVoiceLink, error)
	DeleteRoleVoiceLink(l models.RoleVoiceLink) error
	DeleteRoleVoiceLinksByChannel(guildID, channelID string) error

	// Data management

	FlushGuildData(guildID string) error
}
