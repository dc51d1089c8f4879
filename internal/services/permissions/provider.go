package permissions

import (
	"github.com/bwmarrin/discordgo"
	"github.com/zekrotja/ken"

	"github.com/zekurio/hearth/pkg/perms"
)

type PermsProvider interface {
	ken.MiddlewareBefore

	// GetPerms collects the permissions of a user from their roles.
	GetPerms(session *discordgo.Session, guildID, userID string) (perm perms.PermsArray, err error)

	// GetMemberPerms collects the permissions of a member from their roles.
	GetMemberPerms(session *discordgo.Session, guildID string, memberID string) (perms.PermsArray, error)

	// HasPerms checks if a user has the given permission.
	HasPerms(session *discordgo.Session, guildID, userID, perm string) (ok bool, err error)
}

// CommandPerms is implemented by commands which
// require a permission to be executed.
type CommandPerms interface {
	ken.Command

	// Perm returns the permission domain name
	// required to run the command.
	Perm() string

	// SubPerms returns additional permissions
	// required for single sub commands.
	SubPerms() []SubCommandPerms
}

type SubCommandPerms struct {
	// Name of the sub command
	Name string
	// Perm is appended to the command's permission,
	// so "delete" on "ht.guild.config.voice" requires
	// "ht.guild.config.voice.delete".
	Perm string
}
