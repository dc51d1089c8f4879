package static

import "github.com/bwmarrin/discordgo"

const (
	DiConfig         = "config"
	DiDatabase       = "database"
	DiDiscord        = "discord"
	DiDiscordClient  = "discordClient"
	DiCommandHandler = "commandHandler"
	DiPermissions    = "permissions"
	DiAutovoice      = "autovoice"
	DiScheduler      = "scheduler"
	DiWebserver      = "webserver"
)

const (
	ColorDefault = 0x7169ba
	ColorRed     = 0xff2b66
	ColorGreen   = 0x92f026
	ColorYellow  = 0xffff38
	ColorGray    = 0x929292

	OAuthScopes = "bot%20applications.commands"

	InvitePermission = discordgo.PermissionEmbedLinks |
		discordgo.PermissionSendMessages |
		discordgo.PermissionManageRoles |
		discordgo.PermissionManageChannels |
		discordgo.PermissionVoiceMoveMembers

	Intents = discordgo.IntentsGuilds |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildVoiceStates
)

var (
	DefaultAdminRules = []string{
		"+ht.guild.*",
		"+ht.etc.*",
	}

	DefaultUserRules = []string{
		"+ht.etc.*",
	}
)
