package discordutils

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// GetGuild returns the guild from the state cache or
// requests it from the API if it is not cached.
func GetGuild(s *discordgo.Session, guildID string) (*discordgo.Guild, error) {
	if g, err := s.State.Guild(guildID); err == nil {
		return g, nil
	}
	return s.Guild(guildID)
}

// GetChannel returns the channel from the state cache or
// requests it from the API if it is not cached.
func GetChannel(s *discordgo.Session, channelID string) (*discordgo.Channel, error) {
	if ch, err := s.State.Channel(channelID); err == nil {
		return ch, nil
	}
	return s.Channel(channelID)
}

// GetMember returns the member from the state cache or
// requests it from the API if it is not cached.
func GetMember(s *discordgo.Session, guildID, userID string) (*discordgo.Member, error) {
	if m, err := s.State.Member(guildID, userID); err == nil {
		return m, nil
	}
	return s.GuildMember(guildID, userID)
}

// GetUser returns a user by ID, preferring members cached in the state.
func GetUser(s *discordgo.Session, userID string) (*discordgo.User, error) {
	if s.State.User != nil && s.State.User.ID == userID {
		return s.State.User, nil
	}
	return s.User(userID)
}

// IsAdmin returns true if one of the members roles has
// the administrator permission.
func IsAdmin(g *discordgo.Guild, m *discordgo.Member) bool {
	if m == nil || g == nil {
		return false
	}

	for _, r := range g.Roles {
		if r.Permissions&discordgo.PermissionAdministrator == 0 {
			continue
		}
		for _, mr := range m.Roles {
			if r.ID == mr {
				return true
			}
		}
	}

	return false
}

// DisplayName returns the nickname of a member or the
// username if no nickname is set.
func DisplayName(m *discordgo.Member) string {
	if m == nil {
		return ""
	}
	if m.Nick != "" {
		return m.Nick
	}
	if m.User != nil {
		return m.User.Username
	}
	return ""
}

// SendMessageDM opens a DM channel with the user and sends content.
func SendMessageDM(s *discordgo.Session, userID, content string) (*discordgo.Message, error) {
	ch, err := s.UserChannelCreate(userID)
	if err != nil {
		return nil, err
	}
	return s.ChannelMessageSend(ch.ID, content)
}

// GetInviteLink returns an OAuth2 invite link for the bot
// requesting the given permissions.
func GetInviteLink(s *discordgo.Session, scopes string, permissions int64) string {
	return fmt.Sprintf("https://discord.com/api/oauth2/authorize?client_id=%s&scope=%s&permissions=%d",
		s.State.User.ID, scopes, permissions)
}
