package discordutils

import (
	"github.com/bwmarrin/discordgo"
)

// Client is the subset of the Discord API which is used by the services
// of this bot. It is implemented by SessionClient on top of a
// discordgo.Session and can be replaced in tests.
type Client interface {
	// SelfID returns the user ID of the bot.
	SelfID() string

	Channel(channelID string) (*discordgo.Channel, error)
	GuildChannels(guildID string) ([]*discordgo.Channel, error)
	Role(guildID, roleID string) (*discordgo.Role, error)
	Member(guildID, userID string) (*discordgo.Member, error)
	GuildMembers(guildID string) ([]*discordgo.Member, error)

	// VoiceStates returns the current voice states of a guild.
	VoiceStates(guildID string) ([]*discordgo.VoiceState, error)

	CreateChannel(guildID string, data discordgo.GuildChannelCreateData) (*discordgo.Channel, error)
	RenameChannel(channelID, name string) error
	DeleteChannel(channelID string) error
	ReorderChannels(guildID string, channels []*discordgo.Channel) error

	SetPermission(channelID, targetID string, targetType discordgo.PermissionOverwriteType, allow, deny int64) error
	DeletePermission(channelID, targetID string) error

	MoveMember(guildID, userID, channelID string) error
	AddRole(guildID, userID, roleID string) error
	RemoveRole(guildID, userID, roleID string) error

	SendMessage(channelID, content string) error
}

// SessionClient implements Client using a discordgo session. Lookups
// are served from the session state when possible and fall back to
// the REST API otherwise.
type SessionClient struct {
	s *discordgo.Session
}

var _ Client = (*SessionClient)(nil)

func NewClient(s *discordgo.Session) *SessionClient {
	return &SessionClient{s: s}
}

func (c *SessionClient) SelfID() string {
	if c.s.State == nil || c.s.State.User == nil {
		return ""
	}
	return c.s.State.User.ID
}

func (c *SessionClient) Channel(channelID string) (*discordgo.Channel, error) {
	return GetChannel(c.s, channelID)
}

func (c *SessionClient) GuildChannels(guildID string) ([]*discordgo.Channel, error) {
	if g, err := c.s.State.Guild(guildID); err == nil {
		c.s.State.RLock()
		defer c.s.State.RUnlock()
		chs := make([]*discordgo.Channel, len(g.Channels))
		copy(chs, g.Channels)
		return chs, nil
	}
	return c.s.GuildChannels(guildID)
}

func (c *SessionClient) Role(guildID, roleID string) (*discordgo.Role, error) {
	if r, err := c.s.State.Role(guildID, roleID); err == nil {
		return r, nil
	}

	roles, err := c.s.GuildRoles(guildID)
	if err != nil {
		return nil, err
	}
	for _, r := range roles {
		if r.ID == roleID {
			return r, nil
		}
	}

	return nil, ErrNotFound
}

func (c *SessionClient) Member(guildID, userID string) (*discordgo.Member, error) {
	return GetMember(c.s, guildID, userID)
}

func (c *SessionClient) GuildMembers(guildID string) ([]*discordgo.Member, error) {
	if g, err := c.s.State.Guild(guildID); err == nil && len(g.Members) > 0 {
		c.s.State.RLock()
		defer c.s.State.RUnlock()
		members := make([]*discordgo.Member, len(g.Members))
		copy(members, g.Members)
		return members, nil
	}
	return c.s.GuildMembers(guildID, "", 1000)
}

func (c *SessionClient) VoiceStates(guildID string) ([]*discordgo.VoiceState, error) {
	g, err := c.s.State.Guild(guildID)
	if err != nil {
		return nil, err
	}

	c.s.State.RLock()
	defer c.s.State.RUnlock()

	vs := make([]*discordgo.VoiceState, len(g.VoiceStates))
	copy(vs, g.VoiceStates)

	return vs, nil
}

func (c *SessionClient) CreateChannel(guildID string, data discordgo.GuildChannelCreateData) (*discordgo.Channel, error) {
	return c.s.GuildChannelCreateComplex(guildID, data)
}

func (c *SessionClient) RenameChannel(channelID, name string) error {
	_, err := c.s.ChannelEdit(channelID, &discordgo.ChannelEdit{
		Name: name,
	})
	return err
}

func (c *SessionClient) DeleteChannel(channelID string) error {
	_, err := c.s.ChannelDelete(channelID)
	return err
}

func (c *SessionClient) ReorderChannels(guildID string, channels []*discordgo.Channel) error {
	return c.s.GuildChannelsReorder(guildID, channels)
}

func (c *SessionClient) SetPermission(channelID, targetID string, targetType discordgo.PermissionOverwriteType, allow, deny int64) error {
	return c.s.ChannelPermissionSet(channelID, targetID, targetType, allow, deny)
}

func (c *SessionClient) DeletePermission(channelID, targetID string) error {
	return c.s.ChannelPermissionDelete(channelID, targetID)
}

func (c *SessionClient) MoveMember(guildID, userID, channelID string) error {
	return c.s.GuildMemberMove(guildID, userID, &channelID)
}

func (c *SessionClient) AddRole(guildID, userID, roleID string) error {
	return c.s.GuildMemberRoleAdd(guildID, userID, roleID)
}

func (c *SessionClient) RemoveRole(guildID, userID, roleID string) error {
	return c.s.GuildMemberRoleRemove(guildID, userID, roleID)
}

func (c *SessionClient) SendMessage(channelID, content string) error {
	_, err := c.s.ChannelMessageSend(channelID, content)
	return err
}
