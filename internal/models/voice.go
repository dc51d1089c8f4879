package models

// DynamicVoiceGroup is a template voice channel. Members joining
// the template get their own voice channel cloned from it.
type DynamicVoiceGroup struct {
	ID        string `json:"id"`
	GuildID   string `json:"guild_id"`
	ChannelID string `json:"channel_id"`
	Name      string `json:"name"`
	Public    bool   `json:"public"`
}

// DynamicVoiceChannel is a voice channel spawned from a group
// together with its paired text channel.
type DynamicVoiceChannel struct {
	ChannelID     string `json:"channel_id"`
	TextChannelID string `json:"text_channel_id"`
	GuildID       string `json:"guild_id"`
	GroupID       string `json:"group_id"`
	OwnerID       string `json:"owner_id"`
}

// RoleVoiceLink grants RoleID to every member connected to ChannelID.
// If ChannelID is a group template, the link applies to all channels
// spawned from that group as well.
type RoleVoiceLink struct {
	GuildID   string `json:"guild_id"`
	ChannelID string `json:"channel_id"`
	RoleID    string `json:"role_id"`
}
