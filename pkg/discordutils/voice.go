package discordutils

import (
	"github.com/bwmarrin/discordgo"
)

// GetVoiceMembers returns all members which are currently
// connected to the given voice channel.
func GetVoiceMembers(c Client, guildID, channelID string) ([]*discordgo.Member, error) {
	states, err := c.VoiceStates(guildID)
	if err != nil {
		return nil, err
	}

	members := make([]*discordgo.Member, 0)
	for _, vs := range states {
		if vs.ChannelID != channelID {
			continue
		}

		m := vs.Member
		if m == nil || m.User == nil {
			if m, err = c.Member(guildID, vs.UserID); err != nil {
				if IsNotFound(err) {
					continue
				}
				return nil, err
			}
		}

		members = append(members, m)
	}

	return members, nil
}

// GetHumanVoiceMembers works like GetVoiceMembers but skips bots.
func GetHumanVoiceMembers(c Client, guildID, channelID string) ([]*discordgo.Member, error) {
	members, err := GetVoiceMembers(c, guildID, channelID)
	if err != nil {
		return nil, err
	}

	humans := members[:0]
	for _, m := range members {
		if m.User != nil && !m.User.Bot {
			humans = append(humans, m)
		}
	}

	return humans, nil
}

// GetMemberVoiceChannel returns the ID of the voice channel the user is
// currently connected to or an empty string.
func GetMemberVoiceChannel(c Client, guildID, userID string) (string, error) {
	states, err := c.VoiceStates(guildID)
	if err != nil {
		return "", err
	}

	for _, vs := range states {
		if vs.UserID == userID {
			return vs.ChannelID, nil
		}
	}

	return "", nil
}
