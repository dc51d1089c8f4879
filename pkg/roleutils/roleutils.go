package roleutils

import (
	"sort"

	"github.com/bwmarrin/discordgo"

	"github.com/zekurio/hearth/pkg/arrayutils"
	"github.com/zekurio/hearth/pkg/discordutils"
)

// SortRoles sorts roles by their position, highest first.
// If reversed is set, the lowest role comes first.
func SortRoles(roles []*discordgo.Role, reversed bool) {
	sort.SliceStable(roles, func(i, j int) bool {
		if reversed {
			return roles[i].Position < roles[j].Position
		}
		return roles[i].Position > roles[j].Position
	})
}

// GetSortedMemberRoles returns the roles of a member sorted by position.
// If includeEveryone is set, the guilds @everyone role is part of the
// result.
func GetSortedMemberRoles(s *discordgo.Session, guildID, memberID string, reversed, includeEveryone bool) ([]*discordgo.Role, error) {
	member, err := discordutils.GetMember(s, guildID, memberID)
	if err != nil {
		return nil, err
	}

	guild, err := discordutils.GetGuild(s, guildID)
	if err != nil {
		return nil, err
	}

	return MemberRoles(guild, member, reversed, includeEveryone), nil
}

// MemberRoles picks the roles of member out of the guilds role list.
func MemberRoles(guild *discordgo.Guild, member *discordgo.Member, reversed, includeEveryone bool) []*discordgo.Role {
	roles := make([]*discordgo.Role, 0, len(member.Roles)+1)
	for _, r := range guild.Roles {
		if arrayutils.Contains(member.Roles, r.ID) || (includeEveryone && r.ID == guild.ID) {
			roles = append(roles, r)
		}
	}

	SortRoles(roles, reversed)

	return roles
}
