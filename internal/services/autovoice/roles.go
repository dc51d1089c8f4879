package autovoice

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/hashicorp/go-multierror"

	"github.com/zekurio/hearth/internal/models"
	"github.com/zekurio/hearth/pkg/discordutils"
)

type roleSet map[string]struct{}

func newRoleSet(ids ...string) roleSet {
	s := make(roleSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s roleSet) has(id string) bool {
	_, ok := s[id]
	return ok
}

// linkIndex resolves the roles a member in a given
// voice channel should hold.
type linkIndex struct {
	byChannel map[string][]string
	// spawned channel ID -> template channel ID
	templateOf map[string]string
	managed    roleSet
}

func (h *AutovoiceHandler) buildLinkIndex(guildID string, links []models.RoleVoiceLink) (*linkIndex, error) {
	idx := &linkIndex{
		byChannel:  make(map[string][]string),
		templateOf: make(map[string]string),
		managed:    newRoleSet(),
	}

	if len(links) == 0 {
		return idx, nil
	}

	for _, l := range links {
		idx.byChannel[l.ChannelID] = append(idx.byChannel[l.ChannelID], l.RoleID)
		idx.managed[l.RoleID] = struct{}{}
	}

	groups, err := h.db.GetVoiceGroups(guildID)
	if err != nil {
		return nil, err
	}
	tmplOf := make(map[string]string, len(groups))
	for _, g := range groups {
		tmplOf[g.ID] = g.ChannelID
	}

	rows, err := h.db.GetGuildVoiceChannels(guildID)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		if t, ok := tmplOf[r.GroupID]; ok {
			idx.templateOf[r.ChannelID] = t
		}
	}

	return idx, nil
}

// roles returns the roles linked to channelID including the
// ones linked to the template it was spawned from.
func (idx *linkIndex) roles(channelID string) roleSet {
	res := newRoleSet()
	if channelID == "" {
		return res
	}

	for _, r := range idx.byChannel[channelID] {
		res[r] = struct{}{}
	}
	if t, ok := idx.templateOf[channelID]; ok {
		for _, r := range idx.byChannel[t] {
			res[r] = struct{}{}
		}
	}

	return res
}

// linkedRoles returns the roles a member in channelID
// should hold.
func (h *AutovoiceHandler) linkedRoles(guildID, channelID string) (roleSet, error) {
	if channelID == "" {
		return newRoleSet(), nil
	}

	links, err := h.db.GetRoleVoiceLinks(guildID)
	if err != nil || len(links) == 0 {
		return newRoleSet(), err
	}

	idx, err := h.buildLinkIndex(guildID, links)
	if err != nil {
		return nil, err
	}

	return idx.roles(channelID), nil
}

// syncMemberRoles revokes the roles in prev which the member does
// not qualify for in afterCh and grants the missing ones.
func (h *AutovoiceHandler) syncMemberRoles(guildID string, member *discordgo.Member, prev roleSet, afterCh string) error {
	want, err := h.linkedRoles(guildID, afterCh)
	if err != nil {
		return err
	}
	have := newRoleSet(member.Roles...)

	var mErr *multierror.Error
	for r := range prev {
		if want.has(r) || !have.has(r) {
			continue
		}
		mErr = multierror.Append(mErr, h.removeRole(guildID, member.User.ID, r))
	}
	for r := range want {
		if have.has(r) {
			continue
		}
		mErr = multierror.Append(mErr, h.addRole(guildID, member.User.ID, r))
	}

	return mErr.ErrorOrNil()
}

// syncRoles prunes links pointing to deleted channels or roles
// and brings the linked roles of all members of the guild in
// line with the voice channels they are connected to. Roles in
// extra are revoked from members even if no link references
// them anymore.
func (h *AutovoiceHandler) syncRoles(guildID string, extra ...string) error {
	links, err := h.db.GetRoleVoiceLinks(guildID)
	if err != nil {
		return err
	}

	var mErr *multierror.Error

	valid := make([]models.RoleVoiceLink, 0, len(links))
	for _, l := range links {
		ok, err := h.linkAlive(guildID, l)
		if err != nil {
			mErr = multierror.Append(mErr, err)
			continue
		}
		if !ok {
			h.log.Debug("Pruning role link", "guild", guildID, "channel", l.ChannelID, "role", l.RoleID)
			mErr = multierror.Append(mErr, h.db.DeleteRoleVoiceLink(l))
			continue
		}
		valid = append(valid, l)
	}

	idx, err := h.buildLinkIndex(guildID, valid)
	if err != nil {
		return multierror.Append(mErr, err)
	}

	for _, r := range extra {
		idx.managed[r] = struct{}{}
	}
	if len(idx.managed) == 0 {
		return mErr.ErrorOrNil()
	}

	states, err := h.dc.VoiceStates(guildID)
	if err != nil {
		return multierror.Append(mErr, err)
	}
	channelOf := make(map[string]string, len(states))
	for _, vs := range states {
		channelOf[vs.UserID] = vs.ChannelID
	}

	members, err := h.dc.GuildMembers(guildID)
	if err != nil {
		return multierror.Append(mErr, err)
	}

	for _, m := range members {
		if m.User == nil || m.User.Bot {
			continue
		}

		want := idx.roles(channelOf[m.User.ID])
		have := newRoleSet(m.Roles...)

		for r := range want {
			if !have.has(r) {
				mErr = multierror.Append(mErr, h.addRole(guildID, m.User.ID, r))
			}
		}
		for r := range have {
			if idx.managed.has(r) && !want.has(r) {
				mErr = multierror.Append(mErr, h.removeRole(guildID, m.User.ID, r))
			}
		}
	}

	return mErr.ErrorOrNil()
}

func (h *AutovoiceHandler) linkAlive(guildID string, l models.RoleVoiceLink) (bool, error) {
	ch, err := h.dc.Channel(l.ChannelID)
	if discordutils.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if ch.GuildID != guildID {
		return false, nil
	}

	_, err = h.dc.Role(guildID, l.RoleID)
	if discordutils.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return true, nil
}

func (h *AutovoiceHandler) addRole(guildID, userID, roleID string) error {
	err := h.dc.AddRole(guildID, userID, roleID)
	if err == nil || discordutils.IsNotFound(err) {
		return nil
	}
	h.alerts.forbidden(guildID, err, "assign roles")
	return fmt.Errorf("adding role %s to %s: %w", roleID, userID, err)
}

func (h *AutovoiceHandler) removeRole(guildID, userID, roleID string) error {
	err := h.dc.RemoveRole(guildID, userID, roleID)
	if err == nil || discordutils.IsNotFound(err) {
		return nil
	}
	h.alerts.forbidden(guildID, err, "remove roles")
	return fmt.Errorf("removing role %s from %s: %w", roleID, userID, err)
}
