package autovoice

import (
	"context"
	"fmt"
	"sort"

	"github.com/bwmarrin/discordgo"
	"github.com/hashicorp/go-multierror"

	"github.com/zekurio/hearth/internal/models"
	"github.com/zekurio/hearth/internal/services/database/dberr"
	"github.com/zekurio/hearth/pkg/arrayutils"
	"github.com/zekurio/hearth/pkg/discordutils"
)

const (
	ownerAllow = discordgo.PermissionVoiceConnect |
		discordgo.PermissionManageChannels |
		discordgo.PermissionVoiceMoveMembers

	textAllow = discordgo.PermissionViewChannel
)

func (h *AutovoiceHandler) HandleVoiceStateUpdate(ctx context.Context, before, after *discordgo.VoiceState) error {
	if after == nil {
		return nil
	}

	var beforeCh string
	if before != nil {
		beforeCh = before.ChannelID
	}
	afterCh := after.ChannelID

	if beforeCh == afterCh {
		// mute, deafen, stream and so on
		return nil
	}

	member := after.Member
	if member == nil || member.User == nil {
		m, err := h.dc.Member(after.GuildID, after.UserID)
		if err != nil && !discordutils.IsNotFound(err) {
			return err
		}
		member = m
	}

	if member != nil && member.User != nil && member.User.Bot {
		return nil
	}

	// resolved up front, leaving may remove the spawned channel
	prevRoles, err := h.linkedRoles(after.GuildID, beforeCh)
	if err != nil {
		return err
	}

	var mErr *multierror.Error

	if beforeCh != "" {
		mErr = multierror.Append(mErr, h.leave(ctx, after.GuildID, after.UserID, beforeCh))
	}

	if afterCh != "" && member != nil {
		mErr = multierror.Append(mErr, h.join(ctx, after.GuildID, member, afterCh))
	}

	if member != nil {
		mErr = multierror.Append(mErr, h.syncMemberRoles(after.GuildID, member, prevRoles, afterCh))
	}

	return mErr.ErrorOrNil()
}

func (h *AutovoiceHandler) join(ctx context.Context, guildID string, member *discordgo.Member, channelID string) error {
	if g, err := h.db.GetVoiceGroupByChannel(channelID); err == nil {
		unlock, err := h.lock(ctx, channelID, g.ID)
		if err != nil {
			return err
		}
		defer unlock()

		// the group may have been removed while waiting
		if g, err = h.db.GetVoiceGroup(g.ID); err != nil {
			if dberr.IsErrNotFound(err) {
				return nil
			}
			return err
		}

		if err = h.provision(ctx, g, member); err != nil {
			return err
		}
		return h.renumber(g)
	} else if !dberr.IsErrNotFound(err) {
		return err
	}

	row, err := h.db.GetVoiceChannel(channelID)
	if dberr.IsErrNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}

	unlock, err := h.lock(ctx, channelID, row.GroupID)
	if err != nil {
		return err
	}
	defer unlock()

	if row, err = h.db.GetVoiceChannel(channelID); err != nil {
		if dberr.IsErrNotFound(err) {
			return nil
		}
		return err
	}

	return h.grantText(row, member.User.ID)
}

func (h *AutovoiceHandler) leave(ctx context.Context, guildID, userID, channelID string) error {
	row, err := h.db.GetVoiceChannel(channelID)
	if dberr.IsErrNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}

	unlock, err := h.lock(ctx, channelID, row.GroupID)
	if err != nil {
		return err
	}
	defer unlock()

	if row, err = h.db.GetVoiceChannel(channelID); err != nil {
		if dberr.IsErrNotFound(err) {
			return nil
		}
		return err
	}

	humans, err := discordutils.GetHumanVoiceMembers(h.dc, guildID, channelID)
	if err != nil {
		return err
	}

	if len(humans) == 0 {
		if err = h.teardown(row); err != nil {
			return err
		}
		g, err := h.db.GetVoiceGroup(row.GroupID)
		if dberr.IsErrNotFound(err) {
			return nil
		}
		if err != nil {
			return err
		}
		return h.renumber(g)
	}

	if memberIndex(humans, userID) >= 0 {
		// stale event, the member is still connected
		return nil
	}

	if err = h.revokeText(row, userID); err != nil {
		return err
	}

	if memberIndex(humans, row.OwnerID) < 0 {
		return h.reassignOwner(row, humans)
	}

	return nil
}

// provision creates a voice and text channel for the member
// which is waiting in the template channel of g and moves the
// member into the new voice channel. On failure, everything
// created so far is removed again and nothing is persisted.
//
// Must be called holding the group lock.
func (h *AutovoiceHandler) provision(ctx context.Context, g models.DynamicVoiceGroup, member *discordgo.Member) error {
	userID := member.User.ID

	current, err := discordutils.GetMemberVoiceChannel(h.dc, g.GuildID, userID)
	if err != nil {
		return err
	}
	if current != g.ChannelID {
		h.log.Debug("Member left template before provisioning", "guild", g.GuildID, "group", g.ID, "user", userID)
		return nil
	}

	// the voice state only reflects a move once the gateway
	// reports it, so the member may already have been served
	if owned, err := h.ownsChannel(g, userID); err != nil || owned {
		if owned {
			h.log.Debug("Member already owns a channel", "guild", g.GuildID, "group", g.ID, "user", userID)
		}
		return err
	}

	tmpl, err := h.dc.Channel(g.ChannelID)
	if discordutils.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}

	h.log.Debug("Provisioning channel", "phase", "provisioning", "guild", g.GuildID, "group", g.ID, "user", userID)

	name := channelName(member, g.Name)
	var created []string

	cleanup := func() {
		for _, id := range created {
			if err := h.dc.DeleteChannel(id); err != nil && !discordutils.IsNotFound(err) {
				h.log.Error("Failed to clean up channel", "guild", g.GuildID, "channel", id, "err", err)
			}
		}
	}

	text, err := h.dc.CreateChannel(g.GuildID, discordgo.GuildChannelCreateData{
		Name:                 name,
		Type:                 discordgo.ChannelTypeGuildText,
		ParentID:             tmpl.ParentID,
		PermissionOverwrites: h.textOverwrites(g.GuildID, userID),
	})
	if err != nil {
		h.alerts.forbidden(g.GuildID, err, "create text channels")
		return fmt.Errorf("creating text channel: %w", err)
	}
	created = append(created, text.ID)

	voice, err := h.dc.CreateChannel(g.GuildID, discordgo.GuildChannelCreateData{
		Name:                 name,
		Type:                 tmpl.Type,
		ParentID:             tmpl.ParentID,
		Bitrate:              tmpl.Bitrate,
		UserLimit:            tmpl.UserLimit,
		PermissionOverwrites: voiceOverwrites(tmpl, g, userID),
	})
	if err != nil {
		cleanup()
		h.alerts.forbidden(g.GuildID, err, "create voice channels")
		return fmt.Errorf("creating voice channel: %w", err)
	}
	created = append(created, voice.ID)

	if err = h.dc.MoveMember(g.GuildID, userID, voice.ID); err != nil {
		cleanup()
		h.alerts.forbidden(g.GuildID, err, "move members")
		return fmt.Errorf("moving member: %w", err)
	}

	row := models.DynamicVoiceChannel{
		ChannelID:     voice.ID,
		TextChannelID: text.ID,
		GuildID:       g.GuildID,
		GroupID:       g.ID,
		OwnerID:       userID,
	}
	if err = h.db.AddVoiceChannel(row); err != nil {
		cleanup()
		return fmt.Errorf("persisting channel: %w", err)
	}

	h.log.Info("Channel provisioned", "phase", "active", "guild", g.GuildID, "group", g.ID, "channel", voice.ID, "owner", userID)

	return nil
}

// ownsChannel reports whether userID owns a live channel of g.
// Rows of channels which are gone are torn down on the way.
//
// Must be called holding the group lock.
func (h *AutovoiceHandler) ownsChannel(g models.DynamicVoiceGroup, userID string) (bool, error) {
	rows, err := h.db.GetVoiceChannels(g.ID)
	if err != nil {
		return false, err
	}

	for _, row := range rows {
		if row.OwnerID != userID {
			continue
		}
		voice, err := h.liveChannel(row.ChannelID)
		if err != nil {
			return false, err
		}
		if voice != nil {
			return true, nil
		}
		if err = h.teardown(row); err != nil {
			return false, err
		}
	}

	return false, nil
}

// teardown deletes the voice and text channel of row and the row
// itself. Channels which are already gone are ignored.
//
// Must be called holding the group lock.
func (h *AutovoiceHandler) teardown(row models.DynamicVoiceChannel) error {
	h.log.Debug("Tearing down channel", "phase", "tearing-down", "guild", row.GuildID, "group", row.GroupID, "channel", row.ChannelID)

	for _, id := range []string{row.ChannelID, row.TextChannelID} {
		if id == "" {
			continue
		}
		if err := h.dc.DeleteChannel(id); err != nil && !discordutils.IsNotFound(err) {
			h.alerts.forbidden(row.GuildID, err, "delete channels")
			return fmt.Errorf("deleting channel %s: %w", id, err)
		}
	}

	if err := h.db.DeleteVoiceChannel(row.ChannelID); err != nil {
		return err
	}
	if err := h.db.DeleteRoleVoiceLinksByChannel(row.GuildID, row.ChannelID); err != nil {
		return err
	}

	h.log.Info("Channel removed", "phase", "idle", "guild", row.GuildID, "group", row.GroupID, "channel", row.ChannelID)

	return nil
}

// reassignOwner hands the channel over to a random one of the
// remaining members.
//
// Must be called holding the group lock.
func (h *AutovoiceHandler) reassignOwner(row models.DynamicVoiceChannel, humans []*discordgo.Member) error {
	g, err := h.db.GetVoiceGroup(row.GroupID)
	if err != nil {
		return err
	}

	owner := humans[h.pickOwner(len(humans))]
	ownerID := owner.User.ID

	h.log.Debug("Reassigning owner", "phase", "reassigning-owner", "guild", row.GuildID, "channel", row.ChannelID, "from", row.OwnerID, "to", ownerID)

	if err = h.db.SetVoiceChannelOwner(row.ChannelID, ownerID); err != nil {
		return err
	}

	name := channelName(owner, g.Name)
	var mErr *multierror.Error

	for _, id := range []string{row.ChannelID, row.TextChannelID} {
		if id == "" {
			continue
		}
		if err = h.dc.RenameChannel(id, name); err != nil {
			h.alerts.forbidden(row.GuildID, err, "rename channels")
			mErr = multierror.Append(mErr, fmt.Errorf("renaming channel %s: %w", id, err))
		}
	}

	if !g.Public {
		if row.OwnerID != "" {
			if err = h.dc.DeletePermission(row.ChannelID, row.OwnerID); err != nil && !discordutils.IsNotFound(err) {
				mErr = multierror.Append(mErr, err)
			}
		}
		if err = h.dc.SetPermission(row.ChannelID, ownerID, discordgo.PermissionOverwriteTypeMember, ownerAllow, 0); err != nil {
			h.alerts.forbidden(row.GuildID, err, "manage channel permissions")
			mErr = multierror.Append(mErr, err)
		}
	}

	h.log.Info("Owner reassigned", "phase", "active", "guild", row.GuildID, "channel", row.ChannelID, "owner", ownerID)

	return mErr.ErrorOrNil()
}

// renumber moves the spawned channels of g right below the
// template, ordered by creation. Nothing is sent if the order
// is already correct.
//
// Must be called holding the group lock.
func (h *AutovoiceHandler) renumber(g models.DynamicVoiceGroup) error {
	rows, err := h.db.GetVoiceChannels(g.ID)
	if err != nil {
		return err
	}

	chs, err := h.dc.GuildChannels(g.GuildID)
	if err != nil {
		return err
	}

	var tmpl *discordgo.Channel
	for _, c := range chs {
		if c.ID == g.ChannelID {
			tmpl = c
			break
		}
	}
	if tmpl == nil {
		return nil
	}

	spawned := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		spawned[r.ChannelID] = struct{}{}
	}

	// voice channels sharing the template's category
	siblings := arrayutils.Filter(chs, func(c *discordgo.Channel) bool {
		return isVoice(c) && c.ParentID == tmpl.ParentID
	})
	sort.SliceStable(siblings, func(i, j int) bool {
		if siblings[i].Position != siblings[j].Position {
			return siblings[i].Position < siblings[j].Position
		}
		return discordutils.LessID(siblings[i].ID, siblings[j].ID)
	})

	var ownIDs []string
	rest := make([]*discordgo.Channel, 0, len(siblings))
	byID := make(map[string]*discordgo.Channel, len(siblings))
	for _, c := range siblings {
		byID[c.ID] = c
		if _, ok := spawned[c.ID]; ok {
			ownIDs = append(ownIDs, c.ID)
		} else {
			rest = append(rest, c)
		}
	}
	if len(ownIDs) == 0 {
		return nil
	}
	discordutils.SortByCreation(ownIDs)

	desired := make([]*discordgo.Channel, 0, len(siblings))
	for _, c := range rest {
		desired = append(desired, c)
		if c.ID == tmpl.ID {
			for _, id := range ownIDs {
				desired = append(desired, byID[id])
			}
		}
	}

	ordered := true
	for i := range desired {
		if desired[i].ID != siblings[i].ID {
			ordered = false
			break
		}
	}
	if ordered {
		return nil
	}

	base := siblings[0].Position
	changed := make([]*discordgo.Channel, 0, len(desired))
	for i, c := range desired {
		if c.Position != base+i {
			changed = append(changed, &discordgo.Channel{ID: c.ID, Position: base + i})
		}
	}

	if err = h.dc.ReorderChannels(g.GuildID, changed); err != nil {
		h.alerts.forbidden(g.GuildID, err, "move channels")
		return fmt.Errorf("reordering channels: %w", err)
	}

	return nil
}

func (h *AutovoiceHandler) grantText(row models.DynamicVoiceChannel, userID string) error {
	if row.TextChannelID == "" {
		return nil
	}

	text, err := h.dc.Channel(row.TextChannelID)
	if discordutils.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if hasOverwrite(text, userID, textAllow) {
		return nil
	}

	if err = h.dc.SetPermission(row.TextChannelID, userID, discordgo.PermissionOverwriteTypeMember, textAllow, 0); err != nil {
		h.alerts.forbidden(row.GuildID, err, "manage channel permissions")
		return err
	}
	return nil
}

func (h *AutovoiceHandler) revokeText(row models.DynamicVoiceChannel, userID string) error {
	if row.TextChannelID == "" {
		return nil
	}

	err := h.dc.DeletePermission(row.TextChannelID, userID)
	if err != nil && !discordutils.IsNotFound(err) {
		h.alerts.forbidden(row.GuildID, err, "manage channel permissions")
		return err
	}
	return nil
}

func (h *AutovoiceHandler) textOverwrites(guildID, ownerID string) []*discordgo.PermissionOverwrite {
	ows := []*discordgo.PermissionOverwrite{
		{ID: guildID, Type: discordgo.PermissionOverwriteTypeRole, Deny: textAllow},
	}
	if self := h.dc.SelfID(); self != "" {
		ows = append(ows, &discordgo.PermissionOverwrite{ID: self, Type: discordgo.PermissionOverwriteTypeMember, Allow: textAllow})
	}
	return append(ows, &discordgo.PermissionOverwrite{ID: ownerID, Type: discordgo.PermissionOverwriteTypeMember, Allow: textAllow})
}

func voiceOverwrites(tmpl *discordgo.Channel, g models.DynamicVoiceGroup, ownerID string) []*discordgo.PermissionOverwrite {
	ows := make([]*discordgo.PermissionOverwrite, 0, len(tmpl.PermissionOverwrites)+2)
	var everyone *discordgo.PermissionOverwrite

	for _, o := range tmpl.PermissionOverwrites {
		c := *o
		if c.ID == g.GuildID && c.Type == discordgo.PermissionOverwriteTypeRole {
			everyone = &c
		}
		ows = append(ows, &c)
	}

	if g.Public {
		return ows
	}

	if everyone == nil {
		everyone = &discordgo.PermissionOverwrite{ID: g.GuildID, Type: discordgo.PermissionOverwriteTypeRole}
		ows = append(ows, everyone)
	}
	everyone.Allow &^= discordgo.PermissionVoiceConnect
	everyone.Deny |= discordgo.PermissionVoiceConnect

	return append(ows, &discordgo.PermissionOverwrite{
		ID:    ownerID,
		Type:  discordgo.PermissionOverwriteTypeMember,
		Allow: ownerAllow,
	})
}

func hasOverwrite(ch *discordgo.Channel, targetID string, allow int64) bool {
	for _, o := range ch.PermissionOverwrites {
		if o.ID == targetID && o.Allow&allow == allow {
			return true
		}
	}
	return false
}

func memberIndex(members []*discordgo.Member, userID string) int {
	for i, m := range members {
		if m.User != nil && m.User.ID == userID {
			return i
		}
	}
	return -1
}
