package autovoice

import (
	"context"
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/zekurio/hearth/internal/models"
	"github.com/zekurio/hearth/internal/services/database/dberr"
	"github.com/zekurio/hearth/pkg/discordutils"
)

func (h *AutovoiceHandler) Reconcile(ctx context.Context, guildID string) error {
	groups, err := h.db.GetVoiceGroups(guildID)
	if err != nil {
		return err
	}

	var mErr *multierror.Error
	live := make(map[string]struct{}, len(groups))

	for _, g := range groups {
		live[g.ID] = struct{}{}

		unlock, err := h.grLock.Lock(ctx, g.ID)
		if err != nil {
			return multierror.Append(mErr, err)
		}
		if err = h.syncGroup(ctx, g); err != nil {
			mErr = multierror.Append(mErr, fmt.Errorf("group %s: %w", g.ID, err))
		}
		unlock()
	}

	rows, err := h.db.GetGuildVoiceChannels(guildID)
	if err != nil {
		return multierror.Append(mErr, err)
	}

	for _, row := range rows {
		if _, ok := live[row.GroupID]; ok {
			continue
		}

		h.log.Debug("Removing channel of deleted group", "guild", guildID, "group", row.GroupID, "channel", row.ChannelID)

		unlock, err := h.grLock.Lock(ctx, row.GroupID)
		if err != nil {
			return multierror.Append(mErr, err)
		}
		mErr = multierror.Append(mErr, h.teardown(row))
		unlock()
	}

	if err = h.syncRoles(guildID); err != nil {
		mErr = multierror.Append(mErr, fmt.Errorf("role links: %w", err))
	}

	return mErr.ErrorOrNil()
}

func (h *AutovoiceHandler) ReconcileAll(ctx context.Context, guildIDs []string) error {
	var (
		eg   errgroup.Group
		mtx  sync.Mutex
		mErr *multierror.Error
	)

	eg.SetLimit(h.workers)

	for _, guildID := range guildIDs {
		guildID := guildID
		eg.Go(func() error {
			if err := h.Reconcile(ctx, guildID); err != nil {
				mtx.Lock()
				mErr = multierror.Append(mErr, fmt.Errorf("guild %s: %w", guildID, err))
				mtx.Unlock()
			}
			return nil
		})
	}

	eg.Wait()

	return mErr.ErrorOrNil()
}

func (h *AutovoiceHandler) HandleChannelDelete(ctx context.Context, ch *discordgo.Channel) error {
	if ch == nil || ch.GuildID == "" {
		return nil
	}

	var mErr *multierror.Error

	g, err := h.db.GetVoiceGroupByChannel(ch.ID)
	switch {
	case err == nil:
		mErr = multierror.Append(mErr, h.dropDeletedTemplate(ctx, g))
	case !dberr.IsErrNotFound(err):
		return err
	default:
		mErr = multierror.Append(mErr, h.dropDeletedSpawn(ctx, ch))
	}

	if err = h.db.DeleteRoleVoiceLinksByChannel(ch.GuildID, ch.ID); err != nil {
		mErr = multierror.Append(mErr, err)
	}

	return mErr.ErrorOrNil()
}

func (h *AutovoiceHandler) dropDeletedTemplate(ctx context.Context, g models.DynamicVoiceGroup) error {
	unlock, err := h.grLock.Lock(ctx, g.ID)
	if err != nil {
		return err
	}
	defer unlock()

	if _, err = h.db.GetVoiceGroup(g.ID); dberr.IsErrNotFound(err) {
		return nil
	} else if err != nil {
		return err
	}

	h.log.Info("Template channel deleted", "guild", g.GuildID, "group", g.ID, "channel", g.ChannelID)

	return h.dropGroup(g)
}

// dropDeletedSpawn tears down the spawned channel pair of which
// one half got deleted.
func (h *AutovoiceHandler) dropDeletedSpawn(ctx context.Context, ch *discordgo.Channel) error {
	row, err := h.db.GetVoiceChannel(ch.ID)
	if dberr.IsErrNotFound(err) {
		rows, err := h.db.GetGuildVoiceChannels(ch.GuildID)
		if err != nil {
			return err
		}
		found := false
		for _, r := range rows {
			if r.TextChannelID == ch.ID {
				row, found = r, true
				break
			}
		}
		if !found {
			return nil
		}
	} else if err != nil {
		return err
	}

	unlock, err := h.lock(ctx, row.ChannelID, row.GroupID)
	if err != nil {
		return err
	}
	defer unlock()

	if row, err = h.db.GetVoiceChannel(row.ChannelID); dberr.IsErrNotFound(err) {
		return nil
	} else if err != nil {
		return err
	}

	return h.teardown(row)
}

// syncGroup repairs a single group. Must be called holding
// the group lock.
func (h *AutovoiceHandler) syncGroup(ctx context.Context, g models.DynamicVoiceGroup) error {
	if _, err := h.dc.Channel(g.ChannelID); discordutils.IsNotFound(err) {
		h.log.Info("Template channel is gone", "guild", g.GuildID, "group", g.ID, "channel", g.ChannelID)
		return h.dropGroup(g)
	} else if err != nil {
		return err
	}

	rows, err := h.db.GetVoiceChannels(g.ID)
	if err != nil {
		return err
	}

	var mErr *multierror.Error
	for _, row := range rows {
		if err = h.syncChannel(g, row); err != nil {
			mErr = multierror.Append(mErr, fmt.Errorf("channel %s: %w", row.ChannelID, err))
		}
	}

	waiting, err := discordutils.GetHumanVoiceMembers(h.dc, g.GuildID, g.ChannelID)
	if err != nil {
		return multierror.Append(mErr, err)
	}
	for _, m := range waiting {
		mErr = multierror.Append(mErr, h.provision(ctx, g, m))
	}

	mErr = multierror.Append(mErr, h.renumber(g))

	return mErr.ErrorOrNil()
}

// syncChannel repairs a single spawned channel. Must be
// called holding the group lock.
func (h *AutovoiceHandler) syncChannel(g models.DynamicVoiceGroup, row models.DynamicVoiceChannel) error {
	voice, err := h.liveChannel(row.ChannelID)
	if err != nil {
		return err
	}
	text, err := h.liveChannel(row.TextChannelID)
	if err != nil {
		return err
	}

	if voice == nil || (row.TextChannelID != "" && text == nil) {
		h.log.Debug("Spawned channel partially gone", "guild", row.GuildID, "channel", row.ChannelID, "text", row.TextChannelID)
		return h.teardown(row)
	}

	humans, err := discordutils.GetHumanVoiceMembers(h.dc, row.GuildID, row.ChannelID)
	if err != nil {
		return err
	}

	if len(humans) == 0 {
		// the owner was just moved out of the template and
		// the gateway has not reported it yet
		current, err := discordutils.GetMemberVoiceChannel(h.dc, row.GuildID, row.OwnerID)
		if err != nil {
			return err
		}
		if row.OwnerID != "" && current == g.ChannelID {
			return nil
		}
		return h.teardown(row)
	}

	var mErr *multierror.Error

	if memberIndex(humans, row.OwnerID) < 0 {
		mErr = multierror.Append(mErr, h.reassignOwner(row, humans))
	}

	if text != nil {
		self := h.dc.SelfID()
		for _, o := range text.PermissionOverwrites {
			if o.Type != discordgo.PermissionOverwriteTypeMember || o.ID == self {
				continue
			}
			if memberIndex(humans, o.ID) < 0 {
				mErr = multierror.Append(mErr, h.revokeText(row, o.ID))
			}
		}
		for _, m := range humans {
			if !hasOverwrite(text, m.User.ID, textAllow) {
				mErr = multierror.Append(mErr, h.grantText(row, m.User.ID))
			}
		}
	}

	return mErr.ErrorOrNil()
}

// liveChannel returns the channel or nil if it does not exist.
func (h *AutovoiceHandler) liveChannel(id string) (*discordgo.Channel, error) {
	if id == "" {
		return nil, nil
	}
	ch, err := h.dc.Channel(id)
	if discordutils.IsNotFound(err) {
		return nil, nil
	}
	return ch, err
}
