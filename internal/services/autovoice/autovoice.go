package autovoice

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/charmbracelet/log"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/xid"

	"github.com/zekurio/hearth/internal/models"
	"github.com/zekurio/hearth/internal/services/database"
	"github.com/zekurio/hearth/internal/services/database/dberr"
	"github.com/zekurio/hearth/pkg/discordutils"
	"github.com/zekurio/hearth/pkg/multilock"
)

var (
	ErrChannelNotFound   = errors.New("channel not found")
	ErrNotVoiceChannel   = errors.New("not a voice channel of this guild")
	ErrNotTextChannel    = errors.New("not a text channel of this guild")
	ErrAlreadyGroup      = errors.New("channel is already the template of a group")
	ErrDynamicChannel    = errors.New("channel was spawned by a group")
	ErrGroupNotFound     = errors.New("no group uses this channel as template")
	ErrRoleNotFound      = errors.New("role not found")
	ErrRoleNotAssignable = errors.New("role can not be assigned")
)

// AutovoiceHandler manages the lifecycle of dynamic voice
// groups. The database is the source of truth; the only
// in-memory state are the keyed locks.
//
// Every mutation of a spawned channel holds the lock of its
// group. Event handlers lock the channel first and the
// group second, reconciliation only takes group locks.
type AutovoiceHandler struct {
	db  database.Database
	dc  discordutils.Client
	log *log.Logger

	chLock *multilock.MultiLock[string]
	grLock *multilock.MultiLock[string]

	alerts  *alerter
	workers int

	// pickOwner returns an index in [0, n)
	pickOwner func(n int) int
}

var _ AutovoiceProvider = (*AutovoiceHandler)(nil)

func NewAutovoiceHandler(db database.Database, dc discordutils.Client, cfg models.AutovoiceConfig) *AutovoiceHandler {
	logger := log.With("service", "autovoice")

	workers := cfg.ReconcileWorkers
	if workers < 1 {
		workers = 1
	}

	return &AutovoiceHandler{
		db:        db,
		dc:        dc,
		log:       logger,
		chLock:    multilock.New[string](),
		grLock:    multilock.New[string](),
		alerts:    newAlerter(db, dc, logger, time.Duration(cfg.AlertCooldown)*time.Second),
		workers:   workers,
		pickOwner: rand.Intn,
	}
}

// GROUPS

func (h *AutovoiceHandler) CreateGroup(ctx context.Context, guildID, channelID, name string, public bool) (models.DynamicVoiceGroup, error) {
	ch, err := h.guildChannel(guildID, channelID)
	if err != nil {
		return models.DynamicVoiceGroup{}, err
	}
	if !isVoice(ch) {
		return models.DynamicVoiceGroup{}, ErrNotVoiceChannel
	}

	if _, err = h.db.GetVoiceGroupByChannel(channelID); err == nil {
		return models.DynamicVoiceGroup{}, ErrAlreadyGroup
	} else if !dberr.IsErrNotFound(err) {
		return models.DynamicVoiceGroup{}, err
	}

	if _, err = h.db.GetVoiceChannel(channelID); err == nil {
		return models.DynamicVoiceGroup{}, ErrDynamicChannel
	} else if !dberr.IsErrNotFound(err) {
		return models.DynamicVoiceGroup{}, err
	}

	if name == "" {
		name = ch.Name
	}

	g := models.DynamicVoiceGroup{
		ID:        xid.New().String(),
		GuildID:   guildID,
		ChannelID: channelID,
		Name:      name,
		Public:    public,
	}

	unlock, err := h.grLock.Lock(ctx, g.ID)
	if err != nil {
		return models.DynamicVoiceGroup{}, err
	}
	defer unlock()

	if err = h.db.AddVoiceGroup(g); err != nil {
		return models.DynamicVoiceGroup{}, err
	}

	h.log.Info("Voice group created", "guild", guildID, "group", g.ID, "channel", channelID, "public", public)

	// members already waiting in the template get their channels now
	return g, h.syncGroup(ctx, g)
}

func (h *AutovoiceHandler) DeleteGroup(ctx context.Context, guildID, channelID string) (models.DynamicVoiceGroup, error) {
	g, err := h.db.GetVoiceGroupByChannel(channelID)
	if dberr.IsErrNotFound(err) || (err == nil && g.GuildID != guildID) {
		return models.DynamicVoiceGroup{}, ErrGroupNotFound
	}
	if err != nil {
		return models.DynamicVoiceGroup{}, err
	}

	unlock, err := h.grLock.Lock(ctx, g.ID)
	if err != nil {
		return models.DynamicVoiceGroup{}, err
	}
	defer unlock()

	return g, h.dropGroup(g)
}

func (h *AutovoiceHandler) Groups(guildID string) ([]models.VoiceGroupResponse, error) {
	groups, err := h.db.GetVoiceGroups(guildID)
	if err != nil {
		return nil, err
	}

	res := make([]models.VoiceGroupResponse, 0, len(groups))
	for _, g := range groups {
		chs, err := h.db.GetVoiceChannels(g.ID)
		if err != nil {
			return nil, err
		}
		if chs == nil {
			chs = []models.DynamicVoiceChannel{}
		}
		res = append(res, models.VoiceGroupResponse{
			DynamicVoiceGroup: g,
			Channels:          chs,
		})
	}

	return res, nil
}

// dropGroup removes all spawned channels of the group and the
// group itself. Rows of channels which could not be deleted
// are kept, reconciliation picks them up as dangling rows.
//
// Must be called holding the group lock.
func (h *AutovoiceHandler) dropGroup(g models.DynamicVoiceGroup) error {
	rows, err := h.db.GetVoiceChannels(g.ID)
	if err != nil {
		return err
	}

	var mErr *multierror.Error
	for _, row := range rows {
		mErr = multierror.Append(mErr, h.teardown(row))
	}

	if err = h.db.DeleteVoiceGroup(g.ID); err != nil {
		return multierror.Append(mErr, err)
	}
	if err = h.db.DeleteRoleVoiceLinksByChannel(g.GuildID, g.ChannelID); err != nil {
		mErr = multierror.Append(mErr, err)
	}

	h.log.Info("Voice group removed", "guild", g.GuildID, "group", g.ID, "channels", len(rows))

	return mErr.ErrorOrNil()
}

// ROLE LINKS

func (h *AutovoiceHandler) LinkRole(ctx context.Context, guildID, channelID, roleID string) error {
	ch, err := h.guildChannel(guildID, channelID)
	if err != nil {
		return err
	}
	if !isVoice(ch) {
		return ErrNotVoiceChannel
	}

	r, err := h.dc.Role(guildID, roleID)
	if discordutils.IsNotFound(err) {
		return ErrRoleNotFound
	}
	if err != nil {
		return err
	}
	if r.ID == guildID || r.Managed {
		return ErrRoleNotAssignable
	}

	l := models.RoleVoiceLink{GuildID: guildID, ChannelID: channelID, RoleID: roleID}
	if err = h.db.AddRoleVoiceLink(l); err != nil {
		return err
	}

	h.log.Info("Role linked", "guild", guildID, "channel", channelID, "role", roleID)

	return h.syncRoles(guildID)
}

func (h *AutovoiceHandler) UnlinkRole(ctx context.Context, guildID, channelID, roleID string) error {
	l := models.RoleVoiceLink{GuildID: guildID, ChannelID: channelID, RoleID: roleID}
	if err := h.db.DeleteRoleVoiceLink(l); err != nil {
		return err
	}

	h.log.Info("Role unlinked", "guild", guildID, "channel", channelID, "role", roleID)

	return h.syncRoles(guildID, roleID)
}

func (h *AutovoiceHandler) RoleLinks(guildID string) ([]models.RoleVoiceLink, error) {
	return h.db.GetRoleVoiceLinks(guildID)
}

// ALERTS

func (h *AutovoiceHandler) SetAlertChannel(guildID, channelID string) error {
	if channelID != "" {
		ch, err := h.guildChannel(guildID, channelID)
		if err != nil {
			return err
		}
		if ch.Type != discordgo.ChannelTypeGuildText {
			return ErrNotTextChannel
		}
	}

	return h.db.SetAlertChannel(guildID, channelID)
}

// HELPERS

func (h *AutovoiceHandler) guildChannel(guildID, channelID string) (*discordgo.Channel, error) {
	ch, err := h.dc.Channel(channelID)
	if discordutils.IsNotFound(err) {
		return nil, ErrChannelNotFound
	}
	if err != nil {
		return nil, err
	}
	if ch.GuildID != guildID {
		return nil, ErrChannelNotFound
	}
	return ch, nil
}

// lock acquires the channel lock and then the group lock.
func (h *AutovoiceHandler) lock(ctx context.Context, channelID, groupID string) (func(), error) {
	unlockCh, err := h.chLock.Lock(ctx, channelID)
	if err != nil {
		return nil, err
	}

	unlockGr, err := h.grLock.Lock(ctx, groupID)
	if err != nil {
		unlockCh()
		return nil, err
	}

	return func() {
		unlockGr()
		unlockCh()
	}, nil
}

func isVoice(ch *discordgo.Channel) bool {
	return ch.Type == discordgo.ChannelTypeGuildVoice || ch.Type == discordgo.ChannelTypeGuildStageVoice
}

func channelName(m *discordgo.Member, groupName string) string {
	return fmt.Sprintf("%s's %s", discordutils.DisplayName(m), groupName)
}
