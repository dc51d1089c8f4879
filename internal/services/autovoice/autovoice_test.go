package autovoice

import (
	"context"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zekurio/hearth/internal/models"
	"github.com/zekurio/hearth/internal/services/database"
	"github.com/zekurio/hearth/internal/services/database/sqldb"
)

func newTestHandler(t *testing.T, cfg models.AutovoiceConfig) (*AutovoiceHandler, *fakeDiscord, database.Database) {
	t.Helper()

	db, err := sqldb.InitSQLite(models.SQLiteConfig{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	if cfg.ReconcileWorkers == 0 {
		cfg.ReconcileWorkers = 2
	}

	f := newFakeDiscord()
	h := NewAutovoiceHandler(db, f, cfg)
	h.pickOwner = func(int) int { return 0 }

	return h, f, db
}

func handle(h *AutovoiceHandler, f *fakeDiscord, userID, channelID string) error {
	before, after := f.connect(userID, channelID)
	return h.HandleVoiceStateUpdate(context.Background(), before, after)
}

// follow replays the update event caused by the bot
// moving a member.
func follow(h *AutovoiceHandler, userID, from, to string) error {
	return h.HandleVoiceStateUpdate(context.Background(),
		&discordgo.VoiceState{GuildID: testGuild, UserID: userID, ChannelID: from},
		&discordgo.VoiceState{GuildID: testGuild, UserID: userID, ChannelID: to})
}

func overwrite(ch *discordgo.Channel, id string) *discordgo.PermissionOverwrite {
	for _, o := range ch.PermissionOverwrites {
		if o.ID == id {
			return o
		}
	}
	return nil
}

func singleRow(t *testing.T, db database.Database) models.DynamicVoiceChannel {
	t.Helper()

	rows, err := db.GetGuildVoiceChannels(testGuild)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	return rows[0]
}

func TestJoinAndLeave(t *testing.T) {
	ctx := context.Background()
	h, f, db := newTestHandler(t, models.AutovoiceConfig{})

	g, err := h.CreateGroup(ctx, testGuild, testTemplate, "Gaming", true)
	require.NoError(t, err)

	require.NoError(t, handle(h, f, alice, testTemplate))

	row := singleRow(t, db)
	assert.Equal(t, alice, row.OwnerID)
	assert.Equal(t, g.ID, row.GroupID)
	assert.Equal(t, row.ChannelID, f.voiceOf(alice))

	voice, err := f.Channel(row.ChannelID)
	require.NoError(t, err)
	assert.Equal(t, "alice's Gaming", voice.Name)
	assert.Equal(t, discordgo.ChannelTypeGuildVoice, voice.Type)
	assert.Equal(t, testCategory, voice.ParentID)
	assert.Equal(t, 96000, voice.Bitrate)
	assert.Equal(t, 5, voice.UserLimit)
	assert.Nil(t, overwrite(voice, alice))

	text, err := f.Channel(row.TextChannelID)
	require.NoError(t, err)
	assert.Equal(t, discordgo.ChannelTypeGuildText, text.Type)
	if o := overwrite(text, testGuild); assert.NotNil(t, o) {
		assert.Equal(t, int64(discordgo.PermissionViewChannel), o.Deny)
	}
	if o := overwrite(text, testSelf); assert.NotNil(t, o) {
		assert.Equal(t, int64(discordgo.PermissionViewChannel), o.Allow)
	}
	if o := overwrite(text, alice); assert.NotNil(t, o) {
		assert.Equal(t, int64(discordgo.PermissionViewChannel), o.Allow)
	}

	assert.Equal(t, []string{testAFK, testTemplate, row.ChannelID}, f.voiceOrder())

	require.NoError(t, follow(h, alice, testTemplate, row.ChannelID))
	require.NoError(t, handle(h, f, alice, ""))

	assert.False(t, f.exists(row.ChannelID))
	assert.False(t, f.exists(row.TextChannelID))

	rows, err := db.GetGuildVoiceChannels(testGuild)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestJoinSpawnedGrantsText(t *testing.T) {
	ctx := context.Background()
	h, f, db := newTestHandler(t, models.AutovoiceConfig{})

	_, err := h.CreateGroup(ctx, testGuild, testTemplate, "Gaming", true)
	require.NoError(t, err)

	require.NoError(t, handle(h, f, alice, testTemplate))
	row := singleRow(t, db)

	require.NoError(t, handle(h, f, bob, row.ChannelID))

	text, err := f.Channel(row.TextChannelID)
	require.NoError(t, err)
	assert.NotNil(t, overwrite(text, bob))

	// bob leaves, the channel stays with alice
	require.NoError(t, handle(h, f, bob, ""))

	assert.True(t, f.exists(row.ChannelID))
	text, err = f.Channel(row.TextChannelID)
	require.NoError(t, err)
	assert.Nil(t, overwrite(text, bob))
	assert.Equal(t, alice, singleRow(t, db).OwnerID)
}

func TestPrivateOwnerLeaves(t *testing.T) {
	ctx := context.Background()
	h, f, db := newTestHandler(t, models.AutovoiceConfig{})

	_, err := h.CreateGroup(ctx, testGuild, testTemplate, "Gaming", false)
	require.NoError(t, err)

	require.NoError(t, handle(h, f, alice, testTemplate))
	row := singleRow(t, db)
	require.NoError(t, follow(h, alice, testTemplate, row.ChannelID))

	voice, err := f.Channel(row.ChannelID)
	require.NoError(t, err)
	if o := overwrite(voice, testGuild); assert.NotNil(t, o) {
		assert.Equal(t, int64(0), o.Allow&discordgo.PermissionVoiceConnect)
		assert.Equal(t, int64(discordgo.PermissionVoiceConnect), o.Deny&discordgo.PermissionVoiceConnect)
	}
	if o := overwrite(voice, alice); assert.NotNil(t, o) {
		assert.Equal(t, int64(ownerAllow), o.Allow)
	}

	require.NoError(t, handle(h, f, bob, row.ChannelID))
	require.NoError(t, handle(h, f, alice, ""))

	row = singleRow(t, db)
	assert.Equal(t, bob, row.OwnerID)
	assert.Equal(t, row.ChannelID, f.voiceOf(bob))

	voice, err = f.Channel(row.ChannelID)
	require.NoError(t, err)
	assert.Equal(t, "bob's Gaming", voice.Name)
	assert.Nil(t, overwrite(voice, alice))
	if o := overwrite(voice, bob); assert.NotNil(t, o) {
		assert.Equal(t, int64(ownerAllow), o.Allow)
	}

	text, err := f.Channel(row.TextChannelID)
	require.NoError(t, err)
	assert.Nil(t, overwrite(text, alice))
	assert.NotNil(t, overwrite(text, bob))
}

func TestMoveFailure(t *testing.T) {
	ctx := context.Background()
	h, f, db := newTestHandler(t, models.AutovoiceConfig{})

	_, err := h.CreateGroup(ctx, testGuild, testTemplate, "Gaming", true)
	require.NoError(t, err)
	require.NoError(t, h.SetAlertChannel(testGuild, testText))

	nChannels := f.channelCount()
	f.failMove = errForbidden

	assert.Error(t, handle(h, f, alice, testTemplate))

	assert.Equal(t, nChannels, f.channelCount())
	assert.Equal(t, testTemplate, f.voiceOf(alice))

	rows, err := db.GetGuildVoiceChannels(testGuild)
	require.NoError(t, err)
	assert.Empty(t, rows)

	msgs := f.sent()
	require.Len(t, msgs, 1)
	assert.Equal(t, testText, msgs[0].channelID)
}

func TestCreateFailure(t *testing.T) {
	ctx := context.Background()
	h, f, db := newTestHandler(t, models.AutovoiceConfig{})

	_, err := h.CreateGroup(ctx, testGuild, testTemplate, "Gaming", true)
	require.NoError(t, err)

	nChannels := f.channelCount()
	f.failCreate = errForbidden

	assert.Error(t, handle(h, f, alice, testTemplate))
	assert.Equal(t, nChannels, f.channelCount())

	rows, err := db.GetGuildVoiceChannels(testGuild)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestDuplicateJoinEvents(t *testing.T) {
	ctx := context.Background()
	h, f, db := newTestHandler(t, models.AutovoiceConfig{})

	_, err := h.CreateGroup(ctx, testGuild, testTemplate, "Gaming", true)
	require.NoError(t, err)

	before, after := f.connect(alice, testTemplate)
	nChannels := f.channelCount()

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, h.HandleVoiceStateUpdate(ctx, before, after))
		}()
	}
	wg.Wait()

	row := singleRow(t, db)
	assert.Equal(t, row.ChannelID, f.voiceOf(alice))
	assert.Equal(t, nChannels+2, f.channelCount())
	assert.Zero(t, h.chLock.Len())
	assert.Zero(t, h.grLock.Len())
}

func TestJoinReplayedBeforeMoveIsReported(t *testing.T) {
	ctx := context.Background()
	h, f, db := newTestHandler(t, models.AutovoiceConfig{})
	f.lagMoves = true

	_, err := h.CreateGroup(ctx, testGuild, testTemplate, "Gaming", true)
	require.NoError(t, err)

	before, after := f.connect(alice, testTemplate)
	nChannels := f.channelCount()

	require.NoError(t, h.HandleVoiceStateUpdate(ctx, before, after))
	require.NoError(t, h.HandleVoiceStateUpdate(ctx, before, after))

	row := singleRow(t, db)
	assert.Equal(t, []string{row.ChannelID}, f.moved())
	assert.Equal(t, nChannels+2, f.channelCount())

	// alice still shows up in the template, her channel is kept
	require.NoError(t, h.Reconcile(ctx, testGuild))
	assert.Equal(t, row, singleRow(t, db))
	assert.Equal(t, []string{row.ChannelID}, f.moved())
	assert.True(t, f.exists(row.ChannelID))
	assert.True(t, f.exists(row.TextChannelID))

	f.settle()
	require.NoError(t, follow(h, alice, testTemplate, row.ChannelID))

	assert.Equal(t, row, singleRow(t, db))
	assert.Equal(t, row.ChannelID, f.voiceOf(alice))
	assert.Equal(t, nChannels+2, f.channelCount())
}

func TestReconcileBeforeJoinEvent(t *testing.T) {
	ctx := context.Background()
	h, f, db := newTestHandler(t, models.AutovoiceConfig{})
	f.lagMoves = true

	_, err := h.CreateGroup(ctx, testGuild, testTemplate, "Gaming", true)
	require.NoError(t, err)

	before, after := f.connect(alice, testTemplate)

	require.NoError(t, h.Reconcile(ctx, testGuild))
	require.NoError(t, h.HandleVoiceStateUpdate(ctx, before, after))

	row := singleRow(t, db)
	assert.Equal(t, alice, row.OwnerID)
	assert.Equal(t, []string{row.ChannelID}, f.moved())
}

func TestConcurrentJoins(t *testing.T) {
	ctx := context.Background()
	h, f, db := newTestHandler(t, models.AutovoiceConfig{})

	_, err := h.CreateGroup(ctx, testGuild, testTemplate, "Gaming", true)
	require.NoError(t, err)

	users := []string{alice, bob, carol}
	events := make([][2]*discordgo.VoiceState, len(users))
	for i, u := range users {
		before, after := f.connect(u, testTemplate)
		events[i] = [2]*discordgo.VoiceState{before, after}
	}

	var wg sync.WaitGroup
	for _, e := range events {
		e := e
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, h.HandleVoiceStateUpdate(ctx, e[0], e[1]))
		}()
	}
	wg.Wait()

	rows, err := db.GetGuildVoiceChannels(testGuild)
	require.NoError(t, err)
	require.Len(t, rows, len(users))

	owners := make([]string, 0, len(rows))
	spawned := make([]string, 0, len(rows))
	for _, r := range rows {
		owners = append(owners, r.OwnerID)
		spawned = append(spawned, r.ChannelID)
		assert.Equal(t, r.ChannelID, f.voiceOf(r.OwnerID))
	}
	assert.ElementsMatch(t, users, owners)

	order := f.voiceOrder()
	require.Len(t, order, 2+len(users))
	assert.Equal(t, []string{testAFK, testTemplate}, order[:2])
	assert.ElementsMatch(t, spawned, order[2:])
	assert.IsIncreasing(t, order[2:])
}

func TestBotsIgnored(t *testing.T) {
	ctx := context.Background()
	h, f, db := newTestHandler(t, models.AutovoiceConfig{})

	_, err := h.CreateGroup(ctx, testGuild, testTemplate, "Gaming", true)
	require.NoError(t, err)

	require.NoError(t, handle(h, f, robot, testTemplate))

	rows, err := db.GetGuildVoiceChannels(testGuild)
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Equal(t, testTemplate, f.voiceOf(robot))

	// a bot remaining in a spawned channel does not keep it alive
	require.NoError(t, handle(h, f, alice, testTemplate))
	row := singleRow(t, db)
	f.connect(robot, row.ChannelID)
	require.NoError(t, handle(h, f, alice, ""))

	assert.False(t, f.exists(row.ChannelID))
}

func TestCreateGroupValidation(t *testing.T) {
	ctx := context.Background()
	h, f, db := newTestHandler(t, models.AutovoiceConfig{})

	_, err := h.CreateGroup(ctx, testGuild, "999", "", true)
	assert.ErrorIs(t, err, ErrChannelNotFound)

	_, err = h.CreateGroup(ctx, testGuild, testText, "", true)
	assert.ErrorIs(t, err, ErrNotVoiceChannel)

	_, err = h.CreateGroup(ctx, "other", testTemplate, "", true)
	assert.ErrorIs(t, err, ErrChannelNotFound)

	g, err := h.CreateGroup(ctx, testGuild, testTemplate, "", true)
	require.NoError(t, err)
	assert.Equal(t, "Join to create", g.Name)
	assert.NotEmpty(t, g.ID)

	_, err = h.CreateGroup(ctx, testGuild, testTemplate, "", true)
	assert.ErrorIs(t, err, ErrAlreadyGroup)

	require.NoError(t, handle(h, f, alice, testTemplate))
	row := singleRow(t, db)

	_, err = h.CreateGroup(ctx, testGuild, row.ChannelID, "", true)
	assert.ErrorIs(t, err, ErrDynamicChannel)
}

func TestCreateGroupProvisionsWaiting(t *testing.T) {
	ctx := context.Background()
	h, f, db := newTestHandler(t, models.AutovoiceConfig{})

	f.connect(alice, testTemplate)

	_, err := h.CreateGroup(ctx, testGuild, testTemplate, "Gaming", true)
	require.NoError(t, err)

	row := singleRow(t, db)
	assert.Equal(t, alice, row.OwnerID)
	assert.Equal(t, row.ChannelID, f.voiceOf(alice))
}

func TestDeleteGroupCascades(t *testing.T) {
	ctx := context.Background()
	h, f, db := newTestHandler(t, models.AutovoiceConfig{})

	g, err := h.CreateGroup(ctx, testGuild, testTemplate, "Gaming", true)
	require.NoError(t, err)
	require.NoError(t, h.LinkRole(ctx, testGuild, testTemplate, testRole))

	require.NoError(t, handle(h, f, alice, testTemplate))
	require.NoError(t, handle(h, f, bob, testTemplate))

	rows, err := db.GetVoiceChannels(g.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	_, err = h.DeleteGroup(ctx, "other", testTemplate)
	assert.ErrorIs(t, err, ErrGroupNotFound)

	deleted, err := h.DeleteGroup(ctx, testGuild, testTemplate)
	require.NoError(t, err)
	assert.Equal(t, g, deleted)

	for _, r := range rows {
		assert.False(t, f.exists(r.ChannelID))
		assert.False(t, f.exists(r.TextChannelID))
	}
	assert.True(t, f.exists(testTemplate))

	groups, err := h.Groups(testGuild)
	require.NoError(t, err)
	assert.Empty(t, groups)

	left, err := db.GetGuildVoiceChannels(testGuild)
	require.NoError(t, err)
	assert.Empty(t, left)

	links, err := h.RoleLinks(testGuild)
	require.NoError(t, err)
	assert.Empty(t, links)

	_, err = h.DeleteGroup(ctx, testGuild, testTemplate)
	assert.ErrorIs(t, err, ErrGroupNotFound)
}

func TestGroups(t *testing.T) {
	ctx := context.Background()
	h, f, _ := newTestHandler(t, models.AutovoiceConfig{})

	g, err := h.CreateGroup(ctx, testGuild, testTemplate, "Gaming", false)
	require.NoError(t, err)

	groups, err := h.Groups(testGuild)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, g, groups[0].DynamicVoiceGroup)
	assert.NotNil(t, groups[0].Channels)
	assert.Empty(t, groups[0].Channels)

	require.NoError(t, handle(h, f, alice, testTemplate))

	groups, err = h.Groups(testGuild)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.Len(t, groups[0].Channels, 1)
	assert.Equal(t, alice, groups[0].Channels[0].OwnerID)
}

func TestSetAlertChannel(t *testing.T) {
	h, _, db := newTestHandler(t, models.AutovoiceConfig{})

	assert.ErrorIs(t, h.SetAlertChannel(testGuild, testTemplate), ErrNotTextChannel)
	assert.ErrorIs(t, h.SetAlertChannel(testGuild, "999"), ErrChannelNotFound)

	require.NoError(t, h.SetAlertChannel(testGuild, testText))
	ch, err := db.GetAlertChannel(testGuild)
	require.NoError(t, err)
	assert.Equal(t, testText, ch)

	require.NoError(t, h.SetAlertChannel(testGuild, ""))
	ch, err = db.GetAlertChannel(testGuild)
	require.NoError(t, err)
	assert.Empty(t, ch)
}

func TestMuteIsIgnored(t *testing.T) {
	ctx := context.Background()
	h, f, _ := newTestHandler(t, models.AutovoiceConfig{})

	_, err := h.CreateGroup(ctx, testGuild, testTemplate, "Gaming", true)
	require.NoError(t, err)

	f.connect(alice, testTemplate)
	n := f.mutationCount()

	vs := &discordgo.VoiceState{GuildID: testGuild, UserID: alice, ChannelID: testTemplate}
	muted := *vs
	muted.SelfMute = true
	require.NoError(t, h.HandleVoiceStateUpdate(ctx, vs, &muted))

	assert.Equal(t, n, f.mutationCount())
}
