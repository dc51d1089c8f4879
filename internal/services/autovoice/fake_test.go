package autovoice

import (
	"net/http"
	"sort"
	"strconv"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/zekurio/hearth/pkg/discordutils"
)

const (
	testGuild    = "100"
	testSelf     = "1"
	testCategory = "200"
	testTemplate = "300"
	testAFK      = "301"
	testText     = "302"
	testRole     = "400"

	alice = "10"
	bob   = "11"
	carol = "12"
	robot = "13"
)

func restErr(status, code int) error {
	return &discordgo.RESTError{
		Response: &http.Response{StatusCode: status},
		Message:  &discordgo.APIErrorMessage{Code: code},
	}
}

var (
	errUnknownChannel = restErr(http.StatusNotFound, discordgo.ErrCodeUnknownChannel)
	errUnknownMember  = restErr(http.StatusNotFound, discordgo.ErrCodeUnknownMember)
	errUnknownRole    = restErr(http.StatusNotFound, discordgo.ErrCodeUnknownRole)
	errForbidden      = restErr(http.StatusForbidden, discordgo.ErrCodeMissingPermissions)
)

type sentMessage struct {
	channelID string
	content   string
}

// fakeDiscord is an in-memory single guild implementing
// discordutils.Client.
type fakeDiscord struct {
	mtx sync.Mutex

	nextID   int64
	channels map[string]*discordgo.Channel
	roles    map[string]*discordgo.Role
	members  map[string]*discordgo.Member
	voice    map[string]string
	messages []sentMessage

	mutations int
	moves     []string

	// lagMoves keeps moved members in their old channel until
	// settle is called, like the session state does until the
	// gateway reports the move
	lagMoves bool
	pending  map[string]string

	failMove   error
	failCreate error
	failDelete error
}

var _ discordutils.Client = (*fakeDiscord)(nil)

func newFakeDiscord() *fakeDiscord {
	f := &fakeDiscord{
		nextID:   1000000,
		channels: make(map[string]*discordgo.Channel),
		roles:    make(map[string]*discordgo.Role),
		members:  make(map[string]*discordgo.Member),
		voice:    make(map[string]string),
		pending:  make(map[string]string),
	}

	f.channels[testCategory] = &discordgo.Channel{ID: testCategory, GuildID: testGuild, Name: "voice", Type: discordgo.ChannelTypeGuildCategory}
	f.channels[testAFK] = &discordgo.Channel{ID: testAFK, GuildID: testGuild, Name: "afk", Type: discordgo.ChannelTypeGuildVoice, ParentID: testCategory, Position: 0}
	f.channels[testTemplate] = &discordgo.Channel{
		ID: testTemplate, GuildID: testGuild, Name: "Join to create", Type: discordgo.ChannelTypeGuildVoice,
		ParentID: testCategory, Position: 1, Bitrate: 96000, UserLimit: 5,
		PermissionOverwrites: []*discordgo.PermissionOverwrite{
			{ID: testGuild, Type: discordgo.PermissionOverwriteTypeRole, Allow: discordgo.PermissionVoiceConnect},
		},
	}
	f.channels[testText] = &discordgo.Channel{ID: testText, GuildID: testGuild, Name: "alerts", Type: discordgo.ChannelTypeGuildText}

	f.roles[testGuild] = &discordgo.Role{ID: testGuild, Name: "@everyone"}
	f.roles[testRole] = &discordgo.Role{ID: testRole, Name: "in voice"}

	for id, name := range map[string]string{alice: "alice", bob: "bob", carol: "carol", testSelf: "hearth", robot: "robot"} {
		f.members[id] = &discordgo.Member{
			GuildID: testGuild,
			User:    &discordgo.User{ID: id, Username: name, Bot: id == testSelf || id == robot},
		}
	}

	return f
}

// connect changes the voice channel of userID the way the gateway
// would and returns the states of the resulting update event.
func (f *fakeDiscord) connect(userID, channelID string) (before, after *discordgo.VoiceState) {
	f.mtx.Lock()
	defer f.mtx.Unlock()

	before = &discordgo.VoiceState{GuildID: testGuild, UserID: userID, ChannelID: f.voice[userID]}
	after = &discordgo.VoiceState{GuildID: testGuild, UserID: userID, ChannelID: channelID}

	if channelID == "" {
		delete(f.voice, userID)
	} else {
		f.voice[userID] = channelID
	}

	return
}

// settle applies all moves held back by lagMoves.
func (f *fakeDiscord) settle() {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	for u, c := range f.pending {
		f.voice[u] = c
	}
	f.pending = make(map[string]string)
}

func (f *fakeDiscord) moved() []string {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	return append([]string(nil), f.moves...)
}

func (f *fakeDiscord) voiceOf(userID string) string {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	return f.voice[userID]
}

func (f *fakeDiscord) exists(channelID string) bool {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	_, ok := f.channels[channelID]
	return ok
}

func (f *fakeDiscord) channelCount() int {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	return len(f.channels)
}

func (f *fakeDiscord) mutationCount() int {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	return f.mutations
}

// removeChannel deletes a channel without it being counted
// as mutation of the handler.
func (f *fakeDiscord) removeChannel(channelID string) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.deleteChannel(channelID)
}

func (f *fakeDiscord) hasRole(userID, roleID string) bool {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	for _, r := range f.members[userID].Roles {
		if r == roleID {
			return true
		}
	}
	return false
}

func (f *fakeDiscord) setRole(userID, roleID string, has bool) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.setMemberRole(userID, roleID, has)
}

func (f *fakeDiscord) sent() []sentMessage {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	return append([]sentMessage(nil), f.messages...)
}

// voiceOrder returns the voice channel IDs of the category
// in display order.
func (f *fakeDiscord) voiceOrder() []string {
	f.mtx.Lock()
	defer f.mtx.Unlock()

	var chs []*discordgo.Channel
	for _, c := range f.channels {
		if c.Type == discordgo.ChannelTypeGuildVoice && c.ParentID == testCategory {
			chs = append(chs, c)
		}
	}
	sort.Slice(chs, func(i, j int) bool {
		if chs[i].Position != chs[j].Position {
			return chs[i].Position < chs[j].Position
		}
		return discordutils.LessID(chs[i].ID, chs[j].ID)
	})

	ids := make([]string, len(chs))
	for i, c := range chs {
		ids[i] = c.ID
	}
	return ids
}

func (f *fakeDiscord) deleteChannel(channelID string) {
	delete(f.channels, channelID)
	for u, c := range f.voice {
		if c == channelID {
			delete(f.voice, u)
		}
	}
}

func (f *fakeDiscord) setMemberRole(userID, roleID string, has bool) {
	m := f.members[userID]
	roles := m.Roles[:0:0]
	for _, r := range m.Roles {
		if r != roleID {
			roles = append(roles, r)
		}
	}
	if has {
		roles = append(roles, roleID)
	}
	m.Roles = roles
}

func copyChannel(c *discordgo.Channel) *discordgo.Channel {
	cc := *c
	cc.PermissionOverwrites = make([]*discordgo.PermissionOverwrite, len(c.PermissionOverwrites))
	for i, o := range c.PermissionOverwrites {
		oc := *o
		cc.PermissionOverwrites[i] = &oc
	}
	return &cc
}

func copyMember(m *discordgo.Member) *discordgo.Member {
	mc := *m
	u := *m.User
	mc.User = &u
	mc.Roles = append([]string(nil), m.Roles...)
	return &mc
}

// Client implementation

func (f *fakeDiscord) SelfID() string {
	return testSelf
}

func (f *fakeDiscord) Channel(channelID string) (*discordgo.Channel, error) {
	f.mtx.Lock()
	defer f.mtx.Unlock()

	c, ok := f.channels[channelID]
	if !ok {
		return nil, errUnknownChannel
	}
	return copyChannel(c), nil
}

func (f *fakeDiscord) GuildChannels(guildID string) ([]*discordgo.Channel, error) {
	f.mtx.Lock()
	defer f.mtx.Unlock()

	chs := make([]*discordgo.Channel, 0, len(f.channels))
	for _, c := range f.channels {
		chs = append(chs, copyChannel(c))
	}
	return chs, nil
}

func (f *fakeDiscord) Role(guildID, roleID string) (*discordgo.Role, error) {
	f.mtx.Lock()
	defer f.mtx.Unlock()

	r, ok := f.roles[roleID]
	if !ok {
		return nil, errUnknownRole
	}
	rc := *r
	return &rc, nil
}

func (f *fakeDiscord) Member(guildID, userID string) (*discordgo.Member, error) {
	f.mtx.Lock()
	defer f.mtx.Unlock()

	m, ok := f.members[userID]
	if !ok {
		return nil, errUnknownMember
	}
	return copyMember(m), nil
}

func (f *fakeDiscord) GuildMembers(guildID string) ([]*discordgo.Member, error) {
	f.mtx.Lock()
	defer f.mtx.Unlock()

	members := make([]*discordgo.Member, 0, len(f.members))
	for _, m := range f.members {
		members = append(members, copyMember(m))
	}
	return members, nil
}

func (f *fakeDiscord) VoiceStates(guildID string) ([]*discordgo.VoiceState, error) {
	f.mtx.Lock()
	defer f.mtx.Unlock()

	states := make([]*discordgo.VoiceState, 0, len(f.voice))
	for u, c := range f.voice {
		states = append(states, &discordgo.VoiceState{GuildID: testGuild, UserID: u, ChannelID: c})
	}
	sort.Slice(states, func(i, j int) bool { return states[i].UserID < states[j].UserID })
	return states, nil
}

func (f *fakeDiscord) CreateChannel(guildID string, data discordgo.GuildChannelCreateData) (*discordgo.Channel, error) {
	f.mtx.Lock()
	defer f.mtx.Unlock()

	if f.failCreate != nil {
		return nil, f.failCreate
	}
	f.mutations++

	f.nextID++
	c := &discordgo.Channel{
		ID:        strconv.FormatInt(f.nextID, 10),
		GuildID:   guildID,
		Name:      data.Name,
		Type:      data.Type,
		ParentID:  data.ParentID,
		Position:  data.Position,
		Bitrate:   data.Bitrate,
		UserLimit: data.UserLimit,
	}
	for _, o := range data.PermissionOverwrites {
		oc := *o
		c.PermissionOverwrites = append(c.PermissionOverwrites, &oc)
	}
	f.channels[c.ID] = c

	return copyChannel(c), nil
}

func (f *fakeDiscord) RenameChannel(channelID, name string) error {
	f.mtx.Lock()
	defer f.mtx.Unlock()

	c, ok := f.channels[channelID]
	if !ok {
		return errUnknownChannel
	}
	f.mutations++
	c.Name = name
	return nil
}

func (f *fakeDiscord) DeleteChannel(channelID string) error {
	f.mtx.Lock()
	defer f.mtx.Unlock()

	if _, ok := f.channels[channelID]; !ok {
		return errUnknownChannel
	}
	if f.failDelete != nil {
		return f.failDelete
	}
	f.mutations++
	f.deleteChannel(channelID)
	return nil
}

func (f *fakeDiscord) ReorderChannels(guildID string, channels []*discordgo.Channel) error {
	f.mtx.Lock()
	defer f.mtx.Unlock()

	f.mutations++
	for _, o := range channels {
		if c, ok := f.channels[o.ID]; ok {
			c.Position = o.Position
		}
	}
	return nil
}

func (f *fakeDiscord) SetPermission(channelID, targetID string, targetType discordgo.PermissionOverwriteType, allow, deny int64) error {
	f.mtx.Lock()
	defer f.mtx.Unlock()

	c, ok := f.channels[channelID]
	if !ok {
		return errUnknownChannel
	}
	f.mutations++

	for _, o := range c.PermissionOverwrites {
		if o.ID == targetID {
			o.Type, o.Allow, o.Deny = targetType, allow, deny
			return nil
		}
	}
	c.PermissionOverwrites = append(c.PermissionOverwrites, &discordgo.PermissionOverwrite{
		ID: targetID, Type: targetType, Allow: allow, Deny: deny,
	})
	return nil
}

func (f *fakeDiscord) DeletePermission(channelID, targetID string) error {
	f.mtx.Lock()
	defer f.mtx.Unlock()

	c, ok := f.channels[channelID]
	if !ok {
		return errUnknownChannel
	}

	for i, o := range c.PermissionOverwrites {
		if o.ID == targetID {
			f.mutations++
			c.PermissionOverwrites = append(c.PermissionOverwrites[:i], c.PermissionOverwrites[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *fakeDiscord) MoveMember(guildID, userID, channelID string) error {
	f.mtx.Lock()
	defer f.mtx.Unlock()

	if f.failMove != nil {
		return f.failMove
	}
	if _, ok := f.channels[channelID]; !ok {
		return errUnknownChannel
	}
	if _, ok := f.voice[userID]; !ok {
		return restErr(http.StatusBadRequest, 40032)
	}
	f.mutations++
	f.moves = append(f.moves, channelID)
	if f.lagMoves {
		f.pending[userID] = channelID
	} else {
		f.voice[userID] = channelID
	}
	return nil
}

func (f *fakeDiscord) AddRole(guildID, userID, roleID string) error {
	f.mtx.Lock()
	defer f.mtx.Unlock()

	if _, ok := f.members[userID]; !ok {
		return errUnknownMember
	}
	if _, ok := f.roles[roleID]; !ok {
		return errUnknownRole
	}
	f.mutations++
	f.setMemberRole(userID, roleID, true)
	return nil
}

func (f *fakeDiscord) RemoveRole(guildID, userID, roleID string) error {
	f.mtx.Lock()
	defer f.mtx.Unlock()

	if _, ok := f.members[userID]; !ok {
		return errUnknownMember
	}
	f.mutations++
	f.setMemberRole(userID, roleID, false)
	return nil
}

func (f *fakeDiscord) SendMessage(channelID, content string) error {
	f.mtx.Lock()
	defer f.mtx.Unlock()

	if _, ok := f.channels[channelID]; !ok {
		return errUnknownChannel
	}
	f.messages = append(f.messages, sentMessage{channelID, content})
	return nil
}
