package listeners

import (
	"context"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/charmbracelet/log"
	"github.com/sarulabs/di/v2"

	"github.com/zekurio/hearth/internal/services/autovoice"
	"github.com/zekurio/hearth/internal/util/static"
)

type ListenerAutovoice struct {
	av autovoice.AutovoiceProvider

	mtx sync.Mutex
	// voiceStateCache is keyed by guildID + userID and only consulted
	// when the gateway event carries no previous state
	voiceStateCache map[string]*discordgo.VoiceState
}

func NewListenerAutovoice(ctn di.Container) *ListenerAutovoice {
	return &ListenerAutovoice{
		av:              ctn.Get(static.DiAutovoice).(autovoice.AutovoiceProvider),
		voiceStateCache: map[string]*discordgo.VoiceState{},
	}
}

func (l *ListenerAutovoice) VoiceStateUpdate(s *discordgo.Session, e *discordgo.VoiceStateUpdate) {
	if e.VoiceState == nil {
		return
	}

	before := l.swapState(e.VoiceState)
	if e.BeforeUpdate != nil {
		before = e.BeforeUpdate
	}

	err := l.av.HandleVoiceStateUpdate(context.Background(), before, e.VoiceState)
	if err != nil {
		log.Error("Failed handling voice state update",
			"guild", e.GuildID, "user", e.UserID, "channel", e.ChannelID, "err", err)
	}
}

func (l *ListenerAutovoice) ChannelDelete(s *discordgo.Session, e *discordgo.ChannelDelete) {
	if e.Channel == nil || e.GuildID == "" {
		return
	}

	if err := l.av.HandleChannelDelete(context.Background(), e.Channel); err != nil {
		log.Error("Failed handling channel deletion", "guild", e.GuildID, "channel", e.ID, "err", err)
	}
}

func (l *ListenerAutovoice) swapState(vs *discordgo.VoiceState) (prev *discordgo.VoiceState) {
	key := vs.GuildID + vs.UserID

	l.mtx.Lock()
	defer l.mtx.Unlock()

	prev = l.voiceStateCache[key]
	if vs.ChannelID == "" {
		delete(l.voiceStateCache, key)
	} else {
		l.voiceStateCache[key] = vs
	}

	return
}
