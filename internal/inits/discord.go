package inits

import (
	"github.com/bwmarrin/discordgo"
	"github.com/sarulabs/di/v2"

	"github.com/zekurio/hearth/internal/listeners"
	"github.com/zekurio/hearth/internal/models"
	"github.com/zekurio/hearth/internal/util/static"
)

// InitDiscord creates the session without any listeners,
// those are added by AddListeners once every service
// they depend on can be built.
func InitDiscord(ctn di.Container) (*discordgo.Session, error) {
	cfg := ctn.Get(static.DiConfig).(models.Config)

	s, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		return nil, err
	}

	s.Identify.Intents = discordgo.MakeIntent(static.Intents)

	s.StateEnabled = true
	s.State.TrackChannels = true
	s.State.TrackMembers = true
	s.State.TrackVoice = true
	s.State.TrackRoles = true

	return s, nil
}

func AddListeners(ctn di.Container) {
	s := ctn.Get(static.DiDiscord).(*discordgo.Session)

	s.AddHandler(listeners.NewListenerReady(ctn).Handler)

	s.AddHandler(listeners.NewGuildCreate(ctn).Handler)

	s.AddHandler(listeners.NewGuildRemove(ctn).FlushGuildData)

	av := listeners.NewListenerAutovoice(ctn)
	s.AddHandler(av.VoiceStateUpdate)
	s.AddHandler(av.ChannelDelete)
}
