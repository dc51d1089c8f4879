package discordutils

import (
	"errors"
	"net/http"

	"github.com/bwmarrin/discordgo"
)

// ErrNotFound is returned by Client implementations when an
// object could not be resolved.
var ErrNotFound = errors.New("discord object not found")

// IsNotFound returns true if err reports that the requested
// channel, member, role or message does not exist (anymore).
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrNotFound) {
		return true
	}

	var rerr *discordgo.RESTError
	if !errors.As(err, &rerr) {
		return false
	}

	if rerr.Message != nil {
		switch rerr.Message.Code {
		case discordgo.ErrCodeUnknownChannel,
			discordgo.ErrCodeUnknownGuild,
			discordgo.ErrCodeUnknownMember,
			discordgo.ErrCodeUnknownMessage,
			discordgo.ErrCodeUnknownRole:
			return true
		}
	}

	return rerr.Response != nil && rerr.Response.StatusCode == http.StatusNotFound
}

// IsForbidden returns true if err reports missing access
// or missing permissions of the bot.
func IsForbidden(err error) bool {
	if err == nil {
		return false
	}

	var rerr *discordgo.RESTError
	if !errors.As(err, &rerr) {
		return false
	}

	if rerr.Message != nil {
		switch rerr.Message.Code {
		case discordgo.ErrCodeMissingAccess, discordgo.ErrCodeMissingPermissions:
			return true
		}
	}

	return rerr.Response != nil && rerr.Response.StatusCode == http.StatusForbidden
}
