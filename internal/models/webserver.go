package models

var (
	Ok = &Status{200}
)

type Error struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Context string `json:"context,omitempty"`
}

type Status struct {
	Code int `json:"code"`
}

// VoiceGroupResponse is a group together with its currently
// active channels.
type VoiceGroupResponse struct {
	DynamicVoiceGroup
	Channels []DynamicVoiceChannel `json:"channels"`
}

type ListResponse[T any] struct {
	N    int `json:"n"`
	Data []T `json:"data"`
}
