package model

import (
	"fmt"

	"portfolio-ai/backend/internal/marker"
)

// ProfileKind selects one of the fixed model profiles.
type ProfileKind string

const (
	ProfileChat     ProfileKind = "chat"
	ProfileReasoner ProfileKind = "reasoner"
)

// Profile describes an upstream model variant as offered to the user.
// Profiles are immutable; switching profile resets the conversation.
type Profile struct {
	Kind          ProfileKind `json:"kind"`
	Model         string      `json:"model"`
	DisplayName   string      `json:"display_name"`
	SystemMessage string      `json:"system_message"`
	// Wrapped reports that the upstream expects `messages` as an object
	// {messages, response_format} instead of a flat array.
	Wrapped bool `json:"wrapped"`
}

var profiles = []Profile{
	{
		Kind:          ProfileChat,
		Model:         "deepseek-chat",
		DisplayName:   "Chat",
		SystemMessage: "You are a helpful assistant.",
	},
	{
		Kind:        ProfileReasoner,
		Model:       "deepseek-reasoner",
		DisplayName: "Reasoning",
		SystemMessage: "You are an assistant focused on logical reasoning and problem analysis. " +
			"Start your thought process with the " + marker.ThoughtMarker + " tag and, once you are done thinking, " +
			"start your answer with the " + marker.AnswerMarker + " tag. Always think before you answer.",
		Wrapped: true,
	},
}

// DefaultModel is the upstream model used when a relay request names none.
const DefaultModel = "deepseek-chat"

// Profiles returns every known profile, chat first.
func Profiles() []Profile {
	out := make([]Profile, len(profiles))
	copy(out, profiles)
	return out
}

// LookupProfile returns the profile of the given kind.
func LookupProfile(kind ProfileKind) (Profile, error) {
	for _, p := range profiles {
		if p.Kind == kind {
			return p, nil
		}
	}
	return Profile{}, fmt.Errorf("unknown model profile %q", kind)
}

// ProfileForModel returns the profile whose upstream model id is name.
func ProfileForModel(name string) (Profile, bool) {
	for _, p := range profiles {
		if p.Model == name {
			return p, true
		}
	}
	return Profile{}, false
}

// Other returns the profile the user toggles to from p.
func (p Profile) Other() Profile {
	if p.Kind == ProfileChat {
		other, _ := LookupProfile(ProfileReasoner)
		return other
	}
	other, _ := LookupProfile(ProfileChat)
	return other
}
