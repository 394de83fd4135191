// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package state

type AudioState struct {
	IsRecording       bool
	IsPlaying         bool
	IsConnected       bool
	ConversationID    string
	Volume            float64
	MicrophoneEnabled bool
}

type Preferences struct {
	Theme                  string `mapstructure:"theme" validate:"oneof=light dark system"`
	Language               string `mapstructure:"language" validate:"required"`
	AudioQuality           string `mapstructure:"audioQuality" validate:"oneof=low medium high"`
	AutoPlay               bool   `mapstructure:"autoPlay"`
	PushNotifications      bool   `mapstructure:"pushNotifications"`
	HasCompletedOnboarding bool   `mapstructure:"hasCompletedOnboarding"`
	OnboardingVersion      string `mapstructure:"onboardingVersion"`
}

type AuthState struct {
	SignedIn bool
	UserID   string
	Email    string
}

// AppState is the full snapshot held by a Store. Every field is comparable so
// selectors can detect changes with ==.
type AppState struct {
	Audio       AudioState
	Preferences Preferences
	Auth        AuthState
	IsLoading   bool
	// empty means no error
	Error string
}

func InitialAudioState() AudioState {
	return AudioState{
		Volume:            0.8,
		MicrophoneEnabled: true,
	}
}

func InitialPreferences() Preferences {
	return Preferences{
		Theme:             "system",
		Language:          "en",
		AudioQuality:      "high",
		AutoPlay:          true,
		PushNotifications: true,
		OnboardingVersion: "1.0.0",
	}
}

func InitialState() AppState {
	return AppState{
		Audio:       InitialAudioState(),
		Preferences: InitialPreferences(),
	}
}

// AudioPatch carries a partial update; nil fields are left untouched.
type AudioPatch struct {
	IsRecording       *bool
	IsPlaying         *bool
	IsConnected       *bool
	ConversationID    *string
	Volume            *float64
	MicrophoneEnabled *bool
}

type PreferencesPatch struct {
	Theme                  *string
	Language               *string
	AudioQuality           *string
	AutoPlay               *bool
	PushNotifications      *bool
	HasCompletedOnboarding *bool
	OnboardingVersion      *string
}

type AuthEventType string

const (
	AuthSignedIn       AuthEventType = "SIGNED_IN"
	AuthSignedOut      AuthEventType = "SIGNED_OUT"
	AuthTokenRefreshed AuthEventType = "TOKEN_REFRESHED"
)

type AuthEvent struct {
	Type   AuthEventType
	UserID string
	Email  string
}
