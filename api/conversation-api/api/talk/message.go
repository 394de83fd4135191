package talk_api

import (
	"encoding/json"

	"github.com/shiraai/pkg/state"
)

// WSMessageType names a control message from the client or an event from
// the server.
type WSMessageType string

const (
	// client -> server
	WSTypeStart       WSMessageType = "start"
	WSTypePause       WSMessageType = "pause"
	WSTypeResume      WSMessageType = "resume"
	WSTypeStop        WSMessageType = "stop"
	WSTypePreferences WSMessageType = "preferences"
	WSTypePlayback    WSMessageType = "playback"
	WSTypeVolume      WSMessageType = "volume"

	// server -> client
	WSTypeState     WSMessageType = "state"
	WSTypeStarted   WSMessageType = "started"
	WSTypeStopped   WSMessageType = "stopped"
	WSTypeChunk     WSMessageType = "chunk"
	WSTypeCompleted WSMessageType = "completed"
	WSTypeError     WSMessageType = "error"
)

// WSRequest is a text frame sent by the client. Audio travels in binary
// frames and never uses this envelope.
type WSRequest struct {
	Type WSMessageType   `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// WSEvent is a text frame sent by the server.
type WSEvent struct {
	Type      WSMessageType `json:"type"`
	Timestamp int64         `json:"timestamp"`
	Data      interface{}   `json:"data,omitempty"`
}

type WSStartData struct {
	ChunkDurationMs        int    `json:"chunkDurationMs" validate:"gte=0,lte=60000"`
	Quality                string `json:"quality" validate:"omitempty,oneof=low medium high"`
	SampleRate             int    `json:"sampleRate" validate:"gte=0,lte=192000"`
	Channels               int    `json:"channels" validate:"gte=0,lte=2"`
	EnableNoiseSuppression bool   `json:"enableNoiseSuppression"`
}

// WSStopData marks the conversation completed after the session stops
// when Complete is set.
type WSStopData struct {
	Complete bool `json:"complete"`
}

type WSPreferencesData struct {
	Patch map[string]interface{} `json:"patch" validate:"required"`
}

type WSPlaybackData struct {
	Playing bool `json:"playing"`
}

type WSVolumeData struct {
	Value *float64 `json:"value" validate:"required"`
}

type WSStartedData struct {
	SessionID       string `json:"sessionId"`
	ChunkDurationMs int64  `json:"chunkDurationMs"`
}

type WSStoppedData struct {
	SessionID       string `json:"sessionId"`
	Chunks          int    `json:"chunks"`
	TotalDurationMs int64  `json:"totalDurationMs"`
}

type WSCompletedData struct {
	ConversationID string `json:"conversationId"`
}

type WSChunkData struct {
	SessionID      string `json:"sessionId"`
	ChunkID        string `json:"chunkId"`
	SequenceNumber int    `json:"sequenceNumber"`
	DurationMs     int64  `json:"durationMs"`
}

type WSErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type WSStateData struct {
	Audio       WSAudioState      `json:"audio"`
	Preferences WSPreferenceState `json:"preferences"`
	IsLoading   bool              `json:"isLoading"`
	Error       string            `json:"error,omitempty"`
}

type WSAudioState struct {
	IsRecording       bool    `json:"isRecording"`
	IsPlaying         bool    `json:"isPlaying"`
	IsConnected       bool    `json:"isConnected"`
	ConversationID    string  `json:"conversationId"`
	Volume            float64 `json:"volume"`
	MicrophoneEnabled bool    `json:"microphoneEnabled"`
}

type WSPreferenceState struct {
	Theme                  string `json:"theme"`
	Language               string `json:"language"`
	AudioQuality           string `json:"audioQuality"`
	AutoPlay               bool   `json:"autoPlay"`
	PushNotifications      bool   `json:"pushNotifications"`
	HasCompletedOnboarding bool   `json:"hasCompletedOnboarding"`
	OnboardingVersion      string `json:"onboardingVersion"`
}

func stateData(st state.AppState) WSStateData {
	return WSStateData{
		Audio: WSAudioState{
			IsRecording:       st.Audio.IsRecording,
			IsPlaying:         st.Audio.IsPlaying,
			IsConnected:       st.Audio.IsConnected,
			ConversationID:    st.Audio.ConversationID,
			Volume:            st.Audio.Volume,
			MicrophoneEnabled: st.Audio.MicrophoneEnabled,
		},
		Preferences: WSPreferenceState{
			Theme:                  st.Preferences.Theme,
			Language:               st.Preferences.Language,
			AudioQuality:           st.Preferences.AudioQuality,
			AutoPlay:               st.Preferences.AutoPlay,
			PushNotifications:      st.Preferences.PushNotifications,
			HasCompletedOnboarding: st.Preferences.HasCompletedOnboarding,
			OnboardingVersion:      st.Preferences.OnboardingVersion,
		},
		IsLoading: st.IsLoading,
		Error:     st.Error,
	}
}
