// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package state

import (
	"fmt"
	"math"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
)

type listener func(prev, next AppState)

// Store is an in-memory state container. Listeners run synchronously on the
// goroutine that performed the update, after the store lock is released, so
// they may call back into the store.
type Store struct {
	mu        sync.RWMutex
	state     AppState
	nextID    uint64
	listeners map[uint64]listener
	validate  *validator.Validate
}

func NewStore() *Store {
	return &Store{
		state:     InitialState(),
		listeners: make(map[uint64]listener),
		validate:  validator.New(),
	}
}

func (s *Store) Get() AppState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Store) Audio() AudioState        { return s.Get().Audio }
func (s *Store) Preferences() Preferences { return s.Get().Preferences }
func (s *Store) Auth() AuthState          { return s.Get().Auth }
func (s *Store) IsLoading() bool          { return s.Get().IsLoading }
func (s *Store) Error() string            { return s.Get().Error }

func (s *Store) update(fn func(st *AppState)) {
	s.mu.Lock()
	prev := s.state
	fn(&s.state)
	next := s.state
	ls := make([]listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		ls = append(ls, l)
	}
	s.mu.Unlock()

	if prev == next {
		return
	}
	for _, l := range ls {
		l(prev, next)
	}
}

func (s *Store) subscribe(l listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// SubscribeAll is notified on every state change.
func (s *Store) SubscribeAll(fn func(prev, next AppState)) (unsubscribe func()) {
	return s.subscribe(fn)
}

// Subscribe notifies fn only when the value picked by selector changes.
func Subscribe[T comparable](s *Store, selector func(AppState) T, fn func(next, prev T)) (unsubscribe func()) {
	return s.subscribe(func(prev, next AppState) {
		p, n := selector(prev), selector(next)
		if p != n {
			fn(n, p)
		}
	})
}

func (s *Store) SetAudioState(p AudioPatch) {
	s.update(func(st *AppState) {
		a := &st.Audio
		if p.IsRecording != nil {
			a.IsRecording = *p.IsRecording
		}
		if p.IsPlaying != nil {
			a.IsPlaying = *p.IsPlaying
		}
		if p.IsConnected != nil {
			a.IsConnected = *p.IsConnected
		}
		if p.ConversationID != nil {
			a.ConversationID = *p.ConversationID
		}
		if p.Volume != nil {
			a.Volume = *p.Volume
		}
		if p.MicrophoneEnabled != nil {
			a.MicrophoneEnabled = *p.MicrophoneEnabled
		}
	})
}

func (s *Store) SetPreferences(p PreferencesPatch) {
	s.update(func(st *AppState) {
		pr := &st.Preferences
		if p.Theme != nil {
			pr.Theme = *p.Theme
		}
		if p.Language != nil {
			pr.Language = *p.Language
		}
		if p.AudioQuality != nil {
			pr.AudioQuality = *p.AudioQuality
		}
		if p.AutoPlay != nil {
			pr.AutoPlay = *p.AutoPlay
		}
		if p.PushNotifications != nil {
			pr.PushNotifications = *p.PushNotifications
		}
		if p.HasCompletedOnboarding != nil {
			pr.HasCompletedOnboarding = *p.HasCompletedOnboarding
		}
		if p.OnboardingVersion != nil {
			pr.OnboardingVersion = *p.OnboardingVersion
		}
	})
}

// ApplyPreferences merges a loosely typed patch, as received from a client,
// into the current preferences. Unknown keys and invalid values are rejected
// and leave the store untouched.
func (s *Store) ApplyPreferences(patch map[string]interface{}) error {
	merged := s.Preferences()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &merged,
		TagName:     "mapstructure",
		ErrorUnused: true,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(patch); err != nil {
		return fmt.Errorf("invalid preferences: %w", err)
	}
	if err := s.validate.Struct(merged); err != nil {
		return fmt.Errorf("invalid preferences: %w", err)
	}
	s.update(func(st *AppState) { st.Preferences = merged })
	return nil
}

func (s *Store) SetLoading(loading bool) {
	s.update(func(st *AppState) { st.IsLoading = loading })
}

func (s *Store) SetError(msg string) {
	s.update(func(st *AppState) { st.Error = msg })
}

func (s *Store) ClearError() {
	s.SetError("")
}

func (s *Store) StartRecording() {
	s.update(func(st *AppState) {
		st.Audio.IsRecording = true
		st.Error = ""
	})
}

func (s *Store) StopRecording() {
	s.update(func(st *AppState) { st.Audio.IsRecording = false })
}

func (s *Store) StartPlayback() {
	s.update(func(st *AppState) {
		st.Audio.IsPlaying = true
		st.Error = ""
	})
}

func (s *Store) StopPlayback() {
	s.update(func(st *AppState) { st.Audio.IsPlaying = false })
}

func (s *Store) ToggleMicrophone() {
	s.update(func(st *AppState) { st.Audio.MicrophoneEnabled = !st.Audio.MicrophoneEnabled })
}

// SetVolume clamps volume to [0, 1].
func (s *Store) SetVolume(volume float64) {
	if math.IsNaN(volume) {
		return
	}
	s.update(func(st *AppState) { st.Audio.Volume = math.Max(0, math.Min(1, volume)) })
}

func (s *Store) Connect() {
	s.update(func(st *AppState) {
		st.Audio.IsConnected = true
		st.Error = ""
	})
}

func (s *Store) Disconnect() {
	s.update(func(st *AppState) {
		st.Audio.IsConnected = false
		st.Audio.IsRecording = false
		st.Audio.IsPlaying = false
	})
}

func (s *Store) SetConversation(conversationID string) {
	s.update(func(st *AppState) { st.Audio.ConversationID = conversationID })
}

func (s *Store) ResetAudioState() {
	s.update(func(st *AppState) { st.Audio = InitialAudioState() })
}

// ResetApp restores audio, preferences, loading and error. The auth slice is
// owned by auth events and survives.
func (s *Store) ResetApp() {
	s.update(func(st *AppState) {
		st.Audio = InitialAudioState()
		st.Preferences = InitialPreferences()
		st.IsLoading = false
		st.Error = ""
	})
}

func (s *Store) HandleAuthEvent(ev AuthEvent) {
	s.update(func(st *AppState) {
		switch ev.Type {
		case AuthSignedIn, AuthTokenRefreshed:
			st.Auth = AuthState{SignedIn: ev.UserID != "", UserID: ev.UserID, Email: ev.Email}
		case AuthSignedOut:
			st.Auth = AuthState{}
		}
		st.IsLoading = false
	})
}
