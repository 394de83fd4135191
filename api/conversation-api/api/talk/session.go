package talk_api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	internal_capture "github.com/shiraai/api/conversation-api/internal/audio/capture"
	internal_recorder "github.com/shiraai/api/conversation-api/internal/audio/recorder"
	internal_uploader "github.com/shiraai/api/conversation-api/internal/audio/uploader"
	internal_type "github.com/shiraai/api/conversation-api/internal/type"
	"github.com/shiraai/pkg/commons"
	"github.com/shiraai/pkg/state"
)

const (
	writeTimeout = 5 * time.Second
	// events buffered for a slow client before the socket is dropped
	outboundBuffer = 256
)

// talkSession is one websocket connection. It owns a recorder, its capture
// device, an upload queue and an isolated state store.
type talkSession struct {
	api        *TalkApi
	conn       *websocket.Conn
	logger     commons.Logger
	store      *state.Store
	controller *internal_recorder.Controller
	device     *internal_capture.StreamDevice
	queue      *internal_uploader.Queue

	conversationID string
	userID         string
	completed      bool

	// writeLoop is the only writer on conn
	outbound  chan []byte
	done      chan struct{}
	flushed   chan struct{}
	closeOnce sync.Once
}

func newTalkSession(api *TalkApi, conn *websocket.Conn, logger commons.Logger, conversationID, userID string) *talkSession {
	return &talkSession{
		api:            api,
		conn:           conn,
		logger:         logger,
		store:          state.NewStore(),
		conversationID: conversationID,
		userID:         userID,
		outbound:       make(chan []byte, outboundBuffer),
		done:           make(chan struct{}),
		flushed:        make(chan struct{}),
	}
}

func (s *talkSession) serve(ctx context.Context) {
	go s.writeLoop()
	unsubscribe := s.store.SubscribeAll(func(prev, next state.AppState) {
		s.send(WSTypeState, stateData(next))
	})
	defer s.close(unsubscribe)

	s.store.HandleAuthEvent(state.AuthEvent{Type: state.AuthSignedIn, UserID: s.userID})
	s.store.SetConversation(s.conversationID)
	s.store.Connect()

	for {
		kind, payload, err := s.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debugf("recording socket closed: %v", err)
			}
			return
		}
		switch kind {
		case websocket.BinaryMessage:
			s.device.Write(payload)
		case websocket.TextMessage:
			s.handle(ctx, payload)
		}
	}
}

func (s *talkSession) close(unsubscribe func()) {
	if s.controller.Status() != internal_type.StatusIdle {
		if _, err := s.controller.Stop(context.Background()); err != nil {
			s.logger.Errorf("final chunk lost on disconnect: %v", err)
		}
	}
	unsubscribe()
	s.store.Disconnect()
	close(s.done)
	<-s.flushed
	s.conn.Close()
	// uploads keep draining in the background
	s.logger.Infof("recording socket closed, %d chunks waiting for upload", s.queue.Len())
}

func (s *talkSession) handle(ctx context.Context, payload []byte) {
	var req WSRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError("invalid_message", "unable to parse control message")
		return
	}

	switch req.Type {
	case WSTypeStart:
		var data WSStartData
		if !s.decode(req, &data) {
			return
		}
		s.start(ctx, data)
	case WSTypePause:
		if err := s.controller.Pause(ctx); err != nil {
			s.fail(err)
			return
		}
		if s.controller.Status() == internal_type.StatusPaused {
			s.store.StopRecording()
		}
	case WSTypeResume:
		if err := s.controller.Resume(ctx); err != nil {
			s.fail(err)
			return
		}
		if s.controller.Status() == internal_type.StatusRecording {
			s.store.StartRecording()
		}
	case WSTypeStop:
		var data WSStopData
		if !s.decode(req, &data) {
			return
		}
		s.stop(ctx)
		if data.Complete {
			s.complete(ctx)
		}
	case WSTypePreferences:
		var data WSPreferencesData
		if !s.decode(req, &data) {
			return
		}
		if err := s.store.ApplyPreferences(data.Patch); err != nil {
			s.sendError("invalid_preferences", err.Error())
		}
	case WSTypePlayback:
		var data WSPlaybackData
		if !s.decode(req, &data) {
			return
		}
		if data.Playing {
			s.store.StartPlayback()
		} else {
			s.store.StopPlayback()
		}
	case WSTypeVolume:
		var data WSVolumeData
		if !s.decode(req, &data) {
			return
		}
		s.store.SetVolume(*data.Value)
	default:
		s.sendError("invalid_message", fmt.Sprintf("unknown message type %q", req.Type))
	}
}

func (s *talkSession) decode(req WSRequest, out interface{}) bool {
	if len(req.Data) > 0 {
		if err := json.Unmarshal(req.Data, out); err != nil {
			s.sendError("invalid_message", fmt.Sprintf("invalid %s payload", req.Type))
			return false
		}
	}
	if err := s.api.validate.Struct(out); err != nil {
		s.sendError("invalid_message", err.Error())
		return false
	}
	return true
}

func (s *talkSession) start(ctx context.Context, data WSStartData) {
	if s.completed {
		s.fail(fmt.Errorf("%w: conversation is completed", internal_type.ErrPermissionDenied))
		return
	}
	rc := s.api.cfg.RecordingConfig
	opts := internal_type.RecordingOptions{
		ConversationID:         s.conversationID,
		UserID:                 s.userID,
		ChunkDuration:          time.Duration(data.ChunkDurationMs) * time.Millisecond,
		Quality:                internal_type.Quality(data.Quality),
		SampleRate:             data.SampleRate,
		Channels:               data.Channels,
		EnableNoiseSuppression: data.EnableNoiseSuppression,
	}
	if opts.ChunkDuration == 0 {
		opts.ChunkDuration = rc.ChunkDuration()
	}
	if opts.SampleRate == 0 && opts.Quality == "" {
		opts.SampleRate = rc.DefaultSampleRate
	}

	s.store.SetLoading(true)
	sessionID, err := s.controller.Start(ctx, opts)
	s.store.SetLoading(false)
	if err != nil {
		s.fail(err)
		return
	}
	s.store.StartRecording()
	session := s.controller.CurrentSession()
	s.send(WSTypeStarted, WSStartedData{
		SessionID:       sessionID,
		ChunkDurationMs: session.ChunkDuration.Milliseconds(),
	})
}

func (s *talkSession) stop(ctx context.Context) {
	session, err := s.controller.Stop(ctx)
	s.store.StopRecording()
	if err != nil {
		s.fail(err)
	}
	if session == nil {
		return
	}
	s.send(WSTypeStopped, WSStoppedData{
		SessionID:       session.ID,
		Chunks:          len(session.Chunks),
		TotalDurationMs: session.TotalDuration.Milliseconds(),
	})
}

// complete closes the conversation to recording. Chunks already queued
// still upload.
func (s *talkSession) complete(ctx context.Context) {
	if err := s.api.conversationService.CompleteConversation(ctx, s.conversationID, s.userID); err != nil {
		s.fail(err)
		return
	}
	s.completed = true
	s.api.sequences.forget(s.conversationID)
	s.send(WSTypeCompleted, WSCompletedData{ConversationID: s.conversationID})
}

// onChunk runs under the recorder lock. send only queues the event.
func (s *talkSession) onChunk(chunk internal_type.Chunk) {
	s.api.sequences.observe(chunk)
	s.send(WSTypeChunk, WSChunkData{
		SessionID:      chunk.SessionID,
		ChunkID:        chunk.ID,
		SequenceNumber: chunk.SequenceNumber,
		DurationMs:     chunk.Duration.Milliseconds(),
	})
}

// onRotationError runs under the recorder lock, like onChunk.
func (s *talkSession) onRotationError(sessionID string, err error) {
	if errors.Is(err, internal_type.ErrRecordingPaused) {
		s.logger.Warnf("recording session %s paused: %v", sessionID, err)
		s.store.StopRecording()
		s.store.SetError(err.Error())
	}
	s.sendError(errorCode(err), err.Error())
}

func (s *talkSession) fail(err error) {
	s.logger.Warnf("recording control failed: %v", err)
	s.store.SetError(err.Error())
	s.sendError(errorCode(err), err.Error())
}

func (s *talkSession) sendError(code, message string) {
	s.send(WSTypeError, WSErrorData{Code: code, Message: message})
}

func (s *talkSession) send(t WSMessageType, data interface{}) {
	b, err := json.Marshal(WSEvent{Type: t, Timestamp: time.Now().UnixMilli(), Data: data})
	if err != nil {
		s.logger.Errorf("failed to marshal %s event: %v", t, err)
		return
	}
	select {
	case s.outbound <- b:
	default:
		// client stopped reading; the read loop ends once conn is closed
		s.closeOnce.Do(func() {
			s.logger.Warnf("dropping recording socket, %s event does not fit the outbound buffer", t)
			s.conn.Close()
		})
	}
}

func (s *talkSession) writeLoop() {
	defer close(s.flushed)
	// after a failed write the rest is drained unsent
	var broken bool
	write := func(b []byte) {
		if broken {
			return
		}
		s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := s.conn.WriteMessage(websocket.TextMessage, b); err != nil {
			s.logger.Debugf("unable to send event: %v", err)
			broken = true
		}
	}
	for {
		select {
		case b := <-s.outbound:
			write(b)
		case <-s.done:
			for {
				select {
				case b := <-s.outbound:
					write(b)
				default:
					return
				}
			}
		}
	}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, internal_type.ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, internal_type.ErrCaptureFailure):
		return "capture_failure"
	case errors.Is(err, internal_type.ErrUploadFailure):
		return "upload_failure"
	case errors.Is(err, internal_type.ErrMetadataWriteFailure):
		return "metadata_write_failure"
	default:
		return "invalid_request"
	}
}
