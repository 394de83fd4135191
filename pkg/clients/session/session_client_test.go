package session_client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shiraai/pkg/commons"
	"github.com/shiraai/pkg/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okResponse() LiveSessionResponse {
	return LiveSessionResponse{
		ConversationID: "conv-1",
		Prompt:         Prompt{Id: "p1", Title: "Cafe", Content: "Order a coffee", Category: "travel", Difficulty: "beginner"},
		Message:        "Live session initiated successfully",
	}
}

func TestStartLiveSession_Success(t *testing.T) {
	var got LiveSessionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/live-session", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(okResponse())
	}))
	defer srv.Close()

	client := NewSessionClient(srv.URL, commons.NewNopLogger())
	resp, err := client.StartLiveSession(context.Background(), "tok", LiveSessionRequest{SessionType: "conversation", Category: "travel"})
	require.NoError(t, err)
	assert.Equal(t, okResponse(), *resp)
	assert.Equal(t, LiveSessionRequest{SessionType: "conversation", Category: "travel"}, got)
}

func TestStartLiveSession_RemoteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"No conversation prompts available"}`))
	}))
	defer srv.Close()

	client := NewSessionClient(srv.URL, commons.NewNopLogger())
	_, err := client.StartLiveSession(context.Background(), "tok", LiveSessionRequest{SessionType: "conversation"})
	var remote *RemoteSessionError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, http.StatusInternalServerError, remote.StatusCode)
	assert.Equal(t, "No conversation prompts available", remote.Message)
}

func TestStartLiveSession_NonJsonError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewSessionClient(srv.URL, commons.NewNopLogger())
	_, err := client.StartLiveSession(context.Background(), "tok", LiveSessionRequest{SessionType: "conversation"})
	var remote *RemoteSessionError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, http.StatusBadGateway, remote.StatusCode)
	assert.Equal(t, "Bad Gateway", remote.Message)
}

func TestStartLiveSession_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewSessionClient(url, commons.NewNopLogger(), WithTimeout(time.Second))
	_, err := client.StartLiveSession(context.Background(), "tok", LiveSessionRequest{SessionType: "conversation"})
	var remote *RemoteSessionError
	require.True(t, errors.As(err, &remote))
	assert.Zero(t, remote.StatusCode)
}

func TestStartLiveSessionForUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/live-session/user", r.URL.Path)
		assert.Equal(t, "service-key", r.Header.Get("x-api-key"))
		assert.Empty(t, r.Header.Get("Authorization"))
		var req LiveSessionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "user-9", req.UserID)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(okResponse())
	}))
	defer srv.Close()

	client := NewSessionClient(srv.URL, commons.NewNopLogger(), WithApiKey("service-key"), WithHttpClient(srv.Client()))
	resp, err := client.StartLiveSessionForUser(context.Background(), LiveSessionRequest{UserID: "user-9", SessionType: "conversation"})
	require.NoError(t, err)
	assert.Equal(t, "conv-1", resp.ConversationID)
}

type stubClient struct {
	resp *LiveSessionResponse
	err  error
	seen *state.Store
	load bool
}

func (s *stubClient) StartLiveSession(ctx context.Context, token string, req LiveSessionRequest) (*LiveSessionResponse, error) {
	if s.seen != nil {
		s.load = s.seen.IsLoading()
	}
	return s.resp, s.err
}

func (s *stubClient) StartLiveSessionForUser(ctx context.Context, req LiveSessionRequest) (*LiveSessionResponse, error) {
	return s.resp, s.err
}

func TestCoordinator_StoresConversation(t *testing.T) {
	store := state.NewStore()
	store.SetError("stale")
	resp := okResponse()
	client := &stubClient{resp: &resp, seen: store}

	out, err := StartLiveSession(context.Background(), client, store, "tok", LiveSessionRequest{SessionType: "conversation"})
	require.NoError(t, err)
	assert.Equal(t, "conv-1", out.ConversationID)
	assert.True(t, client.load, "loading while the call is in flight")
	assert.False(t, store.IsLoading())
	assert.Empty(t, store.Error())
	assert.Equal(t, "conv-1", store.Audio().ConversationID)
}

func TestCoordinator_RecordsError(t *testing.T) {
	store := state.NewStore()
	remote := &RemoteSessionError{StatusCode: 401, Message: "Invalid or expired token"}
	client := &stubClient{err: remote}

	_, err := StartLiveSession(context.Background(), client, store, "tok", LiveSessionRequest{SessionType: "conversation"})
	assert.ErrorIs(t, err, remote)
	assert.False(t, store.IsLoading())
	assert.Equal(t, remote.Error(), store.Error())
	assert.Empty(t, store.Audio().ConversationID)
}
