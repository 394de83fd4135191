package session_client

import (
	"context"

	"github.com/shiraai/pkg/state"
)

// StartLiveSession runs one initiation call and mirrors it into the store:
// loading while in flight, then either the conversation id or the error.
// It never retries.
func StartLiveSession(ctx context.Context, client SessionClient, store *state.Store, token string, req LiveSessionRequest) (*LiveSessionResponse, error) {
	store.ClearError()
	store.SetLoading(true)
	defer store.SetLoading(false)

	resp, err := client.StartLiveSession(ctx, token, req)
	if err != nil {
		store.SetError(err.Error())
		return nil, err
	}
	store.SetConversation(resp.ConversationID)
	return resp, nil
}
