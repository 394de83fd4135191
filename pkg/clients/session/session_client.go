// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package session_client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shiraai/pkg/commons"
	"github.com/shiraai/pkg/utils"
)

const (
	liveSessionPath     = "/v1/live-session"
	liveSessionUserPath = "/v1/live-session/user"
)

type LiveSessionRequest struct {
	// only sent on the explicit user variant
	UserID      string `json:"userId,omitempty"`
	SessionType string `json:"sessionType"`
	Difficulty  string `json:"difficulty,omitempty"`
	Category    string `json:"category,omitempty"`
}

type Prompt struct {
	Id         string `json:"id"`
	Title      string `json:"title"`
	Content    string `json:"content"`
	Category   string `json:"category"`
	Difficulty string `json:"difficulty"`
}

type LiveSessionResponse struct {
	ConversationID string `json:"conversationId"`
	Prompt         Prompt `json:"prompt"`
	Message        string `json:"message"`
}

// RemoteSessionError is a non-success answer from the initiation endpoint.
// StatusCode is zero when the request never got a response.
type RemoteSessionError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"error"`
}

func (e *RemoteSessionError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("live session request failed: %s", e.Message)
	}
	return fmt.Sprintf("live session request failed with status %d: %s", e.StatusCode, e.Message)
}

type SessionClient interface {
	// StartLiveSession authenticates with the caller's bearer token.
	StartLiveSession(ctx context.Context, token string, req LiveSessionRequest) (*LiveSessionResponse, error)
	// StartLiveSessionForUser authenticates with the service api key and
	// names the user explicitly.
	StartLiveSessionForUser(ctx context.Context, req LiveSessionRequest) (*LiveSessionResponse, error)
}

type Option func(*sessionClient)

func WithTimeout(d time.Duration) Option {
	return func(c *sessionClient) { c.client.SetTimeout(d) }
}

func WithApiKey(key string) Option {
	return func(c *sessionClient) { c.apiKey = key }
}

func WithHttpClient(hc *http.Client) Option {
	return func(c *sessionClient) {
		c.client = resty.NewWithClient(hc).
			SetBaseURL(c.client.BaseURL).
			SetHeader(utils.HEADER_CONTENT_TYPE, "application/json")
	}
}

type sessionClient struct {
	logger commons.Logger
	client *resty.Client
	apiKey string
}

func NewSessionClient(baseURL string, logger commons.Logger, opts ...Option) SessionClient {
	c := &sessionClient{
		logger: logger,
		client: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(30*time.Second).
			SetHeader(utils.HEADER_CONTENT_TYPE, "application/json"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *sessionClient) StartLiveSession(ctx context.Context, token string, req LiveSessionRequest) (*LiveSessionResponse, error) {
	r := c.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetBody(req)
	return c.post(r, liveSessionPath)
}

func (c *sessionClient) StartLiveSessionForUser(ctx context.Context, req LiveSessionRequest) (*LiveSessionResponse, error) {
	r := c.client.R().
		SetContext(ctx).
		SetHeader(utils.HEADER_API_KEY, c.apiKey).
		SetBody(req)
	return c.post(r, liveSessionUserPath)
}

func (c *sessionClient) post(r *resty.Request, path string) (*LiveSessionResponse, error) {
	var (
		out    LiveSessionResponse
		remote RemoteSessionError
	)
	resp, err := r.SetResult(&out).SetError(&remote).Post(path)
	if err != nil {
		c.logger.Errorf("unable to reach live session endpoint %s: %v", path, err)
		return nil, &RemoteSessionError{Message: err.Error()}
	}
	if resp.IsError() || !resp.IsSuccess() {
		remote.StatusCode = resp.StatusCode()
		if remote.Message == "" {
			remote.Message = http.StatusText(resp.StatusCode())
		}
		c.logger.Warnf("live session endpoint %s returned %d: %s", path, remote.StatusCode, remote.Message)
		return nil, &remote
	}
	return &out, nil
}
