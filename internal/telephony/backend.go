package telephony

import (
	"context"
	"errors"
	"net/url"
	"strings"
)

// Backend is the slice of apiclient.Client the telephony layer uses.
type Backend interface {
	Get(ctx context.Context, path string, query url.Values, out any) error
	Post(ctx context.Context, path string, body, out any) error
}

// API wraps the backend's /telephony endpoints.
type API struct {
	backend Backend
}

func NewAPI(b Backend) *API { return &API{backend: b} }

type tokenResponse struct {
	Token string `json:"token"`
}

// FetchToken returns a short-lived credential for the softphone SDK.
func (a *API) FetchToken(ctx context.Context) (string, error) {
	var out tokenResponse
	if err := a.backend.Get(ctx, "/telephony/token", nil, &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.Token) == "" {
		return "", errors.New("telephony: backend returned an empty token")
	}
	return out.Token, nil
}

type startCallRequest struct {
	To string `json:"to"`
}

// StartCall asks the backend to ring `to` and bridge the answered call
// into this agent's device as an inbound leg.
func (a *API) StartCall(ctx context.Context, to string) error {
	return a.backend.Post(ctx, "/telephony/start-call", startCallRequest{To: to}, nil)
}

type callStartedRequest struct {
	CallSid     string `json:"callSid"`
	PhoneNumber string `json:"phoneNumber"`
}

// CallStarted records that a call reached the connected state.
func (a *API) CallStarted(ctx context.Context, sessionID, phoneNumber string) error {
	return a.backend.Post(ctx, "/telephony/call-started", callStartedRequest{CallSid: sessionID, PhoneNumber: phoneNumber}, nil)
}
