package apiclient

import (
	"context"
	"fmt"
	"net/http"

	"finmgr/internal/log"
)

// State is the position of a single request in the refresh-once flow.
type State int

const (
	StatePending State = iota
	StateRefreshing
	StateRetrying
	StateDone
	StateFailed
	StateLoggedOut
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRefreshing:
		return "refreshing"
	case StateRetrying:
		return "retrying"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	case StateLoggedOut:
		return "logged_out"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// AuthenticatedClient sends requests with one session's bearer token.
type AuthenticatedClient struct {
	client   *Client
	tokens   TokenStore
	onLogout func(ctx context.Context)
	observe  func(from, to State)
}

// OnLogout registers fn to run after a failed refresh has cleared the tokens.
func (a *AuthenticatedClient) OnLogout(fn func(ctx context.Context)) *AuthenticatedClient {
	a.onLogout = fn
	return a
}

// Observe registers fn to see every state transition of Send.
func (a *AuthenticatedClient) Observe(fn func(from, to State)) *AuthenticatedClient {
	a.observe = fn
	return a
}

// Send dispatches r. Any response other than 401 is returned as is, so callers
// check Response.Err themselves. A first 401 refreshes the access token and
// replays r once; a second 401 yields ErrAuthExpired. A failed refresh clears
// the tokens and returns a *RefreshError, unless ctx ended first, in which
// case the tokens are kept and the context error is returned.
func (a *AuthenticatedClient) Send(ctx context.Context, r Request) (*Response, error) {
	var (
		state    = StatePending
		resp     *Response
		err      error
		original error
	)

	access, _, terr := a.tokens.Tokens(ctx)
	if terr != nil {
		return nil, fmt.Errorf("load tokens: %w", terr)
	}

	move := func(to State) {
		if a.observe != nil {
			a.observe(state, to)
		}
		state = to
	}

	for {
		switch state {
		case StatePending, StateRetrying:
			resp, err = a.client.do(ctx, r, access)
			switch {
			case err != nil:
				move(StateFailed)
			case resp.StatusCode != http.StatusUnauthorized:
				move(StateDone)
			case state == StatePending:
				original = resp.Err()
				move(StateRefreshing)
			default:
				err = fmt.Errorf("%w: %w", ErrAuthExpired, resp.Err())
				move(StateFailed)
			}

		case StateRefreshing:
			access, err = a.refresh(ctx)
			if err != nil && ctx.Err() != nil {
				// The caller gave up; the refresh token may still be good.
				err = fmt.Errorf("refresh access token: %w", ctx.Err())
				move(StateFailed)
				continue
			}
			if err != nil {
				a.logout(ctx, err)
				err = &RefreshError{Original: original, Cause: err}
				move(StateLoggedOut)
				continue
			}
			move(StateRetrying)

		case StateDone:
			return resp, nil

		case StateFailed, StateLoggedOut:
			return nil, err
		}
	}
}

func (a *AuthenticatedClient) refresh(ctx context.Context) (string, error) {
	_, refresh, err := a.tokens.Tokens(ctx)
	if err != nil {
		return "", fmt.Errorf("load tokens: %w", err)
	}
	if refresh == "" {
		return "", ErrNoRefreshToken
	}
	access, err := a.client.refreshAccess(ctx, refresh)
	if err != nil {
		return "", err
	}
	if err := a.tokens.SetAccessToken(ctx, access); err != nil {
		return "", fmt.Errorf("store access token: %w", err)
	}
	return access, nil
}

func (a *AuthenticatedClient) logout(ctx context.Context, cause error) {
	if err := a.tokens.ClearTokens(ctx); err != nil {
		a.client.logger.ErrorContext(ctx, "Failed to clear tokens after refresh failure",
			log.FieldOperation, log.OpLogout,
			log.FieldError, err)
	}
	a.client.logger.WarnContext(ctx, "Token refresh failed, session logged out",
		log.FieldOperation, log.OpRefresh,
		log.FieldErrorType, log.ErrorTypeAuth,
		log.FieldError, cause)
	if a.onLogout != nil {
		a.onLogout(ctx)
	}
}
