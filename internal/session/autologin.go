package session

import (
	"context"
	"errors"
	"log/slog"

	"github.com/tartampluch/go-friendcare/internal/config"
	"github.com/tartampluch/go-friendcare/internal/identity"
	"github.com/tartampluch/go-friendcare/internal/tokenstore"
)

// outcome is what a login step hands back to the driver.
type outcome int

const (
	outcomeNext            outcome = iota // run the returned step
	outcomeSuccess                        // a session was established
	outcomeRetry                          // start the attempt over
	outcomeFail                           // give up and log out
	outcomeUnauthenticated                // no stored credential at all
)

var outcomeNames = [...]string{"next", "success", "retry", "fail", "unauthenticated"}

func (o outcome) String() string { return outcomeNames[o] }

// attempt carries what one pass through the steps has learned so far.
type attempt struct {
	kind          identity.Kind
	provider      identity.Provider
	providerToken string
	// renewed is set once provider credentials were re-obtained; a later failure is then terminal.
	renewed bool
}

type step struct {
	name string
	run  func(m *Manager, ctx context.Context, a *attempt) (outcome, step)
}

var (
	stepSelectProvider step
	stepValidate       step
	stepRenewProvider  step
	stepCheckBackend   step
	stepLoginBackend   step
	stepFetchProfile   step
	stepRefreshBackend step
)

func init() {
	stepSelectProvider = step{"select_provider", (*Manager).selectProvider}
	stepValidate = step{"validate_provider", (*Manager).validateProvider}
	stepRenewProvider = step{"renew_provider", (*Manager).renewProvider}
	stepCheckBackend = step{"check_backend_token", (*Manager).checkBackendToken}
	stepLoginBackend = step{"login_backend", (*Manager).loginBackend}
	stepFetchProfile = step{"fetch_profile", (*Manager).fetchProfile}
	stepRefreshBackend = step{"refresh_backend", (*Manager).refreshBackend}
}

// TryAutoLogin restores a session from stored credentials. Every call ends in exactly one of:
// a session established, Logout called, or (with nothing stored) onboarding/login.
// A backend token refresh restarts the attempt at most config.MaxAutoLoginRetries times.
func (m *Manager) TryAutoLogin(ctx context.Context) State {
	log := slog.With(config.LogKeyComponent, config.CompSession)
	log.Info(config.MsgAutoLoginStart)

	for retries := 0; ; retries++ {
		switch out := m.runAttempt(ctx); out {
		case outcomeSuccess:
			return m.State()

		case outcomeUnauthenticated:
			next := StateLogin
			if !m.Prefs.DidSeeOnboarding() {
				next = StateOnboarding
			}
			m.transition(next)
			return next

		case outcomeRetry:
			if retries < config.MaxAutoLoginRetries {
				log.Info(config.MsgAutoLoginRetry, config.LogKeyAttempt, retries+1)
				continue
			}
			log.Warn(config.MsgAutoLoginGiveUp, config.LogKeyAttempt, retries+1)
			m.Logout()
			return StateLogin

		default:
			log.Warn(config.MsgAutoLoginGiveUp, config.LogKeyOutcome, out.String())
			m.Logout()
			return StateLogin
		}
	}
}

// runAttempt walks the steps from provider selection until one reports a terminal outcome.
func (m *Manager) runAttempt(ctx context.Context) outcome {
	a := &attempt{}
	current := stepSelectProvider

	for {
		if ctx.Err() != nil {
			return outcomeFail
		}
		out, next := current.run(m, ctx, a)
		slog.Debug(config.MsgAutoLoginStep,
			config.LogKeyComponent, config.CompSession,
			config.LogKeyStep, current.name,
			config.LogKeyOutcome, out.String(),
			config.LogKeyProvider, a.kind.String(),
		)
		if out != outcomeNext {
			return out
		}
		current = next
	}
}

// selectProvider prefers Kakao, then Apple (identity token or its refresh token).
func (m *Manager) selectProvider(_ context.Context, a *attempt) (outcome, step) {
	if token, ok := m.Tokens.Get(tokenstore.ClassKakao, false); ok {
		a.kind, a.providerToken = identity.KindKakao, token
	} else if token, ok := m.Tokens.Get(tokenstore.ClassApple, false); ok {
		a.kind, a.providerToken = identity.KindApple, token
	} else if _, ok := m.Tokens.Get(tokenstore.ClassApple, true); ok {
		a.kind = identity.KindApple
	} else {
		return outcomeUnauthenticated, step{}
	}

	p, ok := m.Providers[a.kind]
	if !ok {
		slog.Error(config.ErrUnknownProvider,
			config.LogKeyComponent, config.CompSession,
			config.LogKeyProvider, a.kind.String(),
		)
		return outcomeFail, step{}
	}
	a.provider = p

	if a.providerToken == "" {
		return outcomeNext, stepRenewProvider
	}
	return outcomeNext, stepValidate
}

func (m *Manager) validateProvider(ctx context.Context, a *attempt) (outcome, step) {
	if err := a.provider.Validate(ctx, a.providerToken); err != nil {
		slog.Debug(config.ErrInvalidToken,
			config.LogKeyComponent, config.CompSession,
			config.LogKeyError, err,
		)
		return outcomeNext, stepRenewProvider
	}
	return outcomeNext, stepCheckBackend
}

// renewProvider refreshes the provider credential silently. Apple without a refresh token
// falls back to the interactive sheet, which needs a Presenter.
func (m *Manager) renewProvider(ctx context.Context, a *attempt) (outcome, step) {
	class := providerClass(a.kind)

	var (
		cred *identity.Credential
		err  error
	)
	if refresh, ok := m.Tokens.Get(class, true); ok {
		cred, err = a.provider.Refresh(ctx, refresh)
	} else if a.kind == identity.KindApple {
		cred, err = a.provider.SignIn(ctx, m.Presenter)
	} else {
		err = identity.ErrNoRefreshToken
	}

	if err != nil {
		slog.Warn(config.ErrInvalidToken,
			config.LogKeyComponent, config.CompSession,
			config.LogKeyProvider, a.kind.String(),
			config.LogKeyError, err,
		)
		if errors.Is(err, identity.ErrMissingAnchor) {
			m.Tokens.Clear(class)
		}
		return outcomeFail, step{}
	}

	if err := m.saveCredential(a.kind, cred); err != nil {
		return outcomeFail, step{}
	}
	a.providerToken = cred.Token
	a.renewed = true
	return outcomeNext, stepLoginBackend
}

func (m *Manager) checkBackendToken(_ context.Context, _ *attempt) (outcome, step) {
	if _, ok := m.Tokens.Get(tokenstore.ClassServer, false); ok {
		return outcomeNext, stepFetchProfile
	}
	return outcomeNext, stepLoginBackend
}

func (m *Manager) loginBackend(ctx context.Context, a *attempt) (outcome, step) {
	tokens, err := m.Backend.LoginWithProvider(ctx, a.providerToken, a.kind)
	if err != nil {
		slog.Warn(config.ErrTransport,
			config.LogKeyComponent, config.CompSession,
			config.LogKeyError, err,
		)
		return outcomeFail, step{}
	}
	if err := m.saveBackendTokens(tokens); err != nil {
		return outcomeFail, step{}
	}
	return outcomeNext, stepFetchProfile
}

func (m *Manager) fetchProfile(ctx context.Context, a *attempt) (outcome, step) {
	access, _ := m.Tokens.Get(tokenstore.ClassServer, false)

	profile, err := m.Backend.FetchProfile(ctx, access)
	if err != nil {
		slog.Warn(config.ErrProfileFetch,
			config.LogKeyComponent, config.CompSession,
			config.LogKeyError, err,
		)
		if a.renewed {
			return outcomeFail, step{}
		}
		return outcomeNext, stepRefreshBackend
	}

	refresh, _ := m.Tokens.Get(tokenstore.ClassServer, true)
	s, err := New(*profile, a.kind, access, refresh)
	if err != nil {
		return outcomeFail, step{}
	}
	m.UpdateUser(s)
	return outcomeSuccess, step{}
}

func (m *Manager) refreshBackend(ctx context.Context, _ *attempt) (outcome, step) {
	refresh, ok := m.Tokens.Get(tokenstore.ClassServer, true)
	if !ok {
		return outcomeFail, step{}
	}

	access, err := m.Backend.RefreshAccessToken(ctx, refresh)
	if err != nil {
		slog.Warn(config.ErrTransport,
			config.LogKeyComponent, config.CompSession,
			config.LogKeyError, err,
		)
		return outcomeFail, step{}
	}
	if err := m.Tokens.Save(access, tokenstore.ClassServer, false); err != nil {
		return outcomeFail, step{}
	}
	return outcomeRetry, step{}
}
