package bdsmlr

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/bdsmlr-com/bdsmlr-go/internal/singleflight"
)

const (
	// credentialStoreKey is where the credential mirror lives in the Store.
	credentialStoreKey = "auth/credential"

	// refreshThreshold: tokens expiring within this window are refreshed
	// before being handed out, so a long-running call never starts with a
	// token that dies mid-flight.
	defaultRefreshThreshold = 5 * time.Minute

	// persistSafetyBuffer: a persisted token counts as valid only if it
	// outlives this buffer.
	persistSafetyBuffer = 60 * time.Second

	// fallbackTokenLifetime applies when neither the login response nor the
	// token itself reveals an expiry.
	fallbackTokenLifetime = time.Hour
)

// Credential is the bearer token plus its expiry. Exclusively owned by the
// token manager; one in-memory instance plus a mirrored copy in the Store
// for session continuity across restarts.
type Credential struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// valid reports whether the credential outlives now plus buffer.
func (c *Credential) valid(now time.Time, buffer time.Duration) bool {
	return c != nil && c.Token != "" && c.ExpiresAt.After(now.Add(buffer))
}

// loginFunc performs the actual credential acquisition. Injected by the
// client so the manager stays transport-agnostic.
type loginFunc func(ctx context.Context) (*Credential, error)

// tokenManager owns the bearer credential lifecycle: acquisition, proactive
// refresh and concurrent-refresh de-duplication.
type tokenManager struct {
	mu    sync.Mutex
	cred  *Credential
	store Store

	login            loginFunc
	refreshThreshold time.Duration

	flight  *singleflight.Group
	metrics *MetricsCollector
	logger  Logger
	debug   *DebugConfig

	now func() time.Time
}

func newTokenManager(store Store, login loginFunc) *tokenManager {
	return &tokenManager{
		store:            store,
		login:            login,
		refreshThreshold: defaultRefreshThreshold,
		flight:           singleflight.New(),
		now:              time.Now,
	}
}

// Token returns a bearer token that will outlive the refresh threshold,
// logging in first when necessary. Concurrent callers needing a refresh
// share a single in-flight login.
func (tm *tokenManager) Token(ctx context.Context) (string, error) {
	if cred := tm.current(); cred.valid(tm.now(), tm.refreshThreshold) {
		return cred.Token, nil
	}
	cred, err := tm.refresh(ctx)
	if err != nil {
		return "", err
	}
	return cred.Token, nil
}

// current returns the in-memory credential, falling back to the persisted
// mirror when memory is empty and the mirror is still comfortably valid.
func (tm *tokenManager) current() *Credential {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if tm.cred != nil {
		return tm.cred
	}

	var persisted Credential
	if storeGetJSON(tm.store, credentialStoreKey, &persisted) &&
		persisted.valid(tm.now(), persistSafetyBuffer) {
		tm.cred = &persisted
		if tm.debug != nil && tm.debug.Enabled && tm.debug.LogAuth && tm.logger != nil {
			tm.logger.Debug("Restored persisted credential", "expiresAt", persisted.ExpiresAt)
		}
		return tm.cred
	}
	return nil
}

// refresh runs one login, deduplicated across concurrent callers.
func (tm *tokenManager) refresh(ctx context.Context) (*Credential, error) {
	v, err := tm.flight.Do("refresh", func() (interface{}, error) {
		cred, err := tm.login(ctx)
		if err != nil {
			return nil, err
		}
		if cred.ExpiresAt.IsZero() {
			cred.ExpiresAt = expiryFromToken(cred.Token, tm.now())
		}

		tm.mu.Lock()
		tm.cred = cred
		tm.mu.Unlock()
		storeSetJSON(tm.store, credentialStoreKey, cred)

		tm.metrics.RecordTokenRefresh()
		if tm.debug != nil && tm.debug.Enabled && tm.debug.LogAuth && tm.logger != nil {
			tm.logger.Info("Credential refreshed", "expiresAt", cred.ExpiresAt)
		}
		return cred, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Credential), nil
}

// Invalidate wipes the credential from memory and the Store. The next Token
// call forces a fresh login.
func (tm *tokenManager) Invalidate() {
	tm.mu.Lock()
	tm.cred = nil
	tm.mu.Unlock()
	if tm.store != nil {
		tm.store.Delete(credentialStoreKey)
	}
}

// expiryFromToken extracts the exp claim from a JWT access token without
// verifying the signature; expiry is advisory here, the server remains the
// authority. Non-JWT tokens get the fallback lifetime.
func expiryFromToken(token string, now time.Time) time.Time {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time
		}
	}
	return now.Add(fallbackTokenLifetime)
}
