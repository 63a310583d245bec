package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/hireloop/internal/auth"
	"github.com/spigell/hireloop/internal/authbridge"
	"github.com/spigell/hireloop/internal/store"
)

type ctxKey int

const authKey ctxKey = iota

// requestAuth is the per-request view of both session sources.
type requestAuth struct {
	bridge *authbridge.Bridge
	local  *cookieSession
	remote *bearerSession
}

func authFrom(ctx context.Context) *requestAuth {
	ra, _ := ctx.Value(authKey).(*requestAuth)
	return ra
}

func identityFrom(ctx context.Context) *authbridge.Identity {
	if ra := authFrom(ctx); ra != nil {
		return ra.bridge.Current()
	}
	return nil
}

func identityOf(u *store.User) *authbridge.Identity {
	if u == nil {
		return nil
	}
	return &authbridge.Identity{
		UserID:    u.ID,
		Email:     u.Email,
		Role:      u.Role,
		Onboarded: u.Onboarded,
	}
}

// authenticate reconciles the cookie session and the bearer token on every request.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ra := &requestAuth{
			local:  &cookieSession{srv: s, w: w, r: r},
			remote: newBearerSession(s, r),
		}
		ra.bridge = authbridge.New(ra.local, ra.remote,
			authbridge.WithLogoutLog(&revokerLogouts{revoker: s.revoker, ttl: s.issuer.TTL()}),
			authbridge.WithLogger(s.logger),
		)

		if _, err := ra.bridge.Load(r.Context()); err != nil {
			s.writeError(w, r, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), authKey, ra)))
	})
}

// cookieSession is the local side: a signed token in a cookie backed by a session row.
type cookieSession struct {
	srv *Server
	w   http.ResponseWriter
	r   *http.Request

	issued  string
	cleared bool
}

func (c *cookieSession) token() string {
	switch {
	case c.issued != "":
		return c.issued
	case c.cleared:
		return ""
	}
	cookie, err := c.r.Cookie(c.srv.opts.CookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func (c *cookieSession) Current(ctx context.Context) (*authbridge.Identity, error) {
	token := c.token()
	if token == "" {
		return nil, nil
	}

	claims, err := c.srv.issuer.Parse(token)
	if err != nil {
		c.srv.logger.Debug("ignoring session cookie", zap.Error(err))
		return nil, nil
	}

	sess, err := c.srv.store.GetSessionByTokenHash(ctx, auth.HashToken(token))
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if sess.UserID != claims.Subject || sess.ExpiresAt <= time.Now().UnixMilli() {
		return nil, nil
	}

	u, err := c.srv.store.GetUser(ctx, sess.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return identityOf(u), nil
}

// Set starts a fresh session, replacing the one the request carried.
func (c *cookieSession) Set(ctx context.Context, id *authbridge.Identity) error {
	previous := c.token()

	token, expires, err := c.srv.issuer.Issue(id.UserID, id.Email, id.Role, id.Onboarded)
	if err != nil {
		return err
	}
	if _, err := c.srv.store.CreateSession(ctx, id.UserID, auth.HashToken(token), expires); err != nil {
		return err
	}
	if previous != "" {
		if err := c.srv.store.DeleteSession(ctx, auth.HashToken(previous)); err != nil {
			return err
		}
	}

	http.SetCookie(c.w, &http.Cookie{
		Name:     c.srv.opts.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   c.srv.opts.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	c.issued, c.cleared = token, false
	return nil
}

func (c *cookieSession) Clear(ctx context.Context) error {
	if token := c.token(); token != "" {
		if err := c.srv.store.DeleteSession(ctx, auth.HashToken(token)); err != nil {
			return err
		}
	}

	http.SetCookie(c.w, &http.Cookie{
		Name:     c.srv.opts.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.srv.opts.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	c.issued, c.cleared = "", true
	return nil
}

// bearerSession is the remote side: a managed-auth token in the Authorization
// header. The provider session cannot be ended from here, so Clear leaves a
// tombstone for the token instead.
type bearerSession struct {
	srv     *Server
	token   string
	cleared bool
}

func newBearerSession(s *Server, r *http.Request) *bearerSession {
	b := &bearerSession{srv: s}
	if s.remote == nil {
		return b
	}
	if scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " "); ok && strings.EqualFold(scheme, "bearer") {
		b.token = strings.TrimSpace(token)
	}
	return b
}

func tokenKey(token string) string { return "token:" + auth.HashToken(token) }

// verified returns the provider identity, nil when the token is absent, invalid or revoked.
func (b *bearerSession) verified(ctx context.Context) (*auth.RemoteIdentity, error) {
	if b.token == "" || b.cleared {
		return nil, nil
	}

	rid, err := b.srv.remote.Verify(b.token)
	if err != nil {
		b.srv.logger.Debug("ignoring bearer token", zap.Error(err))
		return nil, nil
	}

	revoked, err := b.srv.revoker.IsRevoked(ctx, tokenKey(b.token))
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, nil
	}
	return rid, nil
}

func (b *bearerSession) Current(ctx context.Context) (*authbridge.Identity, error) {
	rid, err := b.verified(ctx)
	if err != nil || rid == nil {
		return nil, err
	}

	u, err := b.srv.remoteUser(ctx, rid)
	if err != nil || u == nil {
		return nil, err
	}
	id := identityOf(u)
	id.IssuedAt = rid.IssuedAt
	return id, nil
}

// Set links the provider subject to the local account when both name the same email.
func (b *bearerSession) Set(ctx context.Context, id *authbridge.Identity) error {
	rid, err := b.verified(ctx)
	if err != nil || rid == nil {
		return err
	}

	u, err := b.srv.store.GetUser(ctx, id.UserID)
	if err != nil {
		return err
	}
	if u.RemoteSubject == rid.Subject || !strings.EqualFold(u.Email, rid.Email) {
		return nil
	}

	_, err = b.srv.store.PatchUser(ctx, u.ID, store.Patch{"remote_subject": rid.Subject})
	return err
}

func (b *bearerSession) Clear(ctx context.Context) error {
	if b.token == "" || b.cleared {
		b.cleared = true
		return nil
	}

	ttl := b.srv.issuer.TTL()
	if rid, err := b.srv.remote.Verify(b.token); err == nil {
		ttl = time.Until(rid.ExpiresAt)
	}
	if ttl > 0 {
		if err := b.srv.revoker.Revoke(ctx, tokenKey(b.token), ttl); err != nil {
			return err
		}
	}

	b.cleared = true
	return nil
}

// remoteUser maps a provider identity to a local account. Unknown subjects are
// linked by email, or provisioned as candidates. A subject that collides with an
// account linked elsewhere is ignored.
func (s *Server) remoteUser(ctx context.Context, rid *auth.RemoteIdentity) (*store.User, error) {
	u, err := s.store.GetUserByRemoteSubject(ctx, rid.Subject)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if rid.Email == "" {
		return nil, nil
	}

	u, err = s.store.GetUserByEmail(ctx, rid.Email)
	switch {
	case errors.Is(err, store.ErrNotFound):
		u, err = s.store.CreateUser(ctx, &store.User{
			Email:         rid.Email,
			Name:          rid.Name,
			Role:          store.RoleCandidate,
			RemoteSubject: rid.Subject,
		})
		if err != nil {
			return nil, err
		}
		s.logger.Info("provisioned account from managed auth", zap.String("user_id", u.ID))
		return u, nil
	case err != nil:
		return nil, err
	}

	if u.RemoteSubject != "" {
		s.logger.Warn("managed auth subject does not match linked account",
			zap.String("user_id", u.ID),
			zap.String("subject", rid.Subject),
		)
		return nil, nil
	}
	return s.store.PatchUser(ctx, u.ID, store.Patch{"remote_subject": rid.Subject})
}

// revokerLogouts keeps the bridge's logout marks as tombstones in the revoker,
// so they survive across requests and replicas. A mark only holds back provider
// tokens issued before it.
type revokerLogouts struct {
	revoker auth.Revoker
	ttl     time.Duration
}

func logoutKey(id *authbridge.Identity) string { return "user:" + id.UserID }

func (l *revokerLogouts) Record(ctx context.Context, id *authbridge.Identity) error {
	return l.revoker.Revoke(ctx, logoutKey(id), l.ttl)
}

func (l *revokerLogouts) Recorded(ctx context.Context, id *authbridge.Identity) (time.Time, bool, error) {
	return l.revoker.RevokedAt(ctx, logoutKey(id))
}

func (l *revokerLogouts) Forget(ctx context.Context, id *authbridge.Identity) error {
	return l.revoker.Clear(ctx, logoutKey(id))
}
