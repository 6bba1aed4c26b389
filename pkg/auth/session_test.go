package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/myauth/pkg/domain"
	"github.com/tendant/myauth/pkg/token"
)

func TestLogin_Success(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerAndVerify(t, "a@x.com", "pw")

	res, err := f.sessions.Login(ctx, "  A@X.com ", "pw")
	require.NoError(t, err)

	assert.NotEmpty(t, res.Tokens.AccessToken)
	assert.NotEmpty(t, res.Tokens.RefreshToken)
	assert.Equal(t, "Bearer", res.Tokens.TokenType)
	assert.Equal(t, int(DefaultAccessTokenTTL.Seconds()), res.Tokens.ExpiresIn)
	assert.Equal(t, "a@x.com", res.User.Email)
	assert.Equal(t, "Ada", res.User.FirstName)

	active, err := f.registry.Contains(ctx, res.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.True(t, active, "refresh token must be registered on login")

	id, err := f.sessions.ValidateAccessToken(res.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, id)
}

func TestLogin_Failures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerAndVerify(t, "a@x.com", "pw")

	_, err := f.sessions.Login(ctx, "nobody@x.com", "pw")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = f.sessions.Login(ctx, "a@x.com", "wrong")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = f.sessions.Login(ctx, "a@x.com", "")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	assert.Equal(t, 0, f.registry.Len(), "failed logins must not open sessions")
}

func TestLogin_UnverifiedRegardlessOfPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.verify.Register(ctx, RegisterInput{Email: "a@x.com", Password: "pw"})
	require.NoError(t, err)

	for _, pw := range []string{"pw", "wrong", ""} {
		_, err := f.sessions.Login(ctx, "a@x.com", pw)
		assert.ErrorIs(t, err, domain.ErrNotVerified, "password %q", pw)
	}
}

func TestLogin_StoreUnavailable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerAndVerify(t, "a@x.com", "pw")

	svc := NewSessionService(SessionConfig{}, f.codec, failingRegistry{}, f.users, fastHasher())
	_, err := svc.Login(ctx, "a@x.com", "pw")
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
}

func TestRefresh_KeepsRefreshToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerAndVerify(t, "a@x.com", "pw")

	res, err := f.sessions.Login(ctx, "a@x.com", "pw")
	require.NoError(t, err)
	original := res.Tokens.RefreshToken

	seen := map[string]bool{res.Tokens.AccessToken: true}
	for i := 0; i < 3; i++ {
		f.advance(time.Minute)
		pair, err := f.sessions.Refresh(ctx, original)
		require.NoError(t, err)
		assert.Equal(t, original, pair.RefreshToken)
		assert.False(t, seen[pair.AccessToken], "access token must be fresh")
		seen[pair.AccessToken] = true

		_, err = f.sessions.ValidateAccessToken(pair.AccessToken)
		require.NoError(t, err)
	}

	require.NoError(t, f.sessions.Logout(ctx, original))
	_, err = f.sessions.Refresh(ctx, original)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestRefresh_Unauthorized(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.sessions.Refresh(ctx, "")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	// validly signed but never registered
	issued, err := f.codec.Issue("00000000-0000-0000-0000-000000000001", token.KindRefresh, time.Hour)
	require.NoError(t, err)
	_, err = f.sessions.Refresh(ctx, issued.Value)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestRefresh_InvalidToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerAndVerify(t, "a@x.com", "pw")

	res, err := f.sessions.Login(ctx, "a@x.com", "pw")
	require.NoError(t, err)

	t.Run("expired", func(t *testing.T) {
		f.advance(DefaultRefreshTokenTTL + time.Second)
		defer f.advance(-(DefaultRefreshTokenTTL + time.Second))

		_, err := f.sessions.Refresh(ctx, res.Tokens.RefreshToken)
		assert.ErrorIs(t, err, domain.ErrInvalidToken)
		assert.ErrorIs(t, err, domain.ErrTokenExpired)
	})

	t.Run("wrong kind", func(t *testing.T) {
		// an access token slipped into the registry still cannot refresh
		require.NoError(t, f.registry.Insert(ctx, res.Tokens.AccessToken))
		_, err := f.sessions.Refresh(ctx, res.Tokens.AccessToken)
		assert.ErrorIs(t, err, domain.ErrInvalidToken)
		assert.ErrorIs(t, err, domain.ErrTokenWrongKind)
	})
}

func TestRefresh_StoreUnavailable(t *testing.T) {
	f := newFixture(t)
	svc := NewSessionService(SessionConfig{}, f.codec, failingRegistry{}, f.users, fastHasher())

	_, err := svc.Refresh(context.Background(), "some-token")
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
	assert.NotErrorIs(t, err, domain.ErrUnauthorized)
}

func TestLogout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerAndVerify(t, "a@x.com", "pw")

	first, err := f.sessions.Login(ctx, "a@x.com", "pw")
	require.NoError(t, err)
	second, err := f.sessions.Login(ctx, "a@x.com", "pw")
	require.NoError(t, err)

	require.NoError(t, f.sessions.Logout(ctx, first.Tokens.RefreshToken))
	require.NoError(t, f.sessions.Logout(ctx, first.Tokens.RefreshToken), "logout is idempotent")
	require.NoError(t, f.sessions.Logout(ctx, "never-issued"))
	require.NoError(t, f.sessions.Logout(ctx, ""))

	_, err = f.sessions.Refresh(ctx, first.Tokens.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = f.sessions.Refresh(ctx, second.Tokens.RefreshToken)
	assert.NoError(t, err, "other sessions of the same user are unaffected")
}

func TestLogout_StoreUnavailable(t *testing.T) {
	f := newFixture(t)
	svc := NewSessionService(SessionConfig{}, f.codec, failingRegistry{}, f.users, fastHasher())

	err := svc.Logout(context.Background(), "some-token")
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
}

func TestLogout_RacingRefresh(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerAndVerify(t, "a@x.com", "pw")

	res, err := f.sessions.Login(ctx, "a@x.com", "pw")
	require.NoError(t, err)
	rt := res.Tokens.RefreshToken

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.sessions.Refresh(ctx, rt)
		}()
	}
	require.NoError(t, f.sessions.Logout(ctx, rt))
	wg.Wait()

	_, err = f.sessions.Refresh(ctx, rt)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestValidateAccessToken_Rejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerAndVerify(t, "a@x.com", "pw")

	res, err := f.sessions.Login(ctx, "a@x.com", "pw")
	require.NoError(t, err)

	_, err = f.sessions.ValidateAccessToken(res.Tokens.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrTokenWrongKind)

	_, err = f.sessions.ValidateAccessToken("garbage")
	assert.ErrorIs(t, err, domain.ErrInvalidToken)

	f.advance(DefaultAccessTokenTTL + time.Second)
	_, err = f.sessions.ValidateAccessToken(res.Tokens.AccessToken)
	assert.ErrorIs(t, err, domain.ErrTokenExpired)
}
