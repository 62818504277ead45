package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goldstream/goldstream/internal/domain"
	"github.com/goldstream/goldstream/internal/usecase"
)

func newAuthService(users *memUsers, currencies *memCurrencies, cache *memCache,
	blacklist *memBlacklist, tokens *stubTokens, mailer *stubMailer) usecase.AuthService {
	return usecase.NewAuthService(users, &stubOperators{}, blacklist, currencies, cache, mailer,
		tokens, stubHasher{}, usecase.AuthConfig{
			RegistrationAttempts: 3,
			RegistrationWindow:   24 * time.Hour,
			ResetLifetime:        24 * time.Hour,
			TrialDays:            14,
		})
}

func eurCurrency() domain.Currency {
	return domain.Currency{ID: 1, Code: "EUR", Course: 100, IsActive: true, DreamLimit: 1_000_000}
}

func TestAuth_Register_Throttled(t *testing.T) {
	t.Parallel()
	cache := newMemCache()
	cache.attempts["maria@example.com"] = 3
	svc := newAuthService(newMemUsers(), newMemCurrencies(eurCurrency()), cache, newMemBlacklist(), newStubTokens(), &stubMailer{})

	_, err := svc.Register(context.Background(), usecase.RegisterInput{
		Email: "maria@example.com", Password: "secretpass", CurrencyCode: "EUR", Language: "en",
	})

	require.ErrorIs(t, err, domain.ErrRateLimited)
}

func TestAuth_Register_DuplicateEmail(t *testing.T) {
	t.Parallel()
	users := newMemUsers()
	users.add(domain.User{Email: "maria@example.com"})
	svc := newAuthService(users, newMemCurrencies(eurCurrency()), newMemCache(), newMemBlacklist(), newStubTokens(), &stubMailer{})

	_, err := svc.Register(context.Background(), usecase.RegisterInput{
		Email: "maria@example.com", Password: "secretpass", CurrencyCode: "EUR", Language: "en",
	})

	require.ErrorIs(t, err, domain.ErrConflict)
}

func TestAuth_Register_UnknownCurrency(t *testing.T) {
	t.Parallel()
	svc := newAuthService(newMemUsers(), newMemCurrencies(eurCurrency()), newMemCache(), newMemBlacklist(), newStubTokens(), &stubMailer{})

	_, err := svc.Register(context.Background(), usecase.RegisterInput{
		Email: "maria@example.com", Password: "secretpass", CurrencyCode: "XXX", Language: "en",
	})

	require.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestAuth_RegisterAndConfirm(t *testing.T) {
	t.Parallel()
	users := newMemUsers()
	users.add(domain.User{Email: "referer@example.com", ReferCode: "REFREFREF234", IsActive: true})
	cache := newMemCache()
	mailer := &stubMailer{}
	svc := newAuthService(users, newMemCurrencies(eurCurrency()), cache, newMemBlacklist(), newStubTokens(), mailer)

	token, err := svc.Register(context.Background(), usecase.RegisterInput{
		Email: "maria@example.com", Password: "secretpass", Name: "Maria",
		ReferCode: "REFREFREF234", CurrencyCode: "EUR", Language: "en",
	})
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.Equal(t, 1, cache.attempts["maria@example.com"])
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, domain.MailConfirmEmail, mailer.sent[0].Template)
	assert.Equal(t, token, mailer.sent[0].Params["token"])

	user, pair, err := svc.Confirm(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "maria@example.com", user.Email)
	assert.Equal(t, "h:secretpass", user.Password)
	assert.Len(t, user.ReferCode, 12)
	require.NotNil(t, user.TrialTill)
	assert.True(t, user.TrialTill.After(time.Now()))
	require.NotNil(t, user.Referer)
	assert.Equal(t, "REFREFREF234", *user.Referer)
	assert.NotEmpty(t, pair.Access)
	assert.NotEmpty(t, pair.Refresh)
	assert.Empty(t, cache.pending, "pending registration consumed")

	_, _, err = svc.Confirm(context.Background(), token)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAuth_Login(t *testing.T) {
	t.Parallel()
	users := newMemUsers()
	users.add(domain.User{Email: "maria@example.com", Password: "h:secretpass", IsActive: true})
	users.add(domain.User{Email: "blocked@example.com", Password: "h:secretpass", IsActive: false})
	svc := newAuthService(users, newMemCurrencies(eurCurrency()), newMemCache(), newMemBlacklist(), newStubTokens(), &stubMailer{})

	user, pair, err := svc.Login(context.Background(), "maria@example.com", "secretpass")
	require.NoError(t, err)
	assert.Equal(t, "maria@example.com", user.Email)
	assert.NotEmpty(t, pair.Access)

	_, _, err = svc.Login(context.Background(), "maria@example.com", "wrong")
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	_, _, err = svc.Login(context.Background(), "nobody@example.com", "secretpass")
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	_, _, err = svc.Login(context.Background(), "blocked@example.com", "secretpass")
	require.ErrorIs(t, err, domain.ErrForbidden)
}

func TestAuth_Refresh_RotatesAndRevokes(t *testing.T) {
	t.Parallel()
	tokens := newStubTokens()
	blacklist := newMemBlacklist()
	svc := newAuthService(newMemUsers(), newMemCurrencies(eurCurrency()), newMemCache(), blacklist, tokens, &stubMailer{})

	pair, err := tokens.Pair(7, false)
	require.NoError(t, err)

	next, err := svc.Refresh(context.Background(), pair.Refresh)
	require.NoError(t, err)
	assert.NotEqual(t, pair.Access, next.Access)
	assert.True(t, blacklist.revoked[pair.RefreshJTI], "old refresh jti revoked")
	assert.True(t, blacklist.revoked[pair.AccessJTI], "linked access jti revoked")

	// The rotated-out token is rejected on replay.
	_, err = svc.Refresh(context.Background(), pair.Refresh)
	require.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestAuth_Refresh_RejectsAccessToken(t *testing.T) {
	t.Parallel()
	tokens := newStubTokens()
	svc := newAuthService(newMemUsers(), newMemCurrencies(eurCurrency()), newMemCache(), newMemBlacklist(), tokens, &stubMailer{})

	pair, err := tokens.Pair(7, false)
	require.NoError(t, err)

	_, err = svc.Refresh(context.Background(), pair.Access)
	require.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestAuth_Logout(t *testing.T) {
	t.Parallel()
	tokens := newStubTokens()
	blacklist := newMemBlacklist()
	svc := newAuthService(newMemUsers(), newMemCurrencies(eurCurrency()), newMemCache(), blacklist, tokens, &stubMailer{})

	pair, err := tokens.Pair(7, false)
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background(), pair.AccessJTI, pair.Refresh))
	assert.True(t, blacklist.revoked[pair.AccessJTI])
	assert.True(t, blacklist.revoked[pair.RefreshJTI])

	revoked, err := svc.IsRevoked(context.Background(), pair.AccessJTI)
	require.NoError(t, err)
	assert.True(t, revoked)

	// An unparseable refresh token is ignored, the access side still revokes.
	require.NoError(t, svc.Logout(context.Background(), "other-jti", "garbage"))
	assert.True(t, blacklist.revoked["other-jti"])
}

func TestAuth_PasswordReset(t *testing.T) {
	t.Parallel()
	users := newMemUsers()
	u := users.add(domain.User{Email: "maria@example.com", Password: "h:oldpass", IsActive: true})
	mailer := &stubMailer{}
	svc := newAuthService(users, newMemCurrencies(eurCurrency()), newMemCache(), newMemBlacklist(), newStubTokens(), mailer)

	require.NoError(t, svc.RequestPasswordReset(context.Background(), "maria@example.com"))
	require.Len(t, mailer.sent, 1)
	stored, err := users.Get(context.Background(), u.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ResetToken)

	resetUser, pair, err := svc.ResetPassword(context.Background(), *stored.ResetToken, "newpassword")
	require.NoError(t, err)
	assert.Equal(t, u.ID, resetUser.ID)
	assert.NotEmpty(t, pair.Access, "reset signs the member in")
	assert.NotEmpty(t, pair.Refresh)
	stored, err = users.Get(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, "h:newpassword", stored.Password)
	assert.Nil(t, stored.ResetToken, "reset token burned")

	_, _, err = svc.ResetPassword(context.Background(), "stale-token", "x")
	require.ErrorIs(t, err, domain.ErrNotFound)

	// Unknown email does not leak through the response.
	require.NoError(t, svc.RequestPasswordReset(context.Background(), "nobody@example.com"))
}

func TestAuth_ChangePassword(t *testing.T) {
	t.Parallel()
	users := newMemUsers()
	u := users.add(domain.User{Email: "maria@example.com", Password: "h:oldpass", IsActive: true})
	svc := newAuthService(users, newMemCurrencies(eurCurrency()), newMemCache(), newMemBlacklist(), newStubTokens(), &stubMailer{})

	require.ErrorIs(t, svc.ChangePassword(context.Background(), u.ID, "wrong", "newpassword"), domain.ErrUnauthorized)

	require.NoError(t, svc.ChangePassword(context.Background(), u.ID, "oldpass", "newpassword"))
	stored, err := users.Get(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, "h:newpassword", stored.Password)
}

func TestAuth_OperatorLogin(t *testing.T) {
	t.Parallel()
	operators := &stubOperators{byEmail: map[string]domain.Operator{
		"admin@example.com": {ID: 1, Email: "admin@example.com", Password: "h:adminpass"},
	}}
	tokens := newStubTokens()
	svc := usecase.NewAuthService(newMemUsers(), operators, newMemBlacklist(), newMemCurrencies(eurCurrency()),
		newMemCache(), &stubMailer{}, tokens, stubHasher{}, usecase.AuthConfig{})

	op, pair, err := svc.OperatorLogin(context.Background(), "admin@example.com", "adminpass")
	require.NoError(t, err)
	assert.Equal(t, int64(1), op.ID)
	claims, err := tokens.Verify(pair.Access)
	require.NoError(t, err)
	assert.True(t, claims.IsOperator)

	_, _, err = svc.OperatorLogin(context.Background(), "admin@example.com", "wrong")
	require.ErrorIs(t, err, domain.ErrUnauthorized)
}
