package usecase

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/goldstream/goldstream/internal/adapter/observability"
	"github.com/goldstream/goldstream/internal/domain"
)

const referCodeLen = 12

// AuthConfig carries the tunables of the registration and session flows.
type AuthConfig struct {
	RegistrationAttempts int
	RegistrationWindow   time.Duration
	ResetLifetime        time.Duration
	TrialDays            int
}

// AuthService runs registration, login and token lifecycle for members and
// back-office operators.
type AuthService struct {
	Users      domain.UserRepository
	Operators  domain.OperatorRepository
	Blacklist  domain.BlacklistRepository
	Currencies domain.CurrencyRepository
	Cache      domain.Cache
	Mailer     domain.Mailer
	Tokens     domain.TokenIssuer
	Hasher     domain.Hasher
	Cfg        AuthConfig
}

// NewAuthService constructs an AuthService.
func NewAuthService(users domain.UserRepository, operators domain.OperatorRepository, blacklist domain.BlacklistRepository,
	currencies domain.CurrencyRepository, cache domain.Cache, mailer domain.Mailer,
	tokens domain.TokenIssuer, hasher domain.Hasher, cfg AuthConfig) AuthService {
	return AuthService{
		Users: users, Operators: operators, Blacklist: blacklist, Currencies: currencies,
		Cache: cache, Mailer: mailer, Tokens: tokens, Hasher: hasher, Cfg: cfg,
	}
}

// RegisterInput is a registration request held in the cache until the email
// is confirmed.
type RegisterInput struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	Name         string `json:"name"`
	Surname      string `json:"surname"`
	ReferCode    string `json:"refer_code,omitempty"`
	CurrencyCode string `json:"currency_code"`
	Language     string `json:"language"`
	CountryID    *int64 `json:"country_id,omitempty"`
}

// Register validates and parks a registration in the cache keyed by a fresh
// confirm token, then mails the token. No user row exists until Confirm.
func (s AuthService) Register(ctx domain.Context, in RegisterInput) (string, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	attempts, err := s.Cache.CountAttempts(ctx, in.Email)
	if err != nil {
		return "", err
	}
	if attempts >= s.Cfg.RegistrationAttempts {
		observability.RegistrationsTotal.WithLabelValues("throttled").Inc()
		return "", fmt.Errorf("%w: too many registration attempts", domain.ErrRateLimited)
	}
	exists, err := s.Users.EmailExists(ctx, in.Email)
	if err != nil {
		return "", err
	}
	if exists {
		observability.RegistrationsTotal.WithLabelValues("duplicate").Inc()
		return "", fmt.Errorf("%w: email already registered", domain.ErrConflict)
	}
	if _, err := s.Currencies.GetByCode(ctx, in.CurrencyCode); err != nil {
		return "", fmt.Errorf("%w: unknown currency %q", domain.ErrInvalidArgument, in.CurrencyCode)
	}
	if in.ReferCode != "" {
		if _, err := s.Users.GetByReferCode(ctx, in.ReferCode); err != nil {
			return "", fmt.Errorf("%w: unknown refer code", domain.ErrInvalidArgument)
		}
	}

	token := uuid.NewString()
	payload, err := json.Marshal(in)
	if err != nil {
		return "", fmt.Errorf("op=auth.register.marshal: %w", err)
	}
	if err := s.Cache.StorePending(ctx, token, payload, s.Cfg.RegistrationWindow); err != nil {
		return "", err
	}
	if err := s.Cache.AddAttempt(ctx, in.Email, token, s.Cfg.RegistrationWindow); err != nil {
		return "", err
	}
	if err := s.Mailer.Send(ctx, in.Email, domain.MailConfirmEmail, in.Language, map[string]string{"token": token}); err != nil {
		return "", err
	}
	observability.RegistrationsTotal.WithLabelValues("pending").Inc()
	return token, nil
}

// Confirm consumes a confirm token, creates the user row and returns a fresh
// session. A new member gets a trial subscription window.
func (s AuthService) Confirm(ctx domain.Context, token string) (domain.User, domain.TokenPair, error) {
	payload, err := s.Cache.LoadPending(ctx, token)
	if err != nil {
		return domain.User{}, domain.TokenPair{}, fmt.Errorf("%w: confirm token", domain.ErrNotFound)
	}
	var in RegisterInput
	if err := json.Unmarshal(payload, &in); err != nil {
		return domain.User{}, domain.TokenPair{}, fmt.Errorf("op=auth.confirm.unmarshal: %w", err)
	}
	exists, err := s.Users.EmailExists(ctx, in.Email)
	if err != nil {
		return domain.User{}, domain.TokenPair{}, err
	}
	if exists {
		return domain.User{}, domain.TokenPair{}, fmt.Errorf("%w: email already registered", domain.ErrConflict)
	}

	currency, err := s.Currencies.GetByCode(ctx, in.CurrencyCode)
	if err != nil {
		return domain.User{}, domain.TokenPair{}, err
	}
	hash, err := s.Hasher.Hash(in.Password)
	if err != nil {
		return domain.User{}, domain.TokenPair{}, err
	}
	referCode, err := newReferCode()
	if err != nil {
		return domain.User{}, domain.TokenPair{}, err
	}

	now := time.Now().UTC()
	trialTill := now.AddDate(0, 0, s.Cfg.TrialDays)
	u := domain.User{
		Name:       in.Name,
		Surname:    in.Surname,
		Email:      in.Email,
		Password:   hash,
		IsActive:   true,
		Language:   in.Language,
		ReferCode:  referCode,
		TrialTill:  &trialTill,
		CurrencyID: currency.ID,
		CountryID:  in.CountryID,
	}
	id, err := s.Users.Create(ctx, u)
	if err != nil {
		return domain.User{}, domain.TokenPair{}, err
	}
	if in.ReferCode != "" {
		if err := s.Users.SetReferer(ctx, id, in.ReferCode); err != nil {
			return domain.User{}, domain.TokenPair{}, err
		}
	}
	_ = s.Cache.DeletePending(ctx, token)

	user, err := s.Users.Get(ctx, id)
	if err != nil {
		return domain.User{}, domain.TokenPair{}, err
	}
	pair, err := s.Tokens.Pair(id, false)
	if err != nil {
		return domain.User{}, domain.TokenPair{}, err
	}
	observability.RegistrationsTotal.WithLabelValues("confirmed").Inc()
	return user, pair, nil
}

// Login checks member credentials and mints a token pair.
func (s AuthService) Login(ctx domain.Context, email, password string) (domain.User, domain.TokenPair, error) {
	user, err := s.Users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return domain.User{}, domain.TokenPair{}, fmt.Errorf("%w: bad credentials", domain.ErrUnauthorized)
	}
	if err := s.Hasher.Compare(user.Password, password); err != nil {
		return domain.User{}, domain.TokenPair{}, fmt.Errorf("%w: bad credentials", domain.ErrUnauthorized)
	}
	if !user.IsActive {
		return domain.User{}, domain.TokenPair{}, fmt.Errorf("%w: account blocked", domain.ErrForbidden)
	}
	pair, err := s.Tokens.Pair(user.ID, false)
	if err != nil {
		return domain.User{}, domain.TokenPair{}, err
	}
	return user, pair, nil
}

// Refresh exchanges a valid refresh token for a new pair and revokes the old
// pair. A blacklisted or non-refresh token is rejected.
func (s AuthService) Refresh(ctx domain.Context, refreshToken string) (domain.TokenPair, error) {
	claims, err := s.Tokens.Verify(refreshToken)
	if err != nil {
		return domain.TokenPair{}, err
	}
	if !claims.IsRefresh() {
		return domain.TokenPair{}, fmt.Errorf("%w: not a refresh token", domain.ErrUnauthorized)
	}
	revoked, err := s.Blacklist.Contains(ctx, claims.JTI)
	if err != nil {
		return domain.TokenPair{}, err
	}
	if revoked {
		return domain.TokenPair{}, fmt.Errorf("%w: token revoked", domain.ErrUnauthorized)
	}
	if err := s.Blacklist.Add(ctx, claims.JTI); err != nil {
		return domain.TokenPair{}, err
	}
	if err := s.Blacklist.Add(ctx, claims.AccessJTI); err != nil {
		return domain.TokenPair{}, err
	}
	return s.Tokens.Pair(claims.SubjectID, claims.IsOperator)
}

// Logout revokes both tokens of the current session.
func (s AuthService) Logout(ctx domain.Context, accessJTI, refreshToken string) error {
	if err := s.Blacklist.Add(ctx, accessJTI); err != nil {
		return err
	}
	if refreshToken == "" {
		return nil
	}
	claims, err := s.Tokens.Verify(refreshToken)
	if err != nil {
		// An already-expired refresh token needs no revocation.
		return nil
	}
	return s.Blacklist.Add(ctx, claims.JTI)
}

// IsRevoked reports whether a token id is blacklisted.
func (s AuthService) IsRevoked(ctx domain.Context, jti string) (bool, error) {
	return s.Blacklist.Contains(ctx, jti)
}

// RequestPasswordReset parks a reset token on the user row and mails it. An
// unknown email is reported as success so the endpoint does not leak accounts.
func (s AuthService) RequestPasswordReset(ctx domain.Context, email string) error {
	user, err := s.Users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil
	}
	token := uuid.NewString()
	validTill := time.Now().UTC().Add(s.Cfg.ResetLifetime)
	if err := s.Users.UpdateResetToken(ctx, user.ID, &token, &validTill); err != nil {
		return err
	}
	return s.Mailer.Send(ctx, user.Email, domain.MailConfirmEmail, user.Language, map[string]string{"reset_token": token})
}

// ResetPassword swaps the password for a valid reset token, burns the token
// and signs the member in with a fresh pair.
func (s AuthService) ResetPassword(ctx domain.Context, token, newPassword string) (domain.User, domain.TokenPair, error) {
	user, err := s.Users.GetByResetToken(ctx, token)
	if err != nil {
		return domain.User{}, domain.TokenPair{}, fmt.Errorf("%w: reset token", domain.ErrNotFound)
	}
	hash, err := s.Hasher.Hash(newPassword)
	if err != nil {
		return domain.User{}, domain.TokenPair{}, err
	}
	if err := s.Users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return domain.User{}, domain.TokenPair{}, err
	}
	if err := s.Users.UpdateResetToken(ctx, user.ID, nil, nil); err != nil {
		return domain.User{}, domain.TokenPair{}, err
	}
	if err := s.Mailer.Send(ctx, user.Email, domain.MailPasswordChanged, user.Language, nil); err != nil {
		return domain.User{}, domain.TokenPair{}, err
	}
	pair, err := s.Tokens.Pair(user.ID, false)
	if err != nil {
		return domain.User{}, domain.TokenPair{}, err
	}
	return user, pair, nil
}

// ChangePassword swaps the password after checking the current one.
func (s AuthService) ChangePassword(ctx domain.Context, userID int64, current, next string) error {
	user, err := s.Users.Get(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.Hasher.Compare(user.Password, current); err != nil {
		return fmt.Errorf("%w: bad current password", domain.ErrUnauthorized)
	}
	hash, err := s.Hasher.Hash(next)
	if err != nil {
		return err
	}
	if err := s.Users.UpdatePassword(ctx, userID, hash); err != nil {
		return err
	}
	return s.Mailer.Send(ctx, user.Email, domain.MailPasswordChanged, user.Language, nil)
}

// OperatorLogin checks back-office credentials and mints an operator pair.
func (s AuthService) OperatorLogin(ctx domain.Context, email, password string) (domain.Operator, domain.TokenPair, error) {
	op, err := s.Operators.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return domain.Operator{}, domain.TokenPair{}, fmt.Errorf("%w: bad credentials", domain.ErrUnauthorized)
	}
	if err := s.Hasher.Compare(op.Password, password); err != nil {
		return domain.Operator{}, domain.TokenPair{}, fmt.Errorf("%w: bad credentials", domain.ErrUnauthorized)
	}
	pair, err := s.Tokens.Pair(op.ID, true)
	if err != nil {
		return domain.Operator{}, domain.TokenPair{}, err
	}
	return op, pair, nil
}

const referCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func newReferCode() (string, error) {
	out := make([]byte, referCodeLen)
	max := big.NewInt(int64(len(referCodeAlphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("op=auth.refer_code: %w", err)
		}
		out[i] = referCodeAlphabet[n.Int64()]
	}
	return string(out), nil
}
