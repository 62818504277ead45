// Package token mints and verifies the HS256 access/refresh token pair.
package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/goldstream/goldstream/internal/domain"
)

const (
	issuer         = "goldstream"
	operatorClaim  = "operator"
	accessJTIClaim = "access_jti"
)

// Issuer implements domain.TokenIssuer over a shared HMAC key.
type Issuer struct {
	key             []byte
	accessLifetime  time.Duration
	refreshLifetime time.Duration
}

// New constructs an Issuer.
func New(key []byte, accessLifetime, refreshLifetime time.Duration) *Issuer {
	return &Issuer{key: key, accessLifetime: accessLifetime, refreshLifetime: refreshLifetime}
}

// Pair mints an access token and a refresh token for the subject. The refresh
// token carries the access token's jti so revoking one revokes both.
func (i *Issuer) Pair(subjectID int64, isOperator bool) (domain.TokenPair, error) {
	now := time.Now().UTC()
	accessJTI := uuid.NewString()
	refreshJTI := uuid.NewString()

	access, err := i.sign(subjectID, isOperator, accessJTI, "", now.Add(i.accessLifetime), now)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("op=token.pair.access: %w", err)
	}
	refresh, err := i.sign(subjectID, isOperator, refreshJTI, accessJTI, now.Add(i.refreshLifetime), now)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("op=token.pair.refresh: %w", err)
	}
	return domain.TokenPair{
		Access:     access,
		Refresh:    refresh,
		AccessJTI:  accessJTI,
		RefreshJTI: refreshJTI,
	}, nil
}

func (i *Issuer) sign(subjectID int64, isOperator bool, jti, accessJTI string, exp, now time.Time) (string, error) {
	b := jwt.NewBuilder().
		Issuer(issuer).
		Subject(strconv.FormatInt(subjectID, 10)).
		JwtID(jti).
		IssuedAt(now).
		Expiration(exp).
		Claim(operatorClaim, isOperator)
	if accessJTI != "" {
		b = b.Claim(accessJTIClaim, accessJTI)
	}
	tkn, err := b.Build()
	if err != nil {
		return "", err
	}
	signed, err := jwt.Sign(tkn, jwt.WithKey(jwa.HS256, i.key))
	if err != nil {
		return "", err
	}
	return string(signed), nil
}

// Verify parses and validates a token, mapping expiry to domain.ErrTokenExpired
// and every other failure to domain.ErrUnauthorized.
func (i *Issuer) Verify(token string) (domain.TokenClaims, error) {
	tkn, err := jwt.Parse([]byte(token),
		jwt.WithKey(jwa.HS256, i.key),
		jwt.WithValidate(true),
		jwt.WithIssuer(issuer),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired()) {
			return domain.TokenClaims{}, fmt.Errorf("op=token.verify: %w", domain.ErrTokenExpired)
		}
		return domain.TokenClaims{}, fmt.Errorf("op=token.verify: %w", domain.ErrUnauthorized)
	}

	subjectID, err := strconv.ParseInt(tkn.Subject(), 10, 64)
	if err != nil {
		return domain.TokenClaims{}, fmt.Errorf("op=token.verify.subject: %w", domain.ErrUnauthorized)
	}
	claims := domain.TokenClaims{
		SubjectID: subjectID,
		JTI:       tkn.JwtID(),
		ExpiresAt: tkn.Expiration(),
	}
	if v, ok := tkn.Get(operatorClaim); ok {
		if b, ok := v.(bool); ok {
			claims.IsOperator = b
		}
	}
	if v, ok := tkn.Get(accessJTIClaim); ok {
		if s, ok := v.(string); ok {
			claims.AccessJTI = s
		}
	}
	return claims, nil
}
