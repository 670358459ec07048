// Package auth validates bearer tokens issued by the cooperative's identity
// provider and projects their claims into the request context. Credential
// management lives upstream; this service only verifies and reads tokens.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/coopcarga/backend-carga/internal/common"
)

const (
	claimName         = "name"
	claimOfficeID     = "office_id"
	claimCapabilities = "capabilities"
)

// Service verifies HMAC-signed access tokens.
type Service struct {
	secret    []byte
	algorithm jwa.SignatureAlgorithm
	now       func() time.Time
}

// NewService builds a token verifier around the shared secret.
func NewService(secret string) (*Service, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: secret must not be empty")
	}
	return &Service{
		secret:    []byte(secret),
		algorithm: jwa.HS256,
		now:       time.Now,
	}, nil
}

// ParseToken validates a token and projects its claims into an Actor.
func (s *Service) ParseToken(token string) (common.Actor, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return common.Actor{}, common.NewAppError("UNAUTHORIZED", "missing token", http.StatusUnauthorized, nil)
	}
	algorithm, err := extractTokenAlgorithm(trimmed)
	if err != nil {
		return common.Actor{}, common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, err)
	}
	if algorithm != s.algorithm {
		return common.Actor{}, common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, fmt.Errorf("unexpected token algorithm %s", algorithm))
	}
	parsed, err := jwt.ParseString(trimmed, jwt.WithKey(algorithm, s.secret), jwt.WithClock(jwt.ClockFunc(s.now)))
	if err != nil {
		return common.Actor{}, common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, err)
	}
	actor := common.Actor{UserID: parsed.Subject()}
	if actor.UserID == "" {
		return common.Actor{}, common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, errors.New("auth: token has no subject"))
	}
	if v, ok := parsed.Get(claimName); ok {
		if name, ok := v.(string); ok {
			actor.Name = name
		}
	}
	if v, ok := parsed.Get(claimOfficeID); ok {
		if office, ok := v.(string); ok {
			actor.OfficeID = office
		}
	}
	if v, ok := parsed.Get(claimCapabilities); ok {
		actor.Capabilities = stringSlice(v)
	}
	return actor, nil
}

// IssueToken signs an access token for the actor. Used by tests and local
// tooling; production tokens come from the identity provider.
func (s *Service) IssueToken(actor common.Actor, ttl time.Duration) (string, error) {
	now := s.now()
	builder := jwt.NewBuilder().
		Subject(actor.UserID).
		IssuedAt(now).
		Expiration(now.Add(ttl)).
		Claim(claimName, actor.Name).
		Claim(claimOfficeID, actor.OfficeID).
		Claim(claimCapabilities, actor.Capabilities)
	token, err := builder.Build()
	if err != nil {
		return "", fmt.Errorf("build token: %w", err)
	}
	signed, err := jwt.Sign(token, jwt.WithKey(s.algorithm, s.secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return string(signed), nil
}

func extractTokenAlgorithm(token string) (jwa.SignatureAlgorithm, error) {
	message, err := jws.ParseString(token)
	if err != nil {
		return "", err
	}
	signatures := message.Signatures()
	if len(signatures) == 0 {
		return "", errors.New("auth: token contains no signatures")
	}
	header := signatures[0].ProtectedHeaders()
	if header == nil {
		return "", errors.New("auth: token missing protected headers")
	}
	return header.Algorithm(), nil
}

func stringSlice(v any) []string {
	switch vs := v.(type) {
	case []string:
		return vs
	case []any:
		out := make([]string, 0, len(vs))
		for _, item := range vs {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
