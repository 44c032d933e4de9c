package auth

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"strings"
	"time"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrLoginDisabled      = errors.New("operator login is not configured")
)

const DefaultTokenTTL = 12 * time.Hour

type Token struct {
	AccessToken string    `json:"accessToken"`
	TokenType   string    `json:"tokenType"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// Service authenticates the single operator account configured for the
// deployment. There is no user table; the credentials come from config.
type Service struct {
	email        string
	passwordHash string
	secret       string
	ttl          time.Duration
	now          func() time.Time
}

func NewService(email, passwordHash, secret string, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Service{
		email:        strings.ToLower(strings.TrimSpace(email)),
		passwordHash: passwordHash,
		secret:       secret,
		ttl:          ttl,
		now:          time.Now,
	}
}

// Enabled reports whether an operator account is configured. When it is not,
// the API runs open.
func (s *Service) Enabled() bool {
	return s.email != "" && s.passwordHash != ""
}

func (s *Service) Login(email, password string) (Token, error) {
	if !s.Enabled() {
		return Token{}, ErrLoginDisabled
	}
	email = strings.ToLower(strings.TrimSpace(email))
	emailMatch := subtle.ConstantTimeCompare([]byte(email), []byte(s.email)) == 1
	if err := CheckPassword(s.passwordHash, password); err != nil || !emailMatch {
		slog.Warn("operator login rejected", "email", email)
		return Token{}, ErrInvalidCredentials
	}

	issued := s.now().UTC()
	signed, err := GenerateToken(s.secret, Claims{Email: s.email, Role: RoleOperator}, issued, s.ttl)
	if err != nil {
		return Token{}, err
	}
	return Token{AccessToken: signed, TokenType: "Bearer", ExpiresAt: issued.Add(s.ttl)}, nil
}

func (s *Service) Verify(token string) (OperatorContext, error) {
	claims, err := ParseToken(s.secret, token)
	if err != nil {
		return OperatorContext{}, err
	}
	return OperatorContext{Email: claims.Email, Role: claims.Role}, nil
}
