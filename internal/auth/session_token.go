package auth

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidSessionToken は署名付きセッションCookieの検証に失敗したことを示す。
var ErrInvalidSessionToken = errors.New("invalid session token")

// SessionSigner はセッションIDをHS256で署名したCookie値に変換する。
type SessionSigner struct {
	key []byte
	now func() time.Time
}

// NewSessionSigner はSessionSignerを生成する。
func NewSessionSigner(secret string) *SessionSigner {
	return &SessionSigner{key: []byte(secret), now: time.Now}
}

// Sign はセッションIDと有効期限を含む署名付きトークンを返す。
func (s *SessionSigner) Sign(sessionID string, expiresAt time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		ID:        sessionID,
		IssuedAt:  jwt.NewNumericDate(s.now()),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", errors.Wrap(err, "sign session token")
	}
	return signed, nil
}

// Verify は署名と有効期限を検証し、セッションIDを返す。
func (s *SessionSigner) Verify(value string) (string, error) {
	if value == "" {
		return "", ErrInvalidSessionToken
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(value, claims,
		func(*jwt.Token) (any, error) { return s.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", errors.Wrap(ErrInvalidSessionToken, err.Error())
	}
	if claims.ID == "" {
		return "", ErrInvalidSessionToken
	}
	return claims.ID, nil
}
