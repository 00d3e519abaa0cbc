// Package auth はOIDC認証フローとセッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/go-faster/errors"

	"github.com/hitoshi/gameshelf/internal/model"
	"github.com/hitoshi/gameshelf/internal/repository"
)

// TokenSet はトークンエンドポイントから取得したトークンとid_tokenのクレーム。
type TokenSet struct {
	IDToken     string
	AccessToken string
	Subject     string
	Name        string
	Email       string
}

// IdentityProvider は外部IdPとのやり取りを抽象化する。
type IdentityProvider interface {
	// GetLoginURL は認可エンドポイントのURLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをトークンに交換する。
	ExchangeCode(ctx context.Context, code string) (*TokenSet, error)
	// LogoutURL はIdPのログアウトURLを生成する。
	LogoutURL(returnTo string) string
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	idp         IdentityProvider
	tokenRepo   repository.UserTokenRepository
	sessionRepo repository.SessionRepository
	signer      *SessionSigner
	config      ServiceConfig
	now         func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	idp IdentityProvider,
	tokenRepo repository.UserTokenRepository,
	sessionRepo repository.SessionRepository,
	signer *SessionSigner,
	config ServiceConfig,
) *Service {
	return &Service{
		idp:         idp,
		tokenRepo:   tokenRepo,
		sessionRepo: sessionRepo,
		signer:      signer,
		config:      config,
		now:         time.Now,
	}
}

// GetLoginURL はIdPの認可URLを生成する。
func (s *Service) GetLoginURL(state string) string {
	return s.idp.GetLoginURL(state)
}

// LogoutURL はIdPのログアウトURLを生成する。
func (s *Service) LogoutURL(returnTo string) string {
	return s.idp.LogoutURL(returnTo)
}

// HandleCallback は認可コードを交換し、ユーザートークンとセッションを発行する。
// 戻り値の文字列はsession_id Cookieに設定する署名付きの値。
// IdPとの通信に失敗した場合は model.ErrUpstreamFailure を包んだエラーを返す。
func (s *Service) HandleCallback(ctx context.Context, code string) (*model.Session, string, error) {
	if code == "" {
		return nil, "", errors.Wrap(model.ErrUpstreamFailure, "missing authorization code")
	}

	tokens, err := s.idp.ExchangeCode(ctx, code)
	if err != nil {
		return nil, "", &upstreamError{op: "exchange code", err: err}
	}

	userToken := &model.UserToken{
		Subject:     tokens.Subject,
		Name:        tokens.Name,
		Email:       tokens.Email,
		IDToken:     tokens.IDToken,
		AccessToken: tokens.AccessToken,
	}
	if err := s.tokenRepo.Create(ctx, userToken); err != nil {
		return nil, "", errors.Wrap(err, "save user token")
	}

	session, err := s.createSession(ctx, userToken)
	if err != nil {
		return nil, "", err
	}

	value, err := s.signer.Sign(session.ID, session.ExpiresAt)
	if err != nil {
		return nil, "", err
	}

	slog.Info("user logged in",
		slog.String("subject", userToken.Subject),
		slog.String("user_token_id", userToken.ID),
	)
	return session, value, nil
}

// ResolveSession は署名付きCookie値から有効なセッションを特定する。
// 署名が不正、期限切れ、または該当セッションがない場合はnil, nilを返す。
func (s *Service) ResolveSession(ctx context.Context, cookieValue string) (*model.Identity, error) {
	sessionID, err := s.signer.Verify(cookieValue)
	if err != nil {
		return nil, nil
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, errors.Wrap(err, "find session")
	}
	return model.IdentityFromSession(session), nil
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return errors.New("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return errors.Wrap(err, "delete session")
	}

	slog.Info("user logged out", slog.String("session_id", sessionID))
	return nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, token *model.UserToken) (*model.Session, error) {
	sessionID, err := GenerateRandomToken()
	if err != nil {
		return nil, errors.Wrap(err, "generate session ID")
	}

	now := s.now()
	session := &model.Session{
		ID:          sessionID,
		UserTokenID: token.ID,
		Subject:     token.Subject,
		Name:        token.Name,
		ExpiresAt:   now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt:   now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, errors.Wrap(err, "save session")
	}
	return session, nil
}

// GenerateRandomToken は暗号的に安全な32バイトのランダム値を16進文字列で返す。
// セッションIDやOAuthのstateに使用する。
func GenerateRandomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// upstreamError はIdPとのやり取りの失敗を ErrUpstreamFailure として包む。
// errors.Is で ErrUpstreamFailure と元のエラーの両方を判定できる。
type upstreamError struct {
	op  string
	err error
}

func (e *upstreamError) Error() string {
	return e.op + ": " + e.err.Error()
}

func (e *upstreamError) Unwrap() []error {
	return []error{model.ErrUpstreamFailure, e.err}
}
