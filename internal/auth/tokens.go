package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/sociallogin/internal/model"
	"github.com/hitoshi/sociallogin/internal/repository"
	"github.com/hitoshi/sociallogin/internal/token"
)

// TokenIssuer はアクセストークンとリフレッシュトークンを発行する。
type TokenIssuer interface {
	GenerateAccessToken(subject model.TokenSubject) (string, error)
	GenerateRefreshToken() (string, error)
	RefreshTTL() time.Duration
}

// tokenMinter はトークン対を発行し、リフレッシュトークンのハッシュを保存する。
// ResolverとServiceで共有する。
type tokenMinter struct {
	issuer        TokenIssuer
	refreshTokens repository.RefreshTokenRepository
	now           func() time.Time
}

// mint はアカウントに対するトークン対を発行し、リフレッシュトークンのハッシュを保存する。
func (m *tokenMinter) mint(ctx context.Context, account *model.Account, alreadySignedUp bool) (*model.LoginResult, error) {
	result, record, err := m.issue(account, alreadySignedUp)
	if err != nil {
		return nil, err
	}
	if err := m.refreshTokens.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}
	return result, nil
}

// issue はトークン対を発行し、保存すべきリフレッシュトークンのレコードと共に返す。
// 保存は呼び出し側が行う。アクセストークンには "Bearer " プレフィックスを付与する。
func (m *tokenMinter) issue(account *model.Account, alreadySignedUp bool) (*model.LoginResult, *model.RefreshToken, error) {
	accessToken, err := m.issuer.GenerateAccessToken(account.TokenSubject())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err := m.issuer.GenerateRefreshToken()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	now := m.now()
	record := &model.RefreshToken{
		ID:        uuid.New().String(),
		AccountID: account.ID,
		TokenHash: token.HashRefreshToken(refreshToken),
		ExpiresAt: now.Add(m.issuer.RefreshTTL()),
		CreatedAt: now,
	}

	return &model.LoginResult{
		AccessToken:     token.BearerPrefix + accessToken,
		RefreshToken:    refreshToken,
		IsAlreadySignUp: alreadySignedUp,
		Account:         account.Summary(),
	}, record, nil
}
