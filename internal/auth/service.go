package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/sociallogin/internal/metrics"
	"github.com/hitoshi/sociallogin/internal/model"
	"github.com/hitoshi/sociallogin/internal/repository"
	"github.com/hitoshi/sociallogin/internal/token"
)

// Service はログイン後のトークン再発行、ログアウト、現在のアカウント取得を提供する。
type Service struct {
	accounts      repository.AccountRepository
	refreshTokens repository.RefreshTokenRepository
	metrics       metrics.MetricsCollector
	minter        *tokenMinter
}

// NewService はServiceを生成する。collectorがnilの場合はメトリクスを記録しない。
func NewService(
	accounts repository.AccountRepository,
	refreshTokens repository.RefreshTokenRepository,
	issuer TokenIssuer,
	collector metrics.MetricsCollector,
) *Service {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &Service{
		accounts:      accounts,
		refreshTokens: refreshTokens,
		metrics:       collector,
		minter:        &tokenMinter{issuer: issuer, refreshTokens: refreshTokens, now: time.Now},
	}
}

// Refresh はリフレッシュトークンを消費し、ローテーションした新しいトークン対を返す。
// 使用済みのリフレッシュトークンは削除され、同時に使われても再発行は1回だけ成功する。
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*model.LoginResult, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		s.metrics.RecordTokenRefresh(metrics.ResultInvalidToken)
		return nil, model.NewInvalidRefreshTokenError()
	}

	// 消費に成功した呼び出しだけが再発行に進める
	stored, err := s.refreshTokens.ConsumeByHash(ctx, token.HashRefreshToken(refreshToken))
	if err != nil {
		s.metrics.RecordTokenRefresh(metrics.ResultError)
		return nil, fmt.Errorf("failed to consume refresh token: %w", err)
	}
	if stored == nil {
		s.metrics.RecordTokenRefresh(metrics.ResultInvalidToken)
		return nil, model.NewInvalidRefreshTokenError()
	}

	account, err := s.accounts.FindByID(ctx, stored.AccountID)
	if err != nil {
		s.metrics.RecordTokenRefresh(metrics.ResultError)
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	if account == nil || account.IsClosed() {
		s.metrics.RecordTokenRefresh(metrics.ResultAccountNotFound)
		slog.Warn("refresh rejected for missing or closed account",
			slog.String("account_id", stored.AccountID),
		)
		return nil, model.NewAccountNotFoundError()
	}

	result, err := s.minter.mint(ctx, account, true)
	if err != nil {
		s.metrics.RecordTokenRefresh(metrics.ResultError)
		return nil, err
	}

	s.metrics.RecordTokenRefresh(metrics.ResultSuccess)
	slog.Info("tokens refreshed", slog.String("account_id", account.ID))
	return result, nil
}

// Logout はリフレッシュトークンを破棄する。
// 発行済みのアクセストークンは有効期限まで失効しない。
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return fmt.Errorf("refresh token is required")
	}

	if err := s.refreshTokens.DeleteByHash(ctx, token.HashRefreshToken(refreshToken)); err != nil {
		return fmt.Errorf("failed to delete refresh token: %w", err)
	}

	slog.Info("account logged out")
	return nil
}

// GetCurrentAccount は認証済みアカウントIDからアカウントを取得する。
// 見つからない、または退会済みの場合はAccountNotFoundを返す。
func (s *Service) GetCurrentAccount(ctx context.Context, accountID string) (*model.Account, error) {
	if accountID == "" {
		return nil, fmt.Errorf("account ID is required")
	}

	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	if account == nil || account.IsClosed() {
		slog.Warn("account lookup rejected for missing or closed account",
			slog.String("account_id", accountID),
		)
		return nil, model.NewAccountNotFoundError()
	}

	return account, nil
}
