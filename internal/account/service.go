// Package account はアカウント管理のドメインロジックを提供する。
package account

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/sociallogin/internal/model"
	"github.com/hitoshi/sociallogin/internal/repository"
)

// RefreshTokenRevoker はアカウントのリフレッシュトークン一括削除インターフェース。
type RefreshTokenRevoker interface {
	DeleteByAccountID(ctx context.Context, accountID string) error
}

// Service はアカウント管理のサービス層。
// 退会処理のビジネスロジックを提供する。
type Service struct {
	accounts repository.AccountRepository
	revoker  RefreshTokenRevoker
	now      func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(accounts repository.AccountRepository, revoker RefreshTokenRevoker) *Service {
	return &Service{
		accounts: accounts,
		revoker:  revoker,
		now:      time.Now,
	}
}

// Withdraw はアカウントの退会処理を実行する。
// アカウントは削除せずCLOSEDにする。同じメールアドレスでの再ログインはAccountNotFoundとなる。
// 処理順序: status=CLOSED → リフレッシュトークン削除
func (s *Service) Withdraw(ctx context.Context, accountID string) error {
	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return fmt.Errorf("アカウントの取得に失敗しました: %w", err)
	}
	if account == nil || account.IsClosed() {
		slog.Warn("退会対象のアカウントが見つかりません",
			slog.String("account_id", accountID),
		)
		return model.NewAccountNotFoundError()
	}

	slog.Info("退会処理を開始します",
		slog.String("account_id", accountID),
	)

	// 1. アカウントを退会済みにする
	account.Status = model.AccountStatusClosed
	account.UpdatedAt = s.now()
	if err := s.accounts.Update(ctx, account); err != nil {
		return fmt.Errorf("アカウントの更新に失敗しました: %w", err)
	}

	// 2. リフレッシュトークンを削除
	if s.revoker != nil {
		if err := s.revoker.DeleteByAccountID(ctx, accountID); err != nil {
			return fmt.Errorf("リフレッシュトークンの削除に失敗しました: %w", err)
		}
	}

	slog.Info("退会処理が完了しました",
		slog.String("account_id", accountID),
	)

	return nil
}
