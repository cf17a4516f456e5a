// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/sociallogin/internal/model"
)

// AccountRepository はアカウントデータの永続化インターフェース。
// メールアドレスは小文字に正規化した値で保存・検索する。
type AccountRepository interface {
	// ExistsByEmail は指定メールアドレスのアカウントが存在するかを返す。
	// 退会済みアカウントも存在するものとして扱う。
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	// FindByEmail は指定メールアドレスのアカウントを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.Account, error)

	// FindByID は指定IDのアカウントを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Account, error)

	// Save はアカウントを新規作成する。
	// メールアドレスが重複する場合はmodel.ErrPersistenceConflictをラップして返す。
	Save(ctx context.Context, account *model.Account) error

	// CreateWithRefreshToken は新規アカウントと最初のリフレッシュトークンを同一トランザクションで作成する。
	// どちらかの書き込みに失敗した場合はアカウントも残らない。
	// メールアドレスが重複する場合はmodel.ErrPersistenceConflictをラップして返す。
	CreateWithRefreshToken(ctx context.Context, account *model.Account, token *model.RefreshToken) error

	// Update は表示名、アバター、状態、最終ログイン日時を更新する。
	Update(ctx context.Context, account *model.Account) error
}

// RefreshTokenRepository はリフレッシュトークンの永続化インターフェース。
type RefreshTokenRepository interface {
	// Create はリフレッシュトークンのハッシュを保存する。
	Create(ctx context.Context, token *model.RefreshToken) error

	// ConsumeByHash はハッシュに一致する有効期限内のトークンを削除し、削除したトークンを返す。
	// 見つからない、期限切れ、または他の呼び出しが先に消費した場合はnilを返す。
	// 同じトークンを同時に消費しても成功するのは1回だけである。
	ConsumeByHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error)

	// DeleteByHash はハッシュに一致するトークンを削除する。存在しなくてもエラーにしない。
	DeleteByHash(ctx context.Context, tokenHash string) error

	// DeleteByAccountID は指定アカウントの全トークンを削除する。
	DeleteByAccountID(ctx context.Context, accountID string) error
}
