// Package model はドメインモデルを定義する。
package model

import "time"

// AccountStatus はアカウントの状態を表す。
type AccountStatus string

const (
	// AccountStatusActive は利用中のアカウント。
	AccountStatusActive AccountStatus = "ACTIVE"
	// AccountStatusClosed は退会済みのアカウント。ログインできない。
	AccountStatusClosed AccountStatus = "CLOSED"
)

// Account はソーシャルログインで作成されるローカルアカウントを表す。
// Emailが外部IdPのプロフィールとの唯一の結合キーであり、重複しない。
type Account struct {
	ID          string
	Email       string
	DisplayName string
	AvatarURL   string
	Platform    string // アカウントを作成したIdP名（"google" 等）
	Status      AccountStatus
	LastLoginAt time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsClosed はアカウントが退会済みかどうかを返す。
func (a *Account) IsClosed() bool {
	return a.Status == AccountStatusClosed
}

// Summary はレスポンス用のアカウント要約を返す。
func (a *Account) Summary() AccountSummary {
	return AccountSummary{
		ID:          a.ID,
		Email:       a.Email,
		DisplayName: a.DisplayName,
		AvatarURL:   a.AvatarURL,
		Platform:    a.Platform,
	}
}

// TokenSubject はトークン発行時の署名対象を返す。
func (a *Account) TokenSubject() TokenSubject {
	return TokenSubject{
		AccountID: a.ID,
		Email:     a.Email,
		Platform:  a.Platform,
	}
}

// AccountSummary はログイン結果に含めるアカウント情報。
type AccountSummary struct {
	ID          string
	Email       string
	DisplayName string
	AvatarURL   string
	Platform    string
}

// RemoteProfile は外部IdPのユーザー情報エンドポイントから取得したプロフィール。
// リクエストスコープでのみ使用し、永続化しない。
type RemoteProfile struct {
	Provider    string
	Email       string
	DisplayName string
	AvatarURL   string
}

// TokenSubject はトークン発行時に署名対象となるアカウントの識別情報。
type TokenSubject struct {
	AccountID string
	Email     string
	Platform  string
}

// LoginResult はソーシャルログインの結果。呼び出しごとに新しく生成される。
type LoginResult struct {
	AccessToken     string // "Bearer " プレフィックス付き
	RefreshToken    string
	IsAlreadySignUp bool
	Account         AccountSummary
}

// RefreshToken は発行済みリフレッシュトークンを表す。
// トークン本体は保存せず、SHA-256ハッシュのみを保持する。
type RefreshToken struct {
	ID        string
	AccountID string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}
