package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, provider, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeAccountNotFound     = "ACCOUNT_NOT_FOUND"
	ErrCodeUnknownProvider     = "UNKNOWN_PROVIDER"
	ErrCodeProfileFetchFailed  = "PROFILE_FETCH_FAILED"
	ErrCodeProfileParseFailed  = "PROFILE_PARSE_FAILED"
	ErrCodePersistenceConflict = "PERSISTENCE_CONFLICT"
	ErrCodeInvalidRefreshToken = "INVALID_REFRESH_TOKEN"
	ErrCodeInvalidRequest      = "INVALID_REQUEST"
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeInternal            = "INTERNAL_ERROR"
)

// サービス層からラップして返すセンチネルエラー。
// 呼び出し側はerrors.Isで判定する。
var (
	// ErrProfileFetch はIdPへのプロフィール取得リクエストの失敗を表す。
	ErrProfileFetch = errors.New("profile fetch failed")
	// ErrProfileParse はIdPのレスポンスをプロフィールに変換できなかったことを表す。
	ErrProfileParse = errors.New("profile parse failed")
	// ErrPersistenceConflict は一意制約違反（同一メールの同時登録など）を表す。
	ErrPersistenceConflict = errors.New("persistence conflict")
	// ErrInvalidToken はアクセストークンの検証失敗を表す。
	ErrInvalidToken = errors.New("invalid token")
)

// ProfileFetchError はIdP呼び出しの失敗詳細を保持する。
// StatusCodeはHTTPレスポンスを受け取れた場合のみ設定される。
type ProfileFetchError struct {
	Provider   string
	StatusCode int
	Err        error
}

// Error はerrorインターフェースを実装する。
func (e *ProfileFetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s responded with status %d", ErrProfileFetch, e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s: %v", ErrProfileFetch, e.Provider, e.Err)
}

// Unwrap は元のエラーを返す。
func (e *ProfileFetchError) Unwrap() error {
	return e.Err
}

// Is はErrProfileFetchとの比較を成立させる。
func (e *ProfileFetchError) Is(target error) bool {
	return target == ErrProfileFetch
}

// IsCredentialRejected はIdPがトークンを拒否した（401/403）かどうかを返す。
func (e *ProfileFetchError) IsCredentialRejected() bool {
	return e.StatusCode == 401 || e.StatusCode == 403
}

// NewAccountNotFoundError はアカウント未検出エラーを生成する。
// 退会済みアカウントもこのエラーとして扱う。メッセージには識別子を含めない。
func NewAccountNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeAccountNotFound,
		Message:  "アカウントが見つかりません。",
		Category: "auth",
		Action:   "退会済みのアカウントではログインできません。別のアカウントでログインしてください。",
	}
}

// NewUnknownProviderError は未登録のIdPが指定された場合のエラーを生成する。
func NewUnknownProviderError(provider string) *APIError {
	return &APIError{
		Code:     ErrCodeUnknownProvider,
		Message:  fmt.Sprintf("対応していないログインプロバイダーです: %s", provider),
		Category: "validation",
		Action:   "対応しているプロバイダーを指定してください。",
	}
}

// NewProfileFetchFailedError はIdPからのプロフィール取得失敗エラーを生成する。
func NewProfileFetchFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeProfileFetchFailed,
		Message:  "ログインプロバイダーからユーザー情報を取得できませんでした。",
		Category: "provider",
		Action:   "もう一度ログインをやり直してください。",
	}
}

// NewProfileParseFailedError はIdPレスポンスの解析失敗エラーを生成する。
func NewProfileParseFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeProfileParseFailed,
		Message:  "ログインプロバイダーのユーザー情報を解析できませんでした。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewPersistenceConflictError は同時登録による競合エラーを生成する。
func NewPersistenceConflictError() *APIError {
	return &APIError{
		Code:     ErrCodePersistenceConflict,
		Message:  "同じメールアドレスのアカウントが同時に作成されました。",
		Category: "auth",
		Action:   "もう一度ログインしてください。",
	}
}

// NewInvalidRefreshTokenError は無効または期限切れのリフレッシュトークンエラーを生成する。
func NewInvalidRefreshTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRefreshToken,
		Message:  "リフレッシュトークンが無効か、有効期限が切れています。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewInvalidRequestError はリクエスト形式の不正エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "リクエスト内容を確認してください。",
	}
}

// NewUnauthorizedError は認証が必要な操作に未認証でアクセスした場合のエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログにのみ記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
