// Package auth はソーシャルログイン、トークン再発行、ログアウトを提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/sociallogin/internal/metrics"
	"github.com/hitoshi/sociallogin/internal/model"
	"github.com/hitoshi/sociallogin/internal/repository"
	"github.com/hitoshi/sociallogin/internal/security"
)

// ResolverConfig はソーシャルログインの設定。
type ResolverConfig struct {
	// DefaultAvatarURL は新規アカウントに最初に設定するアバター。
	DefaultAvatarURL string
}

// Resolver は外部IdPのアクセストークンをローカルアカウントとトークン対に交換する。
// 状態を持たず、複数のリクエストから同時に呼び出せる。
type Resolver struct {
	registry  *Registry
	accounts  repository.AccountRepository
	sanitizer security.ProfileSanitizerService
	metrics   metrics.MetricsCollector
	minter    *tokenMinter
	config    ResolverConfig
	now       func() time.Time
}

// NewResolver はResolverを生成する。collectorがnilの場合はメトリクスを記録しない。
func NewResolver(
	registry *Registry,
	accounts repository.AccountRepository,
	refreshTokens repository.RefreshTokenRepository,
	issuer TokenIssuer,
	sanitizer security.ProfileSanitizerService,
	collector metrics.MetricsCollector,
	config ResolverConfig,
) *Resolver {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &Resolver{
		registry:  registry,
		accounts:  accounts,
		sanitizer: sanitizer,
		metrics:   collector,
		minter:    &tokenMinter{issuer: issuer, refreshTokens: refreshTokens, now: time.Now},
		config:    config,
		now:       time.Now,
	}
}

// ProceedLogin はIdPのトークンでプロフィールを取得し、アカウントを作成または更新してトークン対を返す。
//
// 処理の流れ:
//  1. プロバイダー名からIdentityProviderを解決する
//  2. IdPからプロフィールを取得する（失敗時は永続化を一切行わない）
//  3. メールアドレスでアカウントの存在を確認する
//  4. 未登録なら表示名とアバターを反映したACTIVEアカウントを最初のトークンと共に作成する
//  5. 登録済みなら退会済みをAccountNotFoundとし、最終ログイン日時のみ更新する
//  6. アクセストークンとリフレッシュトークンを発行する
func (r *Resolver) ProceedLogin(ctx context.Context, providerName, accessToken string) (*model.LoginResult, error) {
	provider, ok := r.registry.Get(providerName)
	if !ok {
		r.metrics.RecordLogin(providerName, metrics.ResultUnknownProvider)
		return nil, model.NewUnknownProviderError(providerName)
	}
	name := provider.Name()

	result, err := r.proceed(ctx, provider, accessToken)
	r.metrics.RecordLogin(name, loginResultLabel(err))
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *Resolver) proceed(ctx context.Context, provider IdentityProvider, accessToken string) (*model.LoginResult, error) {
	name := provider.Name()

	if strings.TrimSpace(accessToken) == "" {
		return nil, &model.ProfileFetchError{Provider: name, Err: errors.New("access token is empty")}
	}

	// 1. IdPからプロフィールを取得
	start := time.Now()
	remote, err := provider.FetchProfile(ctx, accessToken)
	r.metrics.RecordProfileFetchLatency(name, time.Since(start))
	r.recordProviderStatus(name, err)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s profile: %w", name, err)
	}

	profile := r.sanitizer.SanitizeProfile(*remote)
	email := strings.ToLower(strings.TrimSpace(profile.Email))

	// 2. 初回ログイン判定
	exists, err := r.accounts.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check account: %w", err)
	}
	if !exists {
		return r.signUp(ctx, name, email, profile)
	}

	// 3. アカウントを取得（退会済みはログイン不可）
	account, err := r.accounts.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	if account == nil || account.IsClosed() {
		slog.Warn("login rejected for missing or closed account",
			slog.String("provider", name),
			slog.String("email", email),
		)
		return nil, model.NewAccountNotFoundError()
	}

	// 4. 最終ログイン日時の更新
	now := r.now()
	account.LastLoginAt = now
	account.UpdatedAt = now
	if err := r.accounts.Update(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to update account: %w", err)
	}

	// 5. トークン対の発行
	result, err := r.minter.mint(ctx, account, true)
	if err != nil {
		return nil, err
	}

	slog.Info("existing account logged in",
		slog.String("account_id", account.ID),
		slog.String("provider", name),
	)
	return result, nil
}

// signUp はプロフィールを反映したACTIVE状態のアカウントを作成し、トークン対を返す。
// アカウントと最初のリフレッシュトークンは同一トランザクションで保存するため、
// 途中で失敗してもアカウントは残らず、再試行は再び初回ログインとして扱われる。
func (r *Resolver) signUp(ctx context.Context, provider, email string, profile model.RemoteProfile) (*model.LoginResult, error) {
	now := r.now()
	account := &model.Account{
		ID:          uuid.New().String(),
		Email:       email,
		DisplayName: displayNameOrFallback(profile.DisplayName, email),
		AvatarURL:   r.config.DefaultAvatarURL,
		Platform:    provider,
		Status:      model.AccountStatusActive,
		LastLoginAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if profile.AvatarURL != "" {
		account.AvatarURL = profile.AvatarURL
	}

	result, record, err := r.minter.issue(account, false)
	if err != nil {
		return nil, err
	}
	if err := r.accounts.CreateWithRefreshToken(ctx, account, record); err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	r.metrics.RecordSignup(provider)
	slog.Info("new account created",
		slog.String("account_id", account.ID),
		slog.String("email", account.Email),
		slog.String("provider", provider),
	)
	return result, nil
}

// recordProviderStatus はIdPのHTTPステータスを記録する。
// 通信自体が失敗した場合は記録しない。
func (r *Resolver) recordProviderStatus(provider string, err error) {
	if err == nil {
		r.metrics.RecordProviderHTTPStatus(provider, http.StatusOK)
		return
	}
	var fetchErr *model.ProfileFetchError
	if errors.As(err, &fetchErr) && fetchErr.StatusCode != 0 {
		r.metrics.RecordProviderHTTPStatus(provider, fetchErr.StatusCode)
	}
}

// displayNameOrFallback は表示名が空の場合にメールアドレスのローカル部を返す。
func displayNameOrFallback(name, email string) string {
	if name != "" {
		return name
	}
	if i := strings.IndexByte(email, '@'); i > 0 {
		return email[:i]
	}
	return email
}

// loginResultLabel はエラーをメトリクスのresultラベルに変換する。
func loginResultLabel(err error) string {
	if err == nil {
		return metrics.ResultSuccess
	}
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case model.ErrCodeAccountNotFound:
			return metrics.ResultAccountNotFound
		case model.ErrCodeUnknownProvider:
			return metrics.ResultUnknownProvider
		}
	}
	switch {
	case errors.Is(err, model.ErrProfileFetch):
		return metrics.ResultFetchFailed
	case errors.Is(err, model.ErrProfileParse):
		return metrics.ResultParseFailed
	case errors.Is(err, model.ErrPersistenceConflict):
		return metrics.ResultConflict
	default:
		return metrics.ResultError
	}
}
