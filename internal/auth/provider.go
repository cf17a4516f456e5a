package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/hitoshi/sociallogin/internal/model"
)

// maxProfileBodySize はIdPのユーザー情報レスポンスの最大読み込みサイズ（1 MiB）。
const maxProfileBodySize = 1 << 20

// IdentityProvider は外部IdPのユーザー情報エンドポイントを抽象化する。
// 実装はGoogle、GitHub等のIdPごとに用意し、Registryに名前で登録する。
type IdentityProvider interface {
	// Name はプロバイダー名（"google" 等）を返す。Account.Platformに保存される。
	Name() string
	// FetchProfile はベアラートークンでユーザー情報を取得する。
	// 通信失敗・非2xxはmodel.ErrProfileFetch、
	// JSON不正・メール欠落はmodel.ErrProfileParseをラップして返す。
	FetchProfile(ctx context.Context, token string) (*model.RemoteProfile, error)
}

// fetchUserInfo はuserInfoURLにベアラートークン付きのGETを送り、レスポンスをdstにデコードする。
func fetchUserInfo(ctx context.Context, client *http.Client, provider, userInfoURL, token string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, userInfoURL, nil)
	if err != nil {
		return &model.ProfileFetchError{Provider: provider, Err: fmt.Errorf("failed to create user info request: %w", err)}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return &model.ProfileFetchError{Provider: provider, Err: fmt.Errorf("user info request failed: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// 接続を再利用できるよう本文を読み捨てる
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxProfileBodySize))
		return &model.ProfileFetchError{Provider: provider, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProfileBodySize+1))
	if err != nil {
		return &model.ProfileFetchError{Provider: provider, Err: fmt.Errorf("failed to read user info response: %w", err)}
	}
	if len(body) > maxProfileBodySize {
		return fmt.Errorf("%w: %s user info response exceeds %d bytes", model.ErrProfileParse, provider, maxProfileBodySize)
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("%w: failed to decode %s user info: %v", model.ErrProfileParse, provider, err)
	}
	return nil
}
