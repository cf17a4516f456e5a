package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/hitoshi/sociallogin/internal/model"
)

// ProviderGoogle はGoogleプロバイダーの登録名。
const ProviderGoogle = "google"

const defaultGoogleUserInfoURL = "https://www.googleapis.com/oauth2/v1/userinfo"

// googleUserInfo はGoogleのユーザー情報エンドポイント（v1）のレスポンス。
type googleUserInfo struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// GoogleProvider はGoogleのアクセストークンからプロフィールを取得する。
type GoogleProvider struct {
	client      *http.Client
	userInfoURL string
}

// NewGoogleProvider はGoogleProviderを生成する。
// userInfoURLが空の場合はGoogleの本番エンドポイントを使用する。
func NewGoogleProvider(client *http.Client, userInfoURL string) *GoogleProvider {
	if userInfoURL == "" {
		userInfoURL = defaultGoogleUserInfoURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &GoogleProvider{client: client, userInfoURL: userInfoURL}
}

// Name はプロバイダー名を返す。
func (p *GoogleProvider) Name() string {
	return ProviderGoogle
}

// FetchProfile はGoogleのユーザー情報を取得してRemoteProfileに変換する。
func (p *GoogleProvider) FetchProfile(ctx context.Context, token string) (*model.RemoteProfile, error) {
	var info googleUserInfo
	if err := fetchUserInfo(ctx, p.client, ProviderGoogle, p.userInfoURL, token, &info); err != nil {
		return nil, err
	}

	email := strings.TrimSpace(info.Email)
	if email == "" {
		return nil, fmt.Errorf("%w: google user info has no email", model.ErrProfileParse)
	}

	return &model.RemoteProfile{
		Provider:    ProviderGoogle,
		Email:       email,
		DisplayName: info.Name,
		AvatarURL:   info.Picture,
	}, nil
}

// compile-time interface check
var _ IdentityProvider = (*GoogleProvider)(nil)
