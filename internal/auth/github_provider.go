package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/hitoshi/sociallogin/internal/model"
)

// ProviderGitHub はGitHubプロバイダーの登録名。
const ProviderGitHub = "github"

const defaultGitHubUserInfoURL = "https://api.github.com/user"

// githubUserInfo はGitHubの /user エンドポイントのレスポンス。
// emailはユーザーが公開設定にしていない場合nullになる。
type githubUserInfo struct {
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

// GitHubProvider はGitHubのアクセストークンからプロフィールを取得する。
type GitHubProvider struct {
	client      *http.Client
	userInfoURL string
}

// NewGitHubProvider はGitHubProviderを生成する。
func NewGitHubProvider(client *http.Client, userInfoURL string) *GitHubProvider {
	if userInfoURL == "" {
		userInfoURL = defaultGitHubUserInfoURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &GitHubProvider{client: client, userInfoURL: userInfoURL}
}

// Name はプロバイダー名を返す。
func (p *GitHubProvider) Name() string {
	return ProviderGitHub
}

// FetchProfile はGitHubのユーザー情報を取得してRemoteProfileに変換する。
// 表示名が未設定の場合はログイン名を使用する。
func (p *GitHubProvider) FetchProfile(ctx context.Context, token string) (*model.RemoteProfile, error) {
	var info githubUserInfo
	if err := fetchUserInfo(ctx, p.client, ProviderGitHub, p.userInfoURL, token, &info); err != nil {
		return nil, err
	}

	email := strings.TrimSpace(info.Email)
	if email == "" {
		return nil, fmt.Errorf("%w: github user info has no public email", model.ErrProfileParse)
	}

	name := info.Name
	if strings.TrimSpace(name) == "" {
		name = info.Login
	}

	return &model.RemoteProfile{
		Provider:    ProviderGitHub,
		Email:       email,
		DisplayName: name,
		AvatarURL:   info.AvatarURL,
	}, nil
}

// compile-time interface check
var _ IdentityProvider = (*GitHubProvider)(nil)
