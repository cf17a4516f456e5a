package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/sociallogin/internal/middleware"
	"github.com/hitoshi/sociallogin/internal/model"
)

// --- モック定義 ---

// mockLoginResolver はLoginResolverInterfaceのモック実装。
type mockLoginResolver struct {
	proceedLoginFn func(ctx context.Context, providerName, accessToken string) (*model.LoginResult, error)
}

func (m *mockLoginResolver) ProceedLogin(ctx context.Context, providerName, accessToken string) (*model.LoginResult, error) {
	if m.proceedLoginFn != nil {
		return m.proceedLoginFn(ctx, providerName, accessToken)
	}
	return nil, nil
}

// mockAuthService はAuthServiceInterfaceのモック実装。
type mockAuthService struct {
	refreshFn           func(ctx context.Context, refreshToken string) (*model.LoginResult, error)
	logoutFn            func(ctx context.Context, refreshToken string) error
	getCurrentAccountFn func(ctx context.Context, accountID string) (*model.Account, error)
}

func (m *mockAuthService) Refresh(ctx context.Context, refreshToken string) (*model.LoginResult, error) {
	if m.refreshFn != nil {
		return m.refreshFn(ctx, refreshToken)
	}
	return nil, nil
}

func (m *mockAuthService) Logout(ctx context.Context, refreshToken string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, refreshToken)
	}
	return nil
}

func (m *mockAuthService) GetCurrentAccount(ctx context.Context, accountID string) (*model.Account, error) {
	if m.getCurrentAccountFn != nil {
		return m.getCurrentAccountFn(ctx, accountID)
	}
	return nil, nil
}

// mockAccountService はAccountServiceInterfaceのモック実装。
type mockAccountService struct {
	withdrawFn func(ctx context.Context, accountID string) error
}

func (m *mockAccountService) Withdraw(ctx context.Context, accountID string) error {
	if m.withdrawFn != nil {
		return m.withdrawFn(ctx, accountID)
	}
	return nil
}

// --- テストヘルパー ---

// withAccountID はテスト用にリクエストコンテキストへアカウントIDを注入するヘルパー。
func withAccountID(r *http.Request, accountID string) *http.Request {
	return r.WithContext(middleware.ContextWithAccountID(r.Context(), accountID))
}

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

// parseAPIErrorResponse は統一エラーフォーマットのレスポンスをデコードする。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return body
}

func sampleLoginResult(alreadySignedUp bool) *model.LoginResult {
	return &model.LoginResult{
		AccessToken:     "Bearer jwt-access",
		RefreshToken:    "refresh-raw",
		IsAlreadySignUp: alreadySignedUp,
		Account: model.AccountSummary{
			ID:          "account-1",
			Email:       "a@x.com",
			DisplayName: "Ann",
			AvatarURL:   "https://cdn.example.com/ann.png",
			Platform:    "google",
		},
	}
}
