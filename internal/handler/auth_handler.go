// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/sociallogin/internal/middleware"
	"github.com/hitoshi/sociallogin/internal/model"
)

// maxRequestBodySize はトークン送信用リクエストボディの上限（バイト）。
const maxRequestBodySize = 16 << 10

// LoginResolverInterface はログインハンドラーが必要とするリゾルバーのインターフェース。
type LoginResolverInterface interface {
	ProceedLogin(ctx context.Context, providerName, accessToken string) (*model.LoginResult, error)
}

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Refresh(ctx context.Context, refreshToken string) (*model.LoginResult, error)
	Logout(ctx context.Context, refreshToken string) error
	GetCurrentAccount(ctx context.Context, accountID string) (*model.Account, error)
}

// AuthHandler はソーシャルログインとトークン管理のHTTPハンドラー。
type AuthHandler struct {
	resolver LoginResolverInterface
	service  AuthServiceInterface
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(resolver LoginResolverInterface, service AuthServiceInterface) *AuthHandler {
	return &AuthHandler{
		resolver: resolver,
		service:  service,
	}
}

// loginRequest はPOST /auth/login/{provider} のリクエストボディ。
type loginRequest struct {
	Token string `json:"token"`
}

// refreshRequest はPOST /auth/refresh と /auth/logout のリクエストボディ。
type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// accountSummaryResponse はログイン結果に含めるアカウント情報。
type accountSummaryResponse struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
	Platform    string `json:"platform"`
}

// loginResponse はログインおよびトークン更新のレスポンス。
type loginResponse struct {
	AccessToken     string                 `json:"access_token"`
	RefreshToken    string                 `json:"refresh_token"`
	IsAlreadySignUp bool                   `json:"is_already_sign_up"`
	Account         accountSummaryResponse `json:"account"`
}

// accountResponse はGET /auth/me のレスポンス。
type accountResponse struct {
	accountSummaryResponse
	Status      string     `json:"status"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Login はIdPのアクセストークンでログインし、トークン対を返す。
// POST /auth/login/{provider}
// トークンはJSONボディの"token"、またはAuthorizationヘッダーのBearerで受け付ける。
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	var req loginRequest
	if err := decodeOptionalJSON(w, r, &req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("JSONの形式が不正です"))
		return
	}

	providerToken := strings.TrimSpace(req.Token)
	if providerToken == "" {
		providerToken, _ = middleware.BearerToken(r)
	}
	if providerToken == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("トークンが指定されていません"))
		return
	}

	result, err := h.resolver.ProceedLogin(r.Context(), provider, providerToken)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeLoginResult(w, result)
}

// Refresh はリフレッシュトークンをローテーションし、新しいトークン対を返す。
// POST /auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeOptionalJSON(w, r, &req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("JSONの形式が不正です"))
		return
	}

	result, err := h.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeLoginResult(w, result)
}

// Logout はリフレッシュトークンを破棄する。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeOptionalJSON(w, r, &req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("JSONの形式が不正です"))
		return
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("refresh_tokenが指定されていません"))
		return
	}

	if err := h.service.Logout(r.Context(), req.RefreshToken); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Me は認証済みアカウントの情報を返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	accountID, err := middleware.AccountIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	account, err := h.service.GetCurrentAccount(r.Context(), accountID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toAccountResponse(account))
}

// decodeOptionalJSON はリクエストボディをJSONとしてデコードする。
// 空のボディはエラーとしない。
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// writeLoginResult はログイン結果をJSONで返し、アクセストークンをAuthorizationヘッダーにも設定する。
func writeLoginResult(w http.ResponseWriter, result *model.LoginResult) {
	w.Header().Set("Authorization", result.AccessToken)
	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken:     result.AccessToken,
		RefreshToken:    result.RefreshToken,
		IsAlreadySignUp: result.IsAlreadySignUp,
		Account:         toAccountSummaryResponse(result.Account),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func toAccountSummaryResponse(s model.AccountSummary) accountSummaryResponse {
	return accountSummaryResponse{
		ID:          s.ID,
		Email:       s.Email,
		DisplayName: s.DisplayName,
		AvatarURL:   s.AvatarURL,
		Platform:    s.Platform,
	}
}

func toAccountResponse(a *model.Account) accountResponse {
	resp := accountResponse{
		accountSummaryResponse: toAccountSummaryResponse(a.Summary()),
		Status:                 string(a.Status),
		CreatedAt:              a.CreatedAt,
	}
	if !a.LastLoginAt.IsZero() {
		lastLogin := a.LastLoginAt
		resp.LastLoginAt = &lastLogin
	}
	return resp
}
