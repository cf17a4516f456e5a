package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/sociallogin/internal/middleware"
	"github.com/hitoshi/sociallogin/internal/model"
)

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	var fetchErr *model.ProfileFetchError
	if errors.As(err, &fetchErr) {
		status := http.StatusBadGateway
		if fetchErr.IsCredentialRejected() {
			status = http.StatusUnauthorized
		}
		slog.Warn("profile fetch failed",
			slog.String("provider", fetchErr.Provider),
			slog.Int("provider_status", fetchErr.StatusCode),
			slog.String("error", err.Error()),
		)
		writeAPIErrorResponse(w, status, model.NewProfileFetchFailedError())
		return
	}

	switch {
	case errors.Is(err, model.ErrProfileParse):
		slog.Error("profile parse failed", slog.String("error", err.Error()))
		writeAPIErrorResponse(w, http.StatusInternalServerError, model.NewProfileParseFailedError())
		return
	case errors.Is(err, model.ErrPersistenceConflict):
		slog.Warn("persistence conflict", slog.String("error", err.Error()))
		writeAPIErrorResponse(w, http.StatusConflict, model.NewPersistenceConflictError())
		return
	}

	// 上記以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeUnknownProvider, model.ErrCodeAccountNotFound:
		return http.StatusNotFound
	case model.ErrCodeInvalidRefreshToken, model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case model.ErrCodePersistenceConflict:
		return http.StatusConflict
	case model.ErrCodeProfileFetchFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
