package middleware

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hitoshi/tzkeeper/internal/model"
)

// ErrorResponseBody はエラーレスポンスの統一フォーマット。
// 上流APIと同じくmessageフィールドを持つ。
type ErrorResponseBody struct {
	Message  string `json:"message"`
	Category string `json:"category,omitempty"`
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, message, category string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Message:  message,
		Category: category,
	})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, "internal server error", "system")
}

// WriteError はエラーのカテゴリに応じたステータスでレスポンスを書き込む。
func WriteError(w http.ResponseWriter, err error) {
	category := model.Category(err)
	switch category {
	case model.CategoryAuth:
		WriteErrorResponse(w, http.StatusUnauthorized, err.Error(), category)
	case model.CategoryValidation:
		WriteErrorResponse(w, http.StatusBadRequest, err.Error(), category)
	case model.CategoryHTTP:
		var httpErr *model.HTTPError
		errors.As(err, &httpErr)
		WriteErrorResponse(w, http.StatusBadGateway, httpErr.Message, category)
	case model.CategoryNetwork, model.CategoryParse:
		WriteErrorResponse(w, http.StatusBadGateway, "upstream API unavailable", category)
	default:
		WriteInternalServerError(w)
	}
}
