package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/room-reservation/internal/application"
)

var (
	errBadRequestBody        = errors.New("無効なリクエスト形式です。")
	errInvalidReservationID  = errors.New("無効な予約 ID です。")
	errInvalidUserID         = errors.New("無効なユーザー ID です。")
	errInvalidRoomID         = errors.New("無効な会議室 ID です。")
	errMissingSessionToken   = errors.New("認証トークンを指定してください")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := localizedStatusMessage(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	switch {
	case errors.Is(err, application.ErrUnauthorized):
		r.writeJSON(ctx, w, http.StatusForbidden, errorResponse{
			ErrorCode: "AUTH_FORBIDDEN",
			Message:   "この操作を実行する権限がありません。",
		})
	case errors.Is(err, application.ErrNotFound):
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{Message: "指定されたリソースが見つかりません。"})
	case errors.Is(err, application.ErrPastEvent):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode: "RESERVATION_IN_PAST",
			Message:   "終了済みの予約は変更できません。",
		})
	case errors.Is(err, application.ErrAlreadyCancelled):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode: "RESERVATION_ALREADY_CANCELLED",
			Message:   "この予約はすでにキャンセルされています。",
		})
	case errors.Is(err, application.ErrAlreadyExists):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{Message: "同じ内容のリソースがすでに存在します。"})
	case errors.Is(err, application.ErrSessionExpired), errors.Is(err, application.ErrSessionRevoked):
		r.writeJSON(ctx, w, http.StatusUnauthorized, errorResponse{
			ErrorCode: "AUTH_SESSION_EXPIRED",
			Message:   "セッションの有効期限が切れています。再度ログインしてください。",
		})
	default:
		var vErr *application.ValidationError
		if errors.As(err, &vErr) {
			details := localizeValidationErrors(vErr)
			r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
				Message: "入力内容に誤りがあります。",
				Errors:  details,
			})
			return
		}

		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Message: "サーバー内部でエラーが発生しました。"})
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func localizedStatusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "リクエスト内容が正しくありません。"
	case http.StatusUnauthorized:
		return "認証が必要です。"
	case http.StatusForbidden:
		return "この操作を実行する権限がありません。"
	case http.StatusNotFound:
		return "指定されたリソースが見つかりません。"
	case http.StatusConflict:
		return "要求はリソースの現在の状態と競合しています。"
	case http.StatusUnprocessableEntity:
		return "入力内容に誤りがあります。"
	default:
		return "サーバー内部でエラーが発生しました。"
	}
}

func localizeValidationErrors(vErr *application.ValidationError) map[string]string {
	if vErr == nil || len(vErr.FieldErrors) == 0 {
		return nil
	}

	translated := make(map[string]string, len(vErr.FieldErrors))
	for field, msg := range vErr.FieldErrors {
		translated[field] = translateValidationMessage(msg)
	}
	return translated
}

func translateValidationMessage(message string) string {
	switch message {
	case "email is required":
		return "メールアドレスは必須です。"
	case "email is invalid":
		return "メールアドレスの形式が不正です。"
	case "display name is required":
		return "表示名は必須です。"
	case "password must be at least 8 characters":
		return "パスワードは 8 文字以上で指定してください。"
	case "name is required":
		return "会議室名は必須です。"
	case "capacity must be positive":
		return "収容人数は正の整数で指定してください。"
	case "room is required":
		return "会議室を指定してください。"
	case "room does not exist":
		return "指定された会議室は存在しません。"
	case "room is not active":
		return "指定された会議室は現在利用できません。"
	case "title is required":
		return "タイトルは必須です。"
	case "start is required":
		return "開始日時は必須です。"
	case "end is required":
		return "終了日時は必須です。"
	case "start must be before end":
		return "終了日時は開始日時より後である必要があります。"
	case "bookings must be made at least one day in advance":
		return "予約は前日までに行ってください。"
	case "recurrence pattern must be daily, weekly, biweekly or monthly":
		return "繰り返しパターンは daily、weekly、biweekly、monthly のいずれかを指定してください。"
	case "occurrence count must be positive":
		return "繰り返し回数は正の整数で指定してください。"
	case "recurrence end date is required":
		return "繰り返しの終了日は必須です。"
	case "recurrence end must be never, count or end_date":
		return "繰り返しの終了条件は never、count、end_date のいずれかを指定してください。"
	case "status must be approved or rejected":
		return "ステータスは approved または rejected を指定してください。"
	case "only pending reservations can be approved or rejected":
		return "承認待ちの予約のみ承認または却下できます。"
	case "only weekly recurring reservations support single-instance cancellation":
		return "単一回のキャンセルは週次の繰り返し予約のみ対応しています。"
	case "date must be formatted as YYYY-MM-DD":
		return "日付は YYYY-MM-DD 形式で指定してください。"
	default:
		if strings.HasPrefix(message, "invalid attendee address:") {
			return "参加者のメールアドレスが不正です: " + strings.TrimSpace(strings.TrimPrefix(message, "invalid attendee address:"))
		}
		return message
	}
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
}
