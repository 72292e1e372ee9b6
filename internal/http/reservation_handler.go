package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/room-reservation/internal/application"
)

type reservationService interface {
	CreateReservation(ctx context.Context, params application.CreateReservationParams) (application.CreateReservationResult, error)
	CheckAvailability(ctx context.Context, params application.CheckAvailabilityParams) (application.AvailabilityResult, error)
	UpdateStatus(ctx context.Context, principal application.Principal, reservationID, status string) error
	Cancel(ctx context.Context, principal application.Principal, reservationID string) error
	CancelRecurringInstance(ctx context.Context, principal application.Principal, parentID, instanceDate string) error
	ListReservations(ctx context.Context, params application.ListReservationsParams) ([]application.ReservationView, error)
}

type ReservationHandler struct {
	service   reservationService
	responder responder
	logger    *slog.Logger
}

func NewReservationHandler(service reservationService, logger *slog.Logger) *ReservationHandler {
	base := defaultLogger(logger)
	return &ReservationHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *ReservationHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "ReservationHandler", operation, attrs...)
}

func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req reservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Create", "principal_id", principal.UserID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode reservation request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	input, err := req.toInput()
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	logger := h.log(r.Context(), "Create", "principal_id", principal.UserID, "room_id", input.RoomID)

	result, err := h.service.CreateReservation(r.Context(), application.CreateReservationParams{
		Principal: principal,
		Input:     input,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "reservation creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	if !result.Success {
		logger.InfoContext(r.Context(), "reservation rejected by conflict check",
			"conflict_type", result.ConflictType,
			"conflicting_events", len(result.ConflictingEvents),
		)
		h.responder.writeJSON(r.Context(), w, http.StatusConflict, createReservationResponse{
			Success:           false,
			Reason:            result.Reason,
			ConflictType:      result.ConflictType,
			ConflictingEvents: toConflictingEventDTOs(result.ConflictingEvents),
		})
		return
	}

	logger.With("reservation_id", result.Reservation.ID).InfoContext(r.Context(), "reservation created")
	reservation := toReservationDTO(result.Reservation)
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, createReservationResponse{
		Success:     true,
		Reservation: &reservation,
	})
}

func (h *ReservationHandler) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req availabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	start, err := parseRFC3339(req.Start)
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}
	end, err := parseRFC3339(req.End)
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	result, err := h.service.CheckAvailability(r.Context(), application.CheckAvailabilityParams{
		RoomID:               req.RoomID,
		Start:                start,
		End:                  end,
		Tags:                 req.Tags,
		ExcludeReservationID: req.ExcludeReservationID,
	})
	if err != nil {
		h.log(r.Context(), "CheckAvailability", "room_id", req.RoomID).ErrorContext(r.Context(), "availability check failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, availabilityResponse{
		Available:                result.Available,
		Reason:                   result.Reason,
		ConflictingRoomID:        result.ConflictingRoomID,
		ConflictingReservationID: result.ConflictingReservationID,
	})
}

func (h *ReservationHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	params := application.ListReservationsParams{
		Principal: principal,
		RoomID:    strings.TrimSpace(r.URL.Query().Get("room_id")),
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("from")); raw != "" {
		from, err := parseRFC3339(raw)
		if err != nil {
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
			return
		}
		params.WindowStart = from
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("to")); raw != "" {
		to, err := parseRFC3339(raw)
		if err != nil {
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
			return
		}
		params.WindowEnd = to
	}

	logger := h.log(r.Context(), "List", "principal_id", principal.UserID)

	views, err := h.service.ListReservations(r.Context(), params)
	if err != nil {
		logger.ErrorContext(r.Context(), "reservation listing failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, listReservationsResponse{
		Reservations: toReservationViewDTOs(views),
	})
}

func (h *ReservationHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	reservationID, ok := ReservationIDFromContext(r.Context())
	if !ok || strings.TrimSpace(reservationID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidReservationID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "UpdateStatus", "principal_id", principal.UserID, "reservation_id", reservationID, "status", req.Status)

	if err := h.service.UpdateStatus(r.Context(), principal, reservationID, req.Status); err != nil {
		logger.ErrorContext(r.Context(), "status update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "reservation status updated")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *ReservationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	reservationID, ok := ReservationIDFromContext(r.Context())
	if !ok || strings.TrimSpace(reservationID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidReservationID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Cancel", "principal_id", principal.UserID, "reservation_id", reservationID)

	if err := h.service.Cancel(r.Context(), principal, reservationID); err != nil {
		logger.ErrorContext(r.Context(), "reservation cancellation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "reservation cancelled")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// CancelInstance cancels a single occurrence of a weekly recurring
// reservation, identified by its calendar date.
func (h *ReservationHandler) CancelInstance(w http.ResponseWriter, r *http.Request, instanceDate string) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	reservationID, ok := ReservationIDFromContext(r.Context())
	if !ok || strings.TrimSpace(reservationID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidReservationID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "CancelInstance", "principal_id", principal.UserID, "reservation_id", reservationID, "date", instanceDate)

	if err := h.service.CancelRecurringInstance(r.Context(), principal, reservationID, instanceDate); err != nil {
		logger.ErrorContext(r.Context(), "instance cancellation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "reservation instance cancelled")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

type reservationRequest struct {
	RoomID            string   `json:"room_id"`
	Title             string   `json:"title"`
	Description       *string  `json:"description,omitempty"`
	Start             string   `json:"start"`
	End               string   `json:"end"`
	Tags              []string `json:"tags,omitempty"`
	Attendees         []string `json:"attendees,omitempty"`
	CateringRequested bool     `json:"catering_requested"`
	IsRecurring       bool     `json:"is_recurring"`
	RecurrencePattern string   `json:"recurrence_pattern,omitempty"`
	RecurrenceEndType string   `json:"recurrence_end_type,omitempty"`
	RecurrenceCount   int      `json:"recurrence_count,omitempty"`
	RecurrenceEndDate string   `json:"recurrence_end_date,omitempty"`
}

func (req reservationRequest) toInput() (application.ReservationInput, error) {
	start, err := parseRFC3339(req.Start)
	if err != nil {
		return application.ReservationInput{}, err
	}
	end, err := parseRFC3339(req.End)
	if err != nil {
		return application.ReservationInput{}, err
	}

	var description string
	if req.Description != nil {
		description = *req.Description
	}
	input := application.ReservationInput{
		RoomID:            req.RoomID,
		Title:             req.Title,
		Description:       description,
		Start:             start,
		End:               end,
		Tags:              req.Tags,
		Attendees:         req.Attendees,
		CateringRequested: req.CateringRequested,
		IsRecurring:       req.IsRecurring,
		RecurrencePattern: req.RecurrencePattern,
		RecurrenceEndType: req.RecurrenceEndType,
		RecurrenceCount:   req.RecurrenceCount,
	}
	if req.RecurrenceEndDate != "" {
		endDate, err := parseRFC3339(req.RecurrenceEndDate)
		if err != nil {
			return application.ReservationInput{}, err
		}
		input.RecurrenceEndDate = endDate
	}
	return input, nil
}

type availabilityRequest struct {
	RoomID               string   `json:"room_id"`
	Start                string   `json:"start"`
	End                  string   `json:"end"`
	Tags                 []string `json:"tags,omitempty"`
	ExcludeReservationID string   `json:"exclude_reservation_id,omitempty"`
}

type availabilityResponse struct {
	Available                bool   `json:"available"`
	Reason                   string `json:"reason,omitempty"`
	ConflictingRoomID        string `json:"conflicting_room_id,omitempty"`
	ConflictingReservationID string `json:"conflicting_reservation_id,omitempty"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type createReservationResponse struct {
	Success           bool                  `json:"success"`
	Reservation       *reservationDTO       `json:"reservation,omitempty"`
	Reason            string                `json:"reason,omitempty"`
	ConflictType      string                `json:"conflict_type,omitempty"`
	ConflictingEvents []conflictingEventDTO `json:"conflicting_events,omitempty"`
}

type listReservationsResponse struct {
	Reservations []reservationViewDTO `json:"reservations"`
}

type reservationDTO struct {
	ID                string   `json:"id"`
	RoomID            string   `json:"room_id"`
	UserID            string   `json:"user_id"`
	Title             string   `json:"title"`
	Description       string   `json:"description,omitempty"`
	Start             string   `json:"start"`
	End               string   `json:"end"`
	Status            string   `json:"status"`
	Tags              []string `json:"tags,omitempty"`
	Attendees         []string `json:"attendees,omitempty"`
	CateringRequested bool     `json:"catering_requested"`
	IsRecurring       bool     `json:"is_recurring"`
	RecurrencePattern string   `json:"recurrence_pattern,omitempty"`
	RecurrenceEndType string   `json:"recurrence_end_type,omitempty"`
	RecurrenceCount   int      `json:"recurrence_count,omitempty"`
	RecurrenceEndDate string   `json:"recurrence_end_date,omitempty"`
	ParentID          string   `json:"parent_id,omitempty"`
	CreatedAt         string   `json:"created_at"`
	UpdatedAt         string   `json:"updated_at"`
}

type occurrenceDTO struct {
	Index int    `json:"index"`
	Start string `json:"start"`
	End   string `json:"end"`
}

type reservationViewDTO struct {
	Reservation reservationDTO  `json:"reservation"`
	Occurrences []occurrenceDTO `json:"occurrences,omitempty"`
}

type conflictingEventDTO struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	RoomID   string `json:"room_id"`
	RoomName string `json:"room_name"`
	OwnerID  string `json:"owner_id"`
	Start    string `json:"start"`
	End      string `json:"end"`
}

func toReservationDTO(reservation application.Reservation) reservationDTO {
	dto := reservationDTO{
		ID:                reservation.ID,
		RoomID:            reservation.RoomID,
		UserID:            reservation.UserID,
		Title:             reservation.Title,
		Description:       reservation.Description,
		Start:             formatRFC3339(reservation.Start),
		End:               formatRFC3339(reservation.End),
		Status:            reservation.Status,
		Tags:              reservation.Tags,
		Attendees:         reservation.Attendees,
		CateringRequested: reservation.CateringRequested,
		IsRecurring:       reservation.IsRecurring,
		RecurrencePattern: reservation.RecurrencePattern,
		RecurrenceEndType: reservation.RecurrenceEndType,
		RecurrenceCount:   reservation.RecurrenceCount,
		CreatedAt:         formatRFC3339(reservation.CreatedAt),
		UpdatedAt:         formatRFC3339(reservation.UpdatedAt),
	}
	if reservation.RecurrenceEndDate != nil {
		dto.RecurrenceEndDate = formatRFC3339(*reservation.RecurrenceEndDate)
	}
	if reservation.ParentID != nil {
		dto.ParentID = *reservation.ParentID
	}
	return dto
}

func toReservationViewDTOs(views []application.ReservationView) []reservationViewDTO {
	if len(views) == 0 {
		return nil
	}
	out := make([]reservationViewDTO, 0, len(views))
	for _, view := range views {
		dto := reservationViewDTO{Reservation: toReservationDTO(view.Reservation)}
		for _, occurrence := range view.Occurrences {
			dto.Occurrences = append(dto.Occurrences, occurrenceDTO{
				Index: occurrence.Ref.Index,
				Start: formatRFC3339(occurrence.Start),
				End:   formatRFC3339(occurrence.End),
			})
		}
		out = append(out, dto)
	}
	return out
}

func toConflictingEventDTOs(events []application.ConflictingEvent) []conflictingEventDTO {
	if len(events) == 0 {
		return nil
	}
	out := make([]conflictingEventDTO, 0, len(events))
	for _, event := range events {
		out = append(out, conflictingEventDTO{
			ID:       event.ID,
			Title:    event.Title,
			RoomID:   event.RoomID,
			RoomName: event.RoomName,
			OwnerID:  event.OwnerID,
			Start:    formatRFC3339(event.Start),
			End:      formatRFC3339(event.End),
		})
	}
	return out
}

func parseRFC3339(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, errors.New("日時は RFC3339 形式で指定してください。")
	}
	t, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return time.Time{}, errors.New("日時は RFC3339 形式で指定してください。")
	}
	return t, nil
}

func formatRFC3339(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
