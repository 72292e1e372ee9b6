package main

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/example/room-reservation/internal/application"
	"github.com/example/room-reservation/internal/config"
	httptransport "github.com/example/room-reservation/internal/http"
	"github.com/example/room-reservation/internal/notify"
	"github.com/example/room-reservation/internal/persistence"
	"github.com/example/room-reservation/internal/persistence/sqlite"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	pool, err := sqlite.Open(sqlite.Config{Path: cfg.SQLitePath})
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := pool.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	if err := sqlite.Migrate(context.Background(), pool); err != nil {
		logger.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	idGenerator := uuid.NewString
	tokenGenerator := func() string { return signedToken(cfg.SessionSecret) }
	now := time.Now

	reservationRepo := newReservationRepositoryAdapter(sqlite.NewReservationRepository(pool), now)
	roomRepo := newRoomRepositoryAdapter(sqlite.NewRoomRepository(pool))
	userRepo := newUserRepositoryAdapter(sqlite.NewUserRepository(pool), now)
	sessionRepo := newSessionRepositoryAdapter(sqlite.NewSessionRepository(pool))
	credentialStore := newCredentialStoreAdapter(sqlite.NewUserRepository(pool))

	var notifier application.Notifier
	if cfg.AMQPURL != "" {
		notifier = notify.NewPublisher(cfg.AMQPURL, now, logger)
	} else {
		notifier = notify.NewLogNotifier(logger)
	}

	reservationService := application.NewReservationServiceWithLogger(reservationRepo, roomRepo, notifier, cfg.CombinedRooms, idGenerator, now, logger)
	roomService := application.NewRoomServiceWithLogger(roomRepo, idGenerator, now, logger)
	userService := application.NewUserService(userRepo, nil, idGenerator, now)
	authService := application.NewAuthServiceWithLogger(credentialStore, sessionRepo, nil, tokenGenerator, now, cfg.SessionTTL, logger)

	authHandler := httptransport.NewAuthHandler(authService, logger)
	userHandler := httptransport.NewUserHandler(userService, logger)
	roomHandler := httptransport.NewRoomHandler(roomService, logger)
	reservationHandler := httptransport.NewReservationHandler(reservationService, logger)

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Auth:         authHandler,
		Users:        userHandler,
		Rooms:        roomHandler,
		Reservations: reservationHandler,
	})

	// Session issuance is the only route reachable without a session.
	protected := httptransport.RequireSession(authService, logger)(router)
	handler := httptransport.RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/sessions" && r.Method == http.MethodPost {
			router.ServeHTTP(w, r)
			return
		}
		protected.ServeHTTP(w, r)
	}))

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("reservation API listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}
}

// signedToken issues an opaque session token of random bytes authenticated
// with the configured session secret.
func signedToken(secret string) string {
	buf := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return fmt.Sprintf("fallback-%d", time.Now().UnixNano())
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(buf)
	return hex.EncodeToString(buf) + "." + hex.EncodeToString(mac.Sum(nil))
}

// mapPersistenceError translates storage sentinels into the sentinels the
// application layer branches on.
func mapPersistenceError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return application.ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return application.ErrAlreadyExists
	default:
		return err
	}
}

type reservationRepositoryAdapter struct {
	repo persistence.ReservationRepository
	now  func() time.Time
}

func newReservationRepositoryAdapter(repo persistence.ReservationRepository, now func() time.Time) *reservationRepositoryAdapter {
	if now == nil {
		now = time.Now
	}
	return &reservationRepositoryAdapter{repo: repo, now: now}
}

func (a *reservationRepositoryAdapter) CreateReservation(ctx context.Context, reservation application.Reservation) (application.Reservation, error) {
	if err := a.repo.CreateReservation(ctx, toPersistenceReservation(reservation)); err != nil {
		return application.Reservation{}, mapPersistenceError(err)
	}
	stored, err := a.repo.GetReservation(ctx, reservation.ID)
	if err != nil {
		return application.Reservation{}, mapPersistenceError(err)
	}
	return toApplicationReservation(stored), nil
}

func (a *reservationRepositoryAdapter) GetReservation(ctx context.Context, id string) (application.Reservation, error) {
	stored, err := a.repo.GetReservation(ctx, id)
	if err != nil {
		return application.Reservation{}, mapPersistenceError(err)
	}
	return toApplicationReservation(stored), nil
}

func (a *reservationRepositoryAdapter) UpdateReservationStatus(ctx context.Context, id, status string) (application.Reservation, error) {
	if err := a.repo.UpdateReservationStatus(ctx, id, status, a.now().UTC()); err != nil {
		return application.Reservation{}, mapPersistenceError(err)
	}
	stored, err := a.repo.GetReservation(ctx, id)
	if err != nil {
		return application.Reservation{}, mapPersistenceError(err)
	}
	return toApplicationReservation(stored), nil
}

func (a *reservationRepositoryAdapter) ListReservations(ctx context.Context, query application.ReservationQuery) ([]application.Reservation, error) {
	filter := persistence.ReservationFilter{
		RoomID:       cloneString(query.RoomID),
		Statuses:     append([]string(nil), query.Statuses...),
		OverlapStart: cloneTime(query.OverlapStart),
		OverlapEnd:   cloneTime(query.OverlapEnd),
		AnyTags:      append([]string(nil), query.AnyTags...),
		ExcludeTags:  append([]string(nil), query.ExcludeTags...),
		IsRecurring:  query.IsRecurring,
		ParentID:     cloneString(query.ParentID),
		ExactStart:   cloneTime(query.ExactStart),
		ExactEnd:     cloneTime(query.ExactEnd),
	}
	models, err := a.repo.ListReservations(ctx, filter)
	if err != nil {
		return nil, mapPersistenceError(err)
	}
	if len(models) == 0 {
		return nil, nil
	}
	reservations := make([]application.Reservation, 0, len(models))
	for _, model := range models {
		reservations = append(reservations, toApplicationReservation(model))
	}
	return reservations, nil
}

type roomRepositoryAdapter struct {
	repo persistence.RoomRepository
}

func newRoomRepositoryAdapter(repo persistence.RoomRepository) *roomRepositoryAdapter {
	return &roomRepositoryAdapter{repo: repo}
}

func (a *roomRepositoryAdapter) CreateRoom(ctx context.Context, room application.Room) (application.Room, error) {
	if err := a.repo.CreateRoom(ctx, toPersistenceRoom(room)); err != nil {
		return application.Room{}, mapPersistenceError(err)
	}
	return a.GetRoom(ctx, room.ID)
}

func (a *roomRepositoryAdapter) GetRoom(ctx context.Context, id string) (application.Room, error) {
	stored, err := a.repo.GetRoom(ctx, id)
	if err != nil {
		return application.Room{}, mapPersistenceError(err)
	}
	return toApplicationRoom(stored), nil
}

func (a *roomRepositoryAdapter) GetRoomByName(ctx context.Context, name string) (application.Room, error) {
	stored, err := a.repo.GetRoomByName(ctx, name)
	if err != nil {
		return application.Room{}, mapPersistenceError(err)
	}
	return toApplicationRoom(stored), nil
}

func (a *roomRepositoryAdapter) UpdateRoom(ctx context.Context, room application.Room) (application.Room, error) {
	if err := a.repo.UpdateRoom(ctx, toPersistenceRoom(room)); err != nil {
		return application.Room{}, mapPersistenceError(err)
	}
	return a.GetRoom(ctx, room.ID)
}

func (a *roomRepositoryAdapter) ListRooms(ctx context.Context) ([]application.Room, error) {
	models, err := a.repo.ListRooms(ctx)
	if err != nil {
		return nil, mapPersistenceError(err)
	}
	if len(models) == 0 {
		return nil, nil
	}
	rooms := make([]application.Room, 0, len(models))
	for _, model := range models {
		rooms = append(rooms, toApplicationRoom(model))
	}
	return rooms, nil
}

type userRepositoryAdapter struct {
	repo persistence.UserRepository
	now  func() time.Time
}

func newUserRepositoryAdapter(repo persistence.UserRepository, now func() time.Time) *userRepositoryAdapter {
	if now == nil {
		now = time.Now
	}
	return &userRepositoryAdapter{repo: repo, now: now}
}

func (a *userRepositoryAdapter) CreateUser(ctx context.Context, credentials application.UserCredentials) (application.User, error) {
	if err := a.repo.CreateUser(ctx, toPersistenceUser(credentials.User, credentials.PasswordHash)); err != nil {
		return application.User{}, mapPersistenceError(err)
	}
	return a.GetUser(ctx, credentials.User.ID)
}

func (a *userRepositoryAdapter) GetUser(ctx context.Context, id string) (application.User, error) {
	stored, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return application.User{}, mapPersistenceError(err)
	}
	return toApplicationUser(stored), nil
}

func (a *userRepositoryAdapter) UpdateUser(ctx context.Context, user application.User) (application.User, error) {
	current, err := a.repo.GetUser(ctx, user.ID)
	if err != nil {
		return application.User{}, mapPersistenceError(err)
	}
	if err := a.repo.UpdateUser(ctx, toPersistenceUser(user, current.PasswordHash)); err != nil {
		return application.User{}, mapPersistenceError(err)
	}
	return a.GetUser(ctx, user.ID)
}

func (a *userRepositoryAdapter) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return mapPersistenceError(a.repo.UpdatePassword(ctx, id, passwordHash, a.now().UTC()))
}

func (a *userRepositoryAdapter) ListUsers(ctx context.Context) ([]application.User, error) {
	models, err := a.repo.ListUsers(ctx)
	if err != nil {
		return nil, mapPersistenceError(err)
	}
	if len(models) == 0 {
		return nil, nil
	}
	users := make([]application.User, 0, len(models))
	for _, model := range models {
		users = append(users, toApplicationUser(model))
	}
	return users, nil
}

type credentialStoreAdapter struct {
	repo persistence.UserRepository
}

func newCredentialStoreAdapter(repo persistence.UserRepository) *credentialStoreAdapter {
	return &credentialStoreAdapter{repo: repo}
}

func (a *credentialStoreAdapter) GetUserCredentialsByEmail(ctx context.Context, email string) (application.UserCredentials, error) {
	stored, err := a.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return application.UserCredentials{}, mapPersistenceError(err)
	}
	return application.UserCredentials{
		User:         toApplicationUser(stored),
		PasswordHash: stored.PasswordHash,
	}, nil
}

func (a *credentialStoreAdapter) GetUser(ctx context.Context, id string) (application.User, error) {
	stored, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return application.User{}, mapPersistenceError(err)
	}
	return toApplicationUser(stored), nil
}

type sessionRepositoryAdapter struct {
	repo persistence.SessionRepository
}

func newSessionRepositoryAdapter(repo persistence.SessionRepository) *sessionRepositoryAdapter {
	return &sessionRepositoryAdapter{repo: repo}
}

func (a *sessionRepositoryAdapter) CreateSession(ctx context.Context, session application.Session) (application.Session, error) {
	if err := a.repo.CreateSession(ctx, toPersistenceSession(session)); err != nil {
		return application.Session{}, mapPersistenceError(err)
	}
	return a.GetSession(ctx, session.Token)
}

func (a *sessionRepositoryAdapter) GetSession(ctx context.Context, token string) (application.Session, error) {
	stored, err := a.repo.GetSession(ctx, token)
	if err != nil {
		return application.Session{}, mapPersistenceError(err)
	}
	return toApplicationSession(stored), nil
}

func (a *sessionRepositoryAdapter) UpdateSession(ctx context.Context, session application.Session) (application.Session, error) {
	if err := a.repo.UpdateSession(ctx, toPersistenceSession(session)); err != nil {
		return application.Session{}, mapPersistenceError(err)
	}
	return a.GetSession(ctx, session.Token)
}

func (a *sessionRepositoryAdapter) RevokeSession(ctx context.Context, token string, revokedAt time.Time) (application.Session, error) {
	if err := a.repo.RevokeSession(ctx, token, revokedAt); err != nil {
		return application.Session{}, mapPersistenceError(err)
	}
	return a.GetSession(ctx, token)
}

func (a *sessionRepositoryAdapter) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	return mapPersistenceError(a.repo.DeleteExpiredSessions(ctx, reference))
}

func toApplicationUser(model persistence.User) application.User {
	return application.User{
		ID:          model.ID,
		Email:       model.Email,
		DisplayName: model.DisplayName,
		IsAdmin:     model.IsAdmin,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

func toPersistenceUser(user application.User, passwordHash string) persistence.User {
	return persistence.User{
		ID:           user.ID,
		Email:        user.Email,
		DisplayName:  user.DisplayName,
		PasswordHash: passwordHash,
		IsAdmin:      user.IsAdmin,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}
}

func toApplicationRoom(model persistence.Room) application.Room {
	return application.Room{
		ID:        model.ID,
		Name:      model.Name,
		Capacity:  model.Capacity,
		Features:  cloneString(model.Features),
		Active:    model.Active,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}

func toPersistenceRoom(room application.Room) persistence.Room {
	return persistence.Room{
		ID:        room.ID,
		Name:      room.Name,
		Capacity:  room.Capacity,
		Features:  cloneString(room.Features),
		Active:    room.Active,
		CreatedAt: room.CreatedAt,
		UpdatedAt: room.UpdatedAt,
	}
}

func toApplicationReservation(model persistence.Reservation) application.Reservation {
	reservation := application.Reservation{
		ID:                model.ID,
		RoomID:            model.RoomID,
		UserID:            model.UserID,
		Title:             model.Title,
		Start:             model.Start,
		End:               model.End,
		Status:            model.Status,
		Tags:              append([]string(nil), model.Tags...),
		Attendees:         append([]string(nil), model.Attendees...),
		CateringRequested: model.CateringRequested,
		IsRecurring:       model.IsRecurring,
		RecurrenceEndDate: cloneTime(model.RecurrenceEndDate),
		ParentID:          cloneString(model.ParentID),
		CreatedAt:         model.CreatedAt,
		UpdatedAt:         model.UpdatedAt,
	}
	if model.Description != nil {
		reservation.Description = *model.Description
	}
	if model.RecurrencePattern != nil {
		reservation.RecurrencePattern = *model.RecurrencePattern
	}
	if model.RecurrenceEndType != nil {
		reservation.RecurrenceEndType = *model.RecurrenceEndType
	}
	if model.RecurrenceCount != nil {
		reservation.RecurrenceCount = *model.RecurrenceCount
	}
	return reservation
}

func toPersistenceReservation(reservation application.Reservation) persistence.Reservation {
	model := persistence.Reservation{
		ID:                reservation.ID,
		RoomID:            reservation.RoomID,
		UserID:            reservation.UserID,
		Title:             reservation.Title,
		Start:             reservation.Start,
		End:               reservation.End,
		Status:            reservation.Status,
		Tags:              append([]string(nil), reservation.Tags...),
		Attendees:         append([]string(nil), reservation.Attendees...),
		CateringRequested: reservation.CateringRequested,
		IsRecurring:       reservation.IsRecurring,
		RecurrenceEndDate: cloneTime(reservation.RecurrenceEndDate),
		ParentID:          cloneString(reservation.ParentID),
		CreatedAt:         reservation.CreatedAt,
		UpdatedAt:         reservation.UpdatedAt,
	}
	if reservation.Description != "" {
		description := reservation.Description
		model.Description = &description
	}
	if reservation.RecurrencePattern != "" {
		pattern := reservation.RecurrencePattern
		model.RecurrencePattern = &pattern
	}
	if reservation.RecurrenceEndType != "" {
		endType := reservation.RecurrenceEndType
		model.RecurrenceEndType = &endType
	}
	if reservation.RecurrenceCount > 0 {
		count := reservation.RecurrenceCount
		model.RecurrenceCount = &count
	}
	return model
}

func toApplicationSession(model persistence.Session) application.Session {
	return application.Session{
		ID:        model.ID,
		UserID:    model.UserID,
		Token:     model.Token,
		ExpiresAt: model.ExpiresAt,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
		RevokedAt: cloneTime(model.RevokedAt),
	}
}

func toPersistenceSession(session application.Session) persistence.Session {
	return persistence.Session{
		ID:        session.ID,
		UserID:    session.UserID,
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		CreatedAt: session.CreatedAt,
		UpdatedAt: session.UpdatedAt,
		RevokedAt: cloneTime(session.RevokedAt),
	}
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}
