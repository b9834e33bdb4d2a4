package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/tcriess/lightspeed-code/auth"
	"github.com/tcriess/lightspeed-code/globals"
	"github.com/tcriess/lightspeed-code/persistence"
	"github.com/tcriess/lightspeed-code/room"
	"github.com/tcriess/lightspeed-code/runner"
	"github.com/tcriess/lightspeed-code/types"
	"github.com/tcriess/lightspeed-code/ws"
)

type contextKey string

const userContextKey contextKey = "user"

// HubProvider hands out the live hub of a room, so REST-created messages
// reach connected sessions. GetHub creates the hub if necessary, PeekHub
// returns nil for rooms with no running hub (read-only callers must not
// start one).
type HubProvider interface {
	GetHub(room *types.Room) *ws.Hub
	PeekHub(roomId string) *ws.Hub
}

// Handler carries the REST surface: account management, room lifecycle,
// file snapshots, message history and remote code execution.
type Handler struct {
	guard     *auth.Guard
	directory *room.Directory
	persister persistence.Persister
	runner    *runner.Runner
	hubs      HubProvider
	validate  *validator.Validate
}

func NewHandler(guard *auth.Guard, directory *room.Directory, persister persistence.Persister, run *runner.Runner, hubs HubProvider) *Handler {
	return &Handler{
		guard:     guard,
		directory: directory,
		persister: persister,
		runner:    run,
		hubs:      hubs,
		validate:  validator.New(),
	}
}

// AddRoutes registers all REST routes on the router.
func (h *Handler) AddRoutes(router *mux.Router) {
	router.HandleFunc("/api/auth/signup", h.signup).Methods(http.MethodPost)
	router.HandleFunc("/api/auth/signin", h.signin).Methods(http.MethodPost)

	authed := router.PathPrefix("/api").Subrouter()
	authed.Use(h.authMiddleware)
	authed.HandleFunc("/rooms", h.listRooms).Methods(http.MethodGet)
	authed.HandleFunc("/rooms", h.createRoom).Methods(http.MethodPost)
	authed.HandleFunc("/rooms/all", h.listAllRooms).Methods(http.MethodGet)
	authed.HandleFunc("/rooms/{roomId}", h.getRoom).Methods(http.MethodGet)
	authed.HandleFunc("/rooms/{roomId}/join", h.joinRoom).Methods(http.MethodPost)
	authed.HandleFunc("/rooms/{roomId}/users", h.roomUsers).Methods(http.MethodGet)
	authed.HandleFunc("/rooms/{roomId}/files", h.listFiles).Methods(http.MethodGet)
	authed.HandleFunc("/rooms/{roomId}/files", h.saveFile).Methods(http.MethodPut)
	authed.HandleFunc("/rooms/{roomId}/files/{fileId}", h.getFile).Methods(http.MethodGet)
	authed.HandleFunc("/rooms/{roomId}/files/{fileId}", h.deleteFile).Methods(http.MethodDelete)
	authed.HandleFunc("/rooms/{roomId}/messages", h.listMessages).Methods(http.MethodGet)
	authed.HandleFunc("/rooms/{roomId}/messages", h.createMessage).Methods(http.MethodPost)
	authed.HandleFunc("/execute", h.execute).Methods(http.MethodPost)
}

// authMiddleware resolves the bearer token to a user and stores it in the
// request context.
func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		userId, err := h.guard.ValidateToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, auth.ErrUnauthorized)
			return
		}
		user := &types.User{Id: userId}
		if err := h.persister.GetUser(user); err != nil {
			writeError(w, http.StatusUnauthorized, auth.ErrUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestUser(r *http.Request) *types.User {
	user, _ := r.Context().Value(userContextKey).(*types.User)
	return user
}

// decode unmarshals and validates a JSON request body.
func (h *Handler) decode(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return err
	}
	return h.validate.Struct(dst)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		globals.AppLogger.Error("could not encode response", "error", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// resolveRoom maps directory errors to http status codes.
func (h *Handler) resolveRoom(w http.ResponseWriter, r *http.Request) *types.Room {
	roomId := mux.Vars(r)["roomId"]
	rm, err := h.directory.ResolveRoom(roomId)
	if err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			writeError(w, http.StatusNotFound, err)
		} else {
			writeError(w, http.StatusInternalServerError, err)
		}
		return nil
	}
	return rm
}
