package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/tcriess/lightspeed-code/room"
	"github.com/tcriess/lightspeed-code/types"
)

// messageWindowSize caps the persisted chat window returned for rooms
// without a running hub, matching the hub's in-memory default.
const messageWindowSize = 20

type createRoomRequest struct {
	Name string `json:"name" validate:"required,min=1,max=128"`
}

func (h *Handler) createRoom(w http.ResponseWriter, r *http.Request) {
	req := createRoomRequest{}
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	rm, err := h.directory.CreateRoom(req.Name, requestUser(r))
	if err != nil {
		if errors.Is(err, room.ErrNameTaken) {
			writeError(w, http.StatusConflict, err)
		} else {
			writeError(w, http.StatusInternalServerError, err)
		}
		return
	}
	writeJSON(w, http.StatusCreated, rm)
}

func (h *Handler) getRoom(w http.ResponseWriter, r *http.Request) {
	rm := h.resolveRoom(w, r)
	if rm == nil {
		return
	}
	writeJSON(w, http.StatusOK, rm)
}

// listRooms returns the requesting user's recently visited rooms, most
// recent first.
func (h *Handler) listRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.directory.ListRoomsForUser(requestUser(r).Id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, rooms)
}

// listAllRooms returns every room in the directory, not just the visited
// ones.
func (h *Handler) listAllRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.directory.ListRooms()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, rooms)
}

// joinRoom records the visit in the user's room history and marks the room
// active. The live join happens on the websocket upgrade, this endpoint is
// what clients call to verify the room before connecting.
func (h *Handler) joinRoom(w http.ResponseWriter, r *http.Request) {
	rm := h.resolveRoom(w, r)
	if rm == nil {
		return
	}
	if err := h.directory.RecordVisit(requestUser(r).Id, rm.Id); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if err := h.directory.Touch(rm.Id); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if updated, err := h.directory.ResolveRoom(rm.Id); err == nil {
		rm = updated
	}
	writeJSON(w, http.StatusOK, rm)
}

// roomUsers returns the active users of the room, the requesting user
// first. A room without a running hub has no active users.
func (h *Handler) roomUsers(w http.ResponseWriter, r *http.Request) {
	rm := h.resolveRoom(w, r)
	if rm == nil {
		return
	}
	activeUsers := []string{}
	if hub := h.hubs.PeekHub(rm.Id); hub != nil {
		activeUsers = hub.Presence.ListActive(requestUser(r).Id)
	}
	writeJSON(w, http.StatusOK, map[string][]string{
		"active_users": activeUsers,
	})
}

type createMessageRequest struct {
	Content string `json:"content" validate:"required,max=4096"`
	Filter  string `json:"filter"`
}

// createMessage persists a chat message and broadcasts it to the room's
// connected sessions.
func (h *Handler) createMessage(w http.ResponseWriter, r *http.Request) {
	rm := h.resolveRoom(w, r)
	if rm == nil {
		return
	}
	req := createMessageRequest{}
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	user := requestUser(r)
	event, err := types.NewEvent(rm, user, req.Filter, types.EventNameChat, types.ChatPayload{
		Content:  req.Content,
		Username: user.Name,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	hub := h.hubs.GetHub(rm)
	hub.BroadcastEvents <- []*types.Event{event}
	writeJSON(w, http.StatusCreated, event)
}

// listMessages returns the room's recent chat window: the live hub's ring
// buffer when the room is running, the persisted window otherwise (no hub
// is started for a mere read).
func (h *Handler) listMessages(w http.ResponseWriter, r *http.Request) {
	rm := h.resolveRoom(w, r)
	if rm == nil {
		return
	}
	if hub := h.hubs.PeekHub(rm.Id); hub != nil {
		writeJSON(w, http.StatusOK, hub.GetHistory())
		return
	}
	var fromTs time.Time
	events, err := h.persister.GetEventHistory(rm.Id, fromTs, time.Now().Add(time.Minute), 0, messageWindowSize)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}
