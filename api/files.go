package api

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/tcriess/lightspeed-code/persistence"
	"github.com/tcriess/lightspeed-code/types"
)

type saveFileRequest struct {
	Name     string `json:"name" validate:"required,min=1,max=255"`
	Content  string `json:"content"`
	Language string `json:"language"`
}

// saveFile upserts a file snapshot by (room, name). A new name creates the
// file with the requester as author, an existing name overwrites content
// and language while id and author are preserved.
func (h *Handler) saveFile(w http.ResponseWriter, r *http.Request) {
	rm := h.resolveRoom(w, r)
	if rm == nil {
		return
	}
	req := saveFileRequest{}
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	file := &types.File{
		Id:       uuid.NewString(),
		RoomId:   rm.Id,
		Name:     req.Name,
		Content:  req.Content,
		Language: req.Language,
		AuthorId: requestUser(r).Id,
	}
	if err := h.persister.StoreFile(file); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, file)
}

func (h *Handler) listFiles(w http.ResponseWriter, r *http.Request) {
	rm := h.resolveRoom(w, r)
	if rm == nil {
		return
	}
	files, err := h.persister.GetRoomFiles(rm.Id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, files)
}

func (h *Handler) getFile(w http.ResponseWriter, r *http.Request) {
	if h.resolveRoom(w, r) == nil {
		return
	}
	file := &types.File{Id: mux.Vars(r)["fileId"]}
	if err := h.persister.GetFile(file); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			writeError(w, http.StatusNotFound, err)
		} else {
			writeError(w, http.StatusInternalServerError, err)
		}
		return
	}
	writeJSON(w, http.StatusOK, file)
}

// deleteFile removes a file snapshot. Only the file's author may delete it.
func (h *Handler) deleteFile(w http.ResponseWriter, r *http.Request) {
	if h.resolveRoom(w, r) == nil {
		return
	}
	file := &types.File{Id: mux.Vars(r)["fileId"]}
	if err := h.persister.GetFile(file); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			writeError(w, http.StatusNotFound, err)
		} else {
			writeError(w, http.StatusInternalServerError, err)
		}
		return
	}
	if file.AuthorId != requestUser(r).Id {
		writeError(w, http.StatusForbidden, errors.New("only the author may delete a file"))
		return
	}
	if err := h.persister.DeleteFile(file); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
