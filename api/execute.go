package api

import (
	"errors"
	"net/http"

	"github.com/tcriess/lightspeed-code/runner"
)

type executeRequest struct {
	Language string `json:"language" validate:"required"`
	Version  string `json:"version"`
	Source   string `json:"source" validate:"required"`
	Stdin    string `json:"stdin"`
}

// execute runs code on the remote sandbox on behalf of the requesting
// session. A timed-out or failing program is a successful request, the
// outcome lands in the result body.
func (h *Handler) execute(w http.ResponseWriter, r *http.Request) {
	req := executeRequest{}
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	res, err := h.runner.Execute(r.Context(), req.Language, req.Version, req.Source, req.Stdin)
	if err != nil {
		switch {
		case errors.Is(err, runner.ErrExecutionTimeout):
			writeJSON(w, http.StatusOK, runner.Result{
				Stderr:   "execution timed out",
				ExitCode: -1,
			})
		case errors.Is(err, runner.ErrUnsupportedLanguage):
			writeError(w, http.StatusBadRequest, err)
		default:
			writeError(w, http.StatusBadGateway, err)
		}
		return
	}
	writeJSON(w, http.StatusOK, res)
}
