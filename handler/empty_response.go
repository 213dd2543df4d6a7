package handler

import "net/http"

type emptyResponse struct {
	status int
}

func (e emptyResponse) Render(w http.ResponseWriter, _ *http.Request) error {
	w.WriteHeader(e.status)
	return nil
}

// NoContent renders 204 with no body.
func NoContent() Response {
	return emptyResponse{status: http.StatusNoContent}
}

// Status renders the given status with no body.
func Status(code int) Response {
	return emptyResponse{status: code}
}
