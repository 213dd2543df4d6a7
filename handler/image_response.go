package handler

import (
	"net/http"
	"strconv"
)

type imageResponse struct {
	contentType string
	data        []byte
}

func (i imageResponse) Render(w http.ResponseWriter, _ *http.Request) error {
	w.Header().Set("Content-Type", i.contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(i.data)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, err := w.Write(i.data)
	return err
}

// PNG renders raw PNG bytes. Responses are never cached.
func PNG(data []byte) Response {
	return imageResponse{contentType: "image/png", data: data}
}
