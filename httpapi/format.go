package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/vmihailenco/msgpack/v5"
)

type errorResponse struct {
	Error string `json:"error" msgpack:"error"`
}

// writeResponse encodes data as JSON, or as MessagePack with ?format=msgpack
func writeResponse(w http.ResponseWriter, req *http.Request, status int, data any) error {
	w.Header().Set("Access-Control-Allow-Origin", "*")

	if req.URL.Query().Get("format") == "msgpack" {
		body, err := msgpack.Marshal(data)
		if err != nil {
			return err
		}
		w.Header().Set("Content-Type", "application/msgpack")
		w.WriteHeader(status)
		_, err = w.Write(body)
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, req *http.Request, status int, err error) error {
	return writeResponse(w, req, status, errorResponse{Error: err.Error()})
}
