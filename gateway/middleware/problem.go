package middleware

import (
	"encoding/json"
	"net/http"
)

// Problem is the error body every gateway response shares.
type Problem struct {
	Error ProblemDetail `json:"error"`
}

type ProblemDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteProblem writes a JSON error body with the given status.
func WriteProblem(w http.ResponseWriter, status int, code, message string) {
	writeProblem(w, status, code, message)
}

func writeProblem(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Problem{Error: ProblemDetail{Code: code, Message: message}})
}
