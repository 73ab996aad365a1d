package server

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Problem is an RFC 7807 error body.
type Problem struct {
	Status int    `json:"status"`
	Title  string `json:"title"`
	Detail string `json:"detail,omitempty"`
}

func (p *Problem) Error() string {
	if p.Detail == "" {
		return p.Title
	}
	return p.Title + ": " + p.Detail
}

func ErrBadRequest(detail string) *Problem {
	return &Problem{Status: http.StatusBadRequest, Title: "Bad Request", Detail: detail}
}
func ErrNotFound(detail string) *Problem {
	return &Problem{Status: http.StatusNotFound, Title: "Not Found", Detail: detail}
}
func ErrInternal(detail string) *Problem {
	return &Problem{Status: http.StatusInternalServerError, Title: "Internal Server Error", Detail: detail}
}

// WrapError normalizes any error into *Problem.
func WrapError(err error) *Problem {
	if err == nil {
		return nil
	}
	var p *Problem
	if errors.As(err, &p) {
		return p
	}
	return ErrInternal(err.Error())
}

func writeError(w http.ResponseWriter, err error) {
	p := WrapError(err)
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
