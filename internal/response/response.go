// Package response provides shared JSON response helpers for HTTP handlers.
package response

import (
	"encoding/json"
	"net/http"
)

// MessageBody is the body of every non-validation error response.
type MessageBody struct {
	Message string `json:"message"`
}

// ErrorsBody carries a list of field errors.
type ErrorsBody struct {
	Errors interface{} `json:"errors"`
}

// JSON writes a JSON-encoded payload with the given HTTP status code.
func JSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// OK writes a 200 response with data.
func OK(w http.ResponseWriter, data interface{}) {
	JSON(w, http.StatusOK, data)
}

// Created writes a 201 response with data.
func Created(w http.ResponseWriter, data interface{}) {
	JSON(w, http.StatusCreated, data)
}

// Empty writes the status code with no body.
func Empty(w http.ResponseWriter, status int) {
	w.WriteHeader(status)
}

// Message writes {"message": ...} with the given status.
func Message(w http.ResponseWriter, status int, message string) {
	JSON(w, status, MessageBody{Message: message})
}

// Errors writes a 400 response listing field errors.
func Errors(w http.ResponseWriter, errs interface{}) {
	JSON(w, http.StatusBadRequest, ErrorsBody{Errors: errs})
}

// BadRequest writes a 400 response.
func BadRequest(w http.ResponseWriter, message string) {
	Message(w, http.StatusBadRequest, message)
}

// Unauthorized writes a 401 response.
func Unauthorized(w http.ResponseWriter, message string) {
	Message(w, http.StatusUnauthorized, message)
}

// NotFound writes a 404 response.
func NotFound(w http.ResponseWriter, message string) {
	Message(w, http.StatusNotFound, message)
}

// InternalError writes a 500 response with a generic message.
func InternalError(w http.ResponseWriter) {
	Message(w, http.StatusInternalServerError, "internal server error")
}
