package types

import (
	"encoding/json"
	"net/http"
)

type Response struct {
	Code  int    `json:"code"`
	Error string `json:"error,omitempty"`
}

func Success() *Response {
	return &Response{Code: http.StatusOK, Error: ""}
}

func Accepted() *Response {
	return &Response{Code: http.StatusAccepted, Error: ""}
}

func BadRequest(err error) *Response {
	return &Response{Code: http.StatusBadRequest, Error: err.Error()}
}

func NotFound(err error) *Response {
	return &Response{Code: http.StatusNotFound, Error: err.Error()}
}

func Conflict(err error) *Response {
	return &Response{Code: http.StatusConflict, Error: err.Error()}
}

func BadGateway(err error) *Response {
	return &Response{Code: http.StatusBadGateway, Error: err.Error()}
}

func InternalError(err error) *Response {
	return &Response{Code: http.StatusInternalServerError, Error: err.Error()}
}

func (r *Response) Render(w http.ResponseWriter, _ *http.Request) error {
	return JSON(w, r.Code, r)
}

// JSON writes v with the given status code.
func JSON(w http.ResponseWriter, code int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(v)
}
