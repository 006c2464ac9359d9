package system

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/tokenrelay/tokenrelay/pkg/types"
)

type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return e.Message
}

func NewHTTPError400(message string) *HTTPError {
	return &HTTPError{
		StatusCode: http.StatusBadRequest,
		Message:    message,
	}
}

func NewHTTPError500(message string) *HTTPError {
	return &HTTPError{
		StatusCode: http.StatusInternalServerError,
		Message:    message,
	}
}

// functions that understand they need to return a http error
type httpWrapper[T any] func(res http.ResponseWriter, req *http.Request) (T, *HTTPError)

// Wrapper wraps a handler returning (data, *HTTPError) so that errors are
// rendered as the service's JSON error envelope and successes as JSON data.
func Wrapper[T any](handler httpWrapper[T]) func(res http.ResponseWriter, req *http.Request) {
	return func(res http.ResponseWriter, req *http.Request) {
		data, err := handler(res, req)
		if err != nil {
			log.Error().Msgf("error for route %s: %s", req.URL.Path, err.Error())
			statusCode := err.StatusCode
			if statusCode == 0 {
				statusCode = http.StatusInternalServerError
			}
			WriteErrorResponse(res, statusCode, err.Message)
			return
		}
		res.Header().Set("Content-Type", "application/json")
		if jsonError := json.NewEncoder(res).Encode(data); jsonError != nil {
			log.Ctx(req.Context()).Error().Msgf("error for json encoding: %s", jsonError.Error())
			http.Error(res, jsonError.Error(), http.StatusInternalServerError)
		}
	}
}

// WriteErrorResponse renders the {success:false, error} envelope every
// failing endpoint uses.
func WriteErrorResponse(res http.ResponseWriter, statusCode int, message string) {
	res.Header().Set("Content-Type", "application/json")
	res.WriteHeader(statusCode)
	if err := json.NewEncoder(res).Encode(types.ErrorResponse{
		Success: false,
		Error:   message,
	}); err != nil {
		log.Error().Msgf("error for json encoding: %s", err.Error())
	}
}
