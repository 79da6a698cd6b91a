package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zpam/spam-classifier/pkg/pipeline"
	"github.com/zpam/spam-classifier/pkg/server/middleware"
)

// PredictRequest is the body of POST /predict
type PredictRequest struct {
	Text *string `json:"text"`
}

// PredictResponse is the success body of POST /predict
type PredictResponse struct {
	Status  string            `json:"status"`
	Results []pipeline.Result `json:"results"`
}

// ErrorResponse is returned for every failed request
type ErrorResponse struct {
	Status string `json:"status"`
	Detail string `json:"detail"`
}

// Client-facing messages. They never carry internal detail.
const (
	msgInvalidRequest = "Invalid request format"
	msgTextRequired   = "Email text is required"
	msgTooLarge       = "request body too large"
	msgInternal       = "internal server error"
)

func respondPredict(c *gin.Context, result pipeline.Result) {
	c.JSON(http.StatusOK, PredictResponse{
		Status:  "success",
		Results: []pipeline.Result{result},
	})
}

func respondError(c *gin.Context, status int, detail string) {
	c.JSON(status, ErrorResponse{Status: "error", Detail: detail})
}

// mapError translates pipeline and binding errors into a status and a safe
// message.
func mapError(err error) (int, string) {
	switch {
	case errors.Is(err, pipeline.ErrEmptyText):
		return http.StatusBadRequest, msgTextRequired
	case middleware.IsBodyTooLarge(err):
		return http.StatusRequestEntityTooLarge, msgTooLarge
	default:
		return http.StatusInternalServerError, msgInternal
	}
}
