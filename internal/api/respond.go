package api

import (
	"github.com/gin-gonic/gin"
)

const (
	codeValidation       = "validation_error"
	codeNotFound         = "not_found"
	codeExtractionFailed = "extraction_failed"
	codeGenerationFailed = "generation_failed"
	codeInternal         = "internal_error"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func respondError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, errorResponse{Error: errorBody{Code: code, Message: message}})
}
