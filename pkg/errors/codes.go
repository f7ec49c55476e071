package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common Error Codes
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_003"
	ErrCodeConflict           ErrorCode = "COMMON_004"
	ErrCodeTimeout            ErrorCode = "COMMON_005"
	ErrCodeValidation         ErrorCode = "COMMON_006"
	ErrCodeSerialization      ErrorCode = "COMMON_007"
	ErrCodeDatabaseError      ErrorCode = "COMMON_008"
	ErrCodeCacheError         ErrorCode = "COMMON_009"
	ErrCodeExternalService    ErrorCode = "COMMON_010"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_011"
	ErrCodeFeatureDisabled    ErrorCode = "COMMON_012"
)

// Document Module Error Codes
const (
	ErrCodeDocumentEmpty      ErrorCode = "DOC_001"
	ErrCodeChunkInvalid       ErrorCode = "DOC_002"
	ErrCodeChunkTypeUnknown   ErrorCode = "DOC_003"
	ErrCodeAnnotationNotFound ErrorCode = "DOC_004"
	ErrCodeAnnotationInvalid  ErrorCode = "DOC_005"
)

// Inference Module Error Codes
const (
	ErrCodeInferenceFailed        ErrorCode = "INFER_001"
	ErrCodeRuleInvalid            ErrorCode = "INFER_002"
	ErrCodePatternCompileFailed   ErrorCode = "INFER_003"
	ErrCodeFusionNoSignals        ErrorCode = "INFER_004"
	ErrCodeCalibrationModeInvalid ErrorCode = "INFER_005"
	ErrCodeExtractionFailed       ErrorCode = "INFER_006"
)

// Embedding Module Error Codes
const (
	ErrCodeEmbeddingUnavailable ErrorCode = "EMB_001"
	ErrCodeEmbeddingFailed      ErrorCode = "EMB_002"
	ErrCodeEmbeddingTimeout     ErrorCode = "EMB_003"
	ErrCodeEmbeddingDimension   ErrorCode = "EMB_004"
)

// Semantic Index Error Codes
const (
	ErrCodeIndexUnavailable  ErrorCode = "IDX_001"
	ErrCodeIndexSearchFailed ErrorCode = "IDX_002"
	ErrCodeIndexUpsertFailed ErrorCode = "IDX_003"
)

// ErrorCodeHTTPStatus maps ErrorCodes to HTTP status codes.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeDatabaseError:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeExternalService:    http.StatusBadGateway,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeFeatureDisabled:    http.StatusForbidden,

	ErrCodeDocumentEmpty:      http.StatusBadRequest,
	ErrCodeChunkInvalid:       http.StatusBadRequest,
	ErrCodeChunkTypeUnknown:   http.StatusBadRequest,
	ErrCodeAnnotationNotFound: http.StatusNotFound,
	ErrCodeAnnotationInvalid:  http.StatusUnprocessableEntity,

	ErrCodeInferenceFailed:        http.StatusInternalServerError,
	ErrCodeRuleInvalid:            http.StatusUnprocessableEntity,
	ErrCodePatternCompileFailed:   http.StatusInternalServerError,
	ErrCodeFusionNoSignals:        http.StatusInternalServerError,
	ErrCodeCalibrationModeInvalid: http.StatusBadRequest,
	ErrCodeExtractionFailed:       http.StatusInternalServerError,

	ErrCodeEmbeddingUnavailable: http.StatusServiceUnavailable,
	ErrCodeEmbeddingFailed:      http.StatusBadGateway,
	ErrCodeEmbeddingTimeout:     http.StatusGatewayTimeout,
	ErrCodeEmbeddingDimension:   http.StatusInternalServerError,

	ErrCodeIndexUnavailable:  http.StatusServiceUnavailable,
	ErrCodeIndexSearchFailed: http.StatusInternalServerError,
	ErrCodeIndexUpsertFailed: http.StatusInternalServerError,
}

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal server error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeNotFound:           "resource not found",
	ErrCodeConflict:           "resource conflict",
	ErrCodeTimeout:            "request timeout",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization failed",
	ErrCodeDatabaseError:      "database error",
	ErrCodeCacheError:         "cache error",
	ErrCodeExternalService:    "external service error",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeFeatureDisabled:    "feature disabled",

	ErrCodeDocumentEmpty:      "document contains no chunks",
	ErrCodeChunkInvalid:       "invalid chunk",
	ErrCodeChunkTypeUnknown:   "unknown chunk type",
	ErrCodeAnnotationNotFound: "annotation not found",
	ErrCodeAnnotationInvalid:  "invalid annotation",

	ErrCodeInferenceFailed:        "inference failed",
	ErrCodeRuleInvalid:            "invalid learned rule",
	ErrCodePatternCompileFailed:   "failed to compile pattern rule",
	ErrCodeFusionNoSignals:        "no signals available for fusion",
	ErrCodeCalibrationModeInvalid: "invalid calibration mode",
	ErrCodeExtractionFailed:       "field extraction failed",

	ErrCodeEmbeddingUnavailable: "embedding provider unavailable",
	ErrCodeEmbeddingFailed:      "embedding generation failed",
	ErrCodeEmbeddingTimeout:     "embedding generation timed out",
	ErrCodeEmbeddingDimension:   "embedding dimension mismatch",

	ErrCodeIndexUnavailable:  "semantic index unavailable",
	ErrCodeIndexSearchFailed: "semantic index search failed",
	ErrCodeIndexUpsertFailed: "semantic index upsert failed",
}

// HTTPStatusForCode returns the HTTP status code for an ErrorCode.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DefaultMessageForCode returns the default message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// IsClientError returns true if the ErrorCode corresponds to a 4xx HTTP status.
func IsClientError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 400 && status < 500
}

// IsServerError returns true if the ErrorCode corresponds to a 5xx HTTP status.
func IsServerError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 500 && status < 600
}

// ModuleForCode returns the module prefix of an ErrorCode.
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 0 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}
