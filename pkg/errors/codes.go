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
	ErrCodeUnauthorized       ErrorCode = "COMMON_003"
	ErrCodeForbidden          ErrorCode = "COMMON_004"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeConflict           ErrorCode = "COMMON_006"
	ErrCodeTooManyRequests    ErrorCode = "COMMON_007"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeDatabaseError      ErrorCode = "COMMON_012"
	ErrCodeCacheError         ErrorCode = "COMMON_013"
	ErrCodeExternalService    ErrorCode = "COMMON_014"
	ErrCodeNotImplemented     ErrorCode = "COMMON_015"
)

// Extraction Module Error Codes
const (
	ErrCodeExtractionFailed      ErrorCode = "EXT_001"
	ErrCodeExtractionNotFound    ErrorCode = "EXT_002"
	ErrCodeDocumentEmpty         ErrorCode = "EXT_003"
	ErrCodeDocumentUnreadable    ErrorCode = "EXT_004"
	ErrCodeExtractorBadResponse  ErrorCode = "EXT_005"
	ErrCodeEntityTypeUnknown     ErrorCode = "EXT_006"
)

// Substance / Enrichment Module Error Codes
const (
	ErrCodeSubstanceNotFound   ErrorCode = "SUB_001"
	ErrCodeSubstanceKeyInvalid ErrorCode = "SUB_002"
	ErrCodeEnrichmentFailed    ErrorCode = "SUB_003"
	ErrCodeEnrichmentConflict  ErrorCode = "SUB_004"
	ErrCodeEnrichmentDowngrade ErrorCode = "SUB_005"
)

// Graph Store Error Codes
const (
	ErrCodeDanglingReference  ErrorCode = "GRAPH_001"
	ErrCodeGraphApplyFailed   ErrorCode = "GRAPH_002"
	ErrCodeCollectionUnknown  ErrorCode = "GRAPH_003"
)

// External Data Source Error Codes
const (
	ErrCodeSourceUnavailable ErrorCode = "SRC_001"
	ErrCodeSourceRateLimited ErrorCode = "SRC_002"
	ErrCodeSourceAuthFailed  ErrorCode = "SRC_003"
	ErrCodeSourceParseError  ErrorCode = "SRC_004"
)

// Profile Module Error Codes
const (
	ErrCodeProfileNotFound ErrorCode = "PRO_001"
)

// Aliases kept for call-site brevity
const (
	CodeUnknown        = ErrorCode("UNKNOWN")
	CodeOK             = ErrorCode("OK")
	CodeInternal       = ErrCodeInternal
	CodeInvalidParam   = ErrCodeBadRequest
	CodeUnauthorized   = ErrCodeUnauthorized
	CodeForbidden      = ErrCodeForbidden
	CodeNotFound       = ErrCodeNotFound
	CodeConflict       = ErrCodeConflict
	CodeRateLimit      = ErrCodeTooManyRequests
	CodeNotImplemented = ErrCodeNotImplemented

	CodeSubstanceNotFound  = ErrCodeSubstanceNotFound
	CodeExtractionNotFound = ErrCodeExtractionNotFound
	CodeProfileNotFound    = ErrCodeProfileNotFound
)

// ErrorCodeHTTPStatus maps ErrorCodes to HTTP status codes.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeUnauthorized:       http.StatusUnauthorized,
	ErrCodeForbidden:          http.StatusForbidden,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeTooManyRequests:    http.StatusTooManyRequests,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeDatabaseError:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeExternalService:    http.StatusInternalServerError,
	ErrCodeNotImplemented:     http.StatusNotImplemented,

	ErrCodeExtractionFailed:     http.StatusUnprocessableEntity,
	ErrCodeExtractionNotFound:   http.StatusNotFound,
	ErrCodeDocumentEmpty:        http.StatusBadRequest,
	ErrCodeDocumentUnreadable:   http.StatusBadRequest,
	ErrCodeExtractorBadResponse: http.StatusBadGateway,
	ErrCodeEntityTypeUnknown:    http.StatusUnprocessableEntity,

	ErrCodeSubstanceNotFound:   http.StatusNotFound,
	ErrCodeSubstanceKeyInvalid: http.StatusBadRequest,
	ErrCodeEnrichmentFailed:    http.StatusInternalServerError,
	ErrCodeEnrichmentConflict:  http.StatusConflict,
	ErrCodeEnrichmentDowngrade: http.StatusConflict,

	ErrCodeDanglingReference: http.StatusInternalServerError,
	ErrCodeGraphApplyFailed:  http.StatusInternalServerError,
	ErrCodeCollectionUnknown: http.StatusInternalServerError,

	ErrCodeSourceUnavailable: http.StatusServiceUnavailable,
	ErrCodeSourceRateLimited: http.StatusTooManyRequests,
	ErrCodeSourceAuthFailed:  http.StatusBadGateway,
	ErrCodeSourceParseError:  http.StatusBadGateway,

	ErrCodeProfileNotFound: http.StatusNotFound,
}

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal server error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeUnauthorized:       "unauthorized",
	ErrCodeForbidden:          "forbidden",
	ErrCodeNotFound:           "resource not found",
	ErrCodeConflict:           "resource conflict",
	ErrCodeTooManyRequests:    "too many requests",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeTimeout:            "request timeout",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization failed",
	ErrCodeDatabaseError:      "database error",
	ErrCodeCacheError:         "cache error",
	ErrCodeExternalService:    "external service error",
	ErrCodeNotImplemented:     "not implemented",

	ErrCodeExtractionFailed:     "entity extraction failed",
	ErrCodeExtractionNotFound:   "extraction not found",
	ErrCodeDocumentEmpty:        "document contains no extractable text",
	ErrCodeDocumentUnreadable:   "document could not be read",
	ErrCodeExtractorBadResponse: "extractor returned an unparseable response",
	ErrCodeEntityTypeUnknown:    "unknown entity type",

	ErrCodeSubstanceNotFound:   "substance not found",
	ErrCodeSubstanceKeyInvalid: "substance key could not be derived",
	ErrCodeEnrichmentFailed:    "substance enrichment failed",
	ErrCodeEnrichmentConflict:  "concurrent enrichment detected",
	ErrCodeEnrichmentDowngrade: "enrichment state cannot be downgraded",

	ErrCodeDanglingReference: "edge references a missing vertex",
	ErrCodeGraphApplyFailed:  "failed to apply graph bundle",
	ErrCodeCollectionUnknown: "unknown graph collection",

	ErrCodeSourceUnavailable: "data source unavailable",
	ErrCodeSourceRateLimited: "data source rate limited",
	ErrCodeSourceAuthFailed:  "data source authentication failed",
	ErrCodeSourceParseError:  "failed to parse data source response",

	ErrCodeProfileNotFound: "profile not found",
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
