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

// Common error codes.
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_003"
	ErrCodeConflict           ErrorCode = "COMMON_004"
	ErrCodeTooManyRequests    ErrorCode = "COMMON_005"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_006"
	ErrCodeTimeout            ErrorCode = "COMMON_007"
	ErrCodeValidation         ErrorCode = "COMMON_008"
	ErrCodeSerialization      ErrorCode = "COMMON_009"
	ErrCodeDatabaseError      ErrorCode = "COMMON_010"
	ErrCodeCacheError         ErrorCode = "COMMON_011"
	ErrCodeExternalService    ErrorCode = "COMMON_012"
	ErrCodeNotImplemented     ErrorCode = "COMMON_013"
)

// Sentinel values used by GetCode.
const (
	CodeOK      ErrorCode = "OK"
	CodeUnknown ErrorCode = "UNKNOWN"
)

// Scan / grid error codes.
const (
	ErrCodeScanFailed       ErrorCode = "SCAN_001"
	ErrCodeGridInvalidBBox  ErrorCode = "SCAN_002"
	ErrCodeGridInvalidCell  ErrorCode = "SCAN_003"
	ErrCodeScanInProgress   ErrorCode = "SCAN_004"
	ErrCodeScanDataMissing  ErrorCode = "SCAN_005"
)

// Cell cache error codes.
const (
	ErrCodeCellNotFound       ErrorCode = "CELL_001"
	ErrCodeCellAlreadyExists  ErrorCode = "CELL_002"
	ErrCodeCacheRace          ErrorCode = "CELL_003"
	ErrCodeConsistencyWarning ErrorCode = "CELL_004"
)

// Raster source error codes.
const (
	ErrCodeRasterUnavailable ErrorCode = "RASTER_001"
	ErrCodeRasterDecodeError ErrorCode = "RASTER_002"
	ErrCodeSceneNotFound     ErrorCode = "RASTER_003"
	ErrCodeRasterNoCoverage  ErrorCode = "RASTER_004"
)

// Hotspot detection error codes.
const (
	ErrCodeDetectorUnknown  ErrorCode = "HOT_001"
	ErrCodeColormapUnknown  ErrorCode = "HOT_002"
)

// Cell analysis error codes.
const (
	ErrCodeAnalysisNotFound    ErrorCode = "ANALYSIS_001"
	ErrCodeAnalysisFailed      ErrorCode = "ANALYSIS_002"
	ErrCodeAnalyzerUnavailable ErrorCode = "ANALYSIS_003"
	ErrCodeDailyLimitReached   ErrorCode = "ANALYSIS_004"
	ErrCodeImageryUnavailable  ErrorCode = "ANALYSIS_005"
)

// Mission error codes.
const (
	ErrCodeMissionNotFound      ErrorCode = "MISSION_001"
	ErrCodeMissionAlreadyExists ErrorCode = "MISSION_002"
	ErrCodeMissionInvalidState  ErrorCode = "MISSION_003"
)

// ErrorCodeHTTPStatus maps ErrorCodes to HTTP status codes.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeTooManyRequests:    http.StatusTooManyRequests,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeDatabaseError:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeExternalService:    http.StatusBadGateway,
	ErrCodeNotImplemented:     http.StatusNotImplemented,

	ErrCodeScanFailed:      http.StatusInternalServerError,
	ErrCodeGridInvalidBBox: http.StatusBadRequest,
	ErrCodeGridInvalidCell: http.StatusBadRequest,
	ErrCodeScanInProgress:  http.StatusConflict,
	ErrCodeScanDataMissing: http.StatusServiceUnavailable,

	ErrCodeCellNotFound:       http.StatusNotFound,
	ErrCodeCellAlreadyExists:  http.StatusConflict,
	ErrCodeCacheRace:          http.StatusConflict,
	ErrCodeConsistencyWarning: http.StatusInternalServerError,

	ErrCodeRasterUnavailable: http.StatusServiceUnavailable,
	ErrCodeRasterDecodeError: http.StatusBadGateway,
	ErrCodeSceneNotFound:     http.StatusNotFound,
	ErrCodeRasterNoCoverage:  http.StatusServiceUnavailable,

	ErrCodeDetectorUnknown: http.StatusBadRequest,
	ErrCodeColormapUnknown: http.StatusBadRequest,

	ErrCodeAnalysisNotFound:    http.StatusNotFound,
	ErrCodeAnalysisFailed:      http.StatusInternalServerError,
	ErrCodeAnalyzerUnavailable: http.StatusBadGateway,
	ErrCodeDailyLimitReached:   http.StatusTooManyRequests,
	ErrCodeImageryUnavailable:  http.StatusBadGateway,

	ErrCodeMissionNotFound:      http.StatusNotFound,
	ErrCodeMissionAlreadyExists: http.StatusConflict,
	ErrCodeMissionInvalidState:  http.StatusBadRequest,
}

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal server error",
	ErrCodeBadRequest:         "bad request",
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

	ErrCodeScanFailed:      "area scan failed",
	ErrCodeGridInvalidBBox: "invalid bounding box",
	ErrCodeGridInvalidCell: "invalid cell size",
	ErrCodeScanInProgress:  "scan already in progress for this area",
	ErrCodeScanDataMissing: "no raster data available for this area",

	ErrCodeCellNotFound:       "cell not found",
	ErrCodeCellAlreadyExists:  "cell already exists",
	ErrCodeCacheRace:          "concurrent cache creation detected",
	ErrCodeConsistencyWarning: "cell state inconsistent with analysis records",

	ErrCodeRasterUnavailable: "raster source unavailable",
	ErrCodeRasterDecodeError: "failed to decode raster scene",
	ErrCodeSceneNotFound:     "raster scene not found",
	ErrCodeRasterNoCoverage:  "no raster coverage for requested area",

	ErrCodeDetectorUnknown: "unknown hotspot detection strategy",
	ErrCodeColormapUnknown: "unknown colormap",

	ErrCodeAnalysisNotFound:    "cell analysis not found",
	ErrCodeAnalysisFailed:      "cell analysis failed",
	ErrCodeAnalyzerUnavailable: "analysis provider unavailable",
	ErrCodeDailyLimitReached:   "daily analysis limit reached",
	ErrCodeImageryUnavailable:  "satellite imagery unavailable",

	ErrCodeMissionNotFound:      "mission not found",
	ErrCodeMissionAlreadyExists: "mission already exists for this analysis and user",
	ErrCodeMissionInvalidState:  "invalid mission state transition",
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
