package apperr

// messages.go maps failures to user-facing messages with codes for support
// reference. Users quote the code; support looks it up here.
//
// # Network (NET001-NET099)
//
//	NET001 - Unable to reach the server
//	NET002 - Offline
//
// # Status (API400-API599)
//
// A *StatusError maps by its status code:
//
//	API400 - Invalid request          API409 - Conflict
//	API401 - Authentication required  API422 - Validation failed
//	API403 - Forbidden                API429 - Rate limited
//	API404 - Not found                API500 - Server error
//	API503 - Service unavailable      APIxxx - Request failed with status N
//
// # Database (DB001-DB099)
//
//	DB001 - Duplicate key             Patterns: "duplicate key"
//	DB002 - Unique constraint         Patterns: "unique constraint", "violates unique"
//	DB003 - Foreign key               Patterns: "foreign key"
//	DB006 - Timeout                   Patterns: "timeout"
//
// # Validation (VAL001-VAL099)
//
//	VAL001 - Invalid student ID       Patterns: "invalid student id"
//	VAL002 - Invalid name             Patterns: "invalid name"
//	VAL003 - Invalid email            Patterns: "invalid email"
//	VAL004 - Required field           Patterns: "required"
//	VAL005 - Missing column           Patterns: "missing required column", "header not found"
//
// # Import (IMP001-IMP099)
//
//	IMP001 - Import in progress       Patterns: "import already running"
//	IMP002 - System busy              Patterns: "too many concurrent imports"
//	IMP003 - Import expired           Patterns: "import not found"
//	IMP004 - Empty file               Patterns: "empty file", "no data rows"
//	IMP005 - File too large           Patterns: "file too large"
//
// # Default (ERR000)
//
// Fallback when nothing matches. Check application logs for the technical error.
//
// Status and network failures are matched by type first. Patterns are matched
// case-insensitively with strings.Contains; the first match wins, so specific
// patterns come before general ones.

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Title   string // Category title shown in the alert header
	Message string // What happened
	Action  string // What to do about it
	Code    string // Error code for support reference
}

var (
	networkMessage = UserMessage{
		Title:   "Network Error",
		Message: "Unable to reach the server",
		Action:  "Check your internet connection and try again",
		Code:    "NET001",
	}
	offlineMessage = UserMessage{
		Title:   "Offline",
		Message: "You appear to be offline",
		Action:  "Reconnect and try again",
		Code:    "NET002",
	}
)

var statusMessages = map[int]UserMessage{
	http.StatusBadRequest: {
		Title:   "Invalid Request",
		Message: "The request was invalid",
		Action:  "Review the submitted data",
		Code:    "API400",
	},
	http.StatusUnauthorized: {
		Title:   "Authentication Required",
		Message: "Authentication is required",
		Action:  "Sign in again",
		Code:    "API401",
	},
	http.StatusForbidden: {
		Title:   "Access Denied",
		Message: "You do not have permission to perform this action",
		Action:  "Contact an administrator if you need access",
		Code:    "API403",
	},
	http.StatusNotFound: {
		Title:   "Not Found",
		Message: "The requested resource was not found",
		Action:  "Refresh the page; it may have been removed",
		Code:    "API404",
	},
	http.StatusConflict: {
		Title:   "Conflict",
		Message: "This record conflicts with existing data",
		Action:  "Refresh and review the existing record",
		Code:    "API409",
	},
	http.StatusUnprocessableEntity: {
		Title:   "Validation Error",
		Message: "Validation failed",
		Action:  "Correct the highlighted fields",
		Code:    "API422",
	},
	http.StatusTooManyRequests: {
		Title:   "Rate Limited",
		Message: "Too many requests",
		Action:  "Please wait a moment before trying again",
		Code:    "API429",
	},
	http.StatusInternalServerError: {
		Title:   "Server Error",
		Message: "The server encountered an error",
		Action:  "Please try again later",
		Code:    "API500",
	},
	http.StatusServiceUnavailable: {
		Title:   "Service Unavailable",
		Message: "The service is temporarily unavailable",
		Action:  "Please try again in a few moments",
		Code:    "API503",
	},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// Database constraints
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Title:   "Duplicate Record",
			Message: "A record with this ID already exists",
			Action:  "Review the existing record before adding it again",
			Code:    "DB001",
		},
	},
	{
		pattern: "unique constraint",
		msg: UserMessage{
			Title:   "Duplicate Record",
			Message: "This value must be unique but already exists",
			Action:  "Check for duplicate entries",
			Code:    "DB002",
		},
	},
	{
		pattern: "violates unique",
		msg: UserMessage{
			Title:   "Duplicate Record",
			Message: "A duplicate value was found",
			Action:  "Check for duplicate entries",
			Code:    "DB002",
		},
	},
	{
		pattern: "foreign key",
		msg: UserMessage{
			Title:   "Missing Reference",
			Message: "Referenced record does not exist",
			Action:  "Create the course or student first",
			Code:    "DB003",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Title:   "Timeout",
			Message: "Operation timed out",
			Action:  "Please try again later",
			Code:    "DB006",
		},
	},

	// Validation
	{
		pattern: "invalid student id",
		msg: UserMessage{
			Title:   "Validation Error",
			Message: "The student ID is not valid",
			Action:  "Student IDs are 6 to 10 digits",
			Code:    "VAL001",
		},
	},
	{
		pattern: "invalid name",
		msg: UserMessage{
			Title:   "Validation Error",
			Message: "The name is not valid",
			Action:  "Use letters, spaces, hyphens and apostrophes only",
			Code:    "VAL002",
		},
	},
	{
		pattern: "invalid email",
		msg: UserMessage{
			Title:   "Validation Error",
			Message: "The email address is not valid",
			Action:  "Use a full address such as name@example.edu",
			Code:    "VAL003",
		},
	},
	{
		pattern: "missing required column",
		msg: UserMessage{
			Title:   "Invalid File",
			Message: "Required column is missing from CSV",
			Action:  "Include id and name columns in the header row",
			Code:    "VAL005",
		},
	},
	{
		pattern: "header not found",
		msg: UserMessage{
			Title:   "Invalid File",
			Message: "Header row not found",
			Action:  "Include id and name columns in the header row",
			Code:    "VAL005",
		},
	},
	{
		pattern: "required",
		msg: UserMessage{
			Title:   "Validation Error",
			Message: "Required field is empty",
			Action:  "Fill in all required fields",
			Code:    "VAL004",
		},
	},

	// Import
	{
		pattern: "import already running",
		msg: UserMessage{
			Title:   "Import In Progress",
			Message: "An import is already running",
			Action:  "Wait for the current import to finish",
			Code:    "IMP001",
		},
	},
	{
		pattern: "too many concurrent imports",
		msg: UserMessage{
			Title:   "System Busy",
			Message: "Too many imports in progress",
			Action:  "Please wait a moment and try again",
			Code:    "IMP002",
		},
	},
	{
		pattern: "import not found",
		msg: UserMessage{
			Title:   "Import Expired",
			Message: "Import session not found",
			Action:  "The import may have expired. Please start a new import",
			Code:    "IMP003",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Title:   "Invalid File",
			Message: "The uploaded file is empty",
			Action:  "Upload a CSV file with data rows",
			Code:    "IMP004",
		},
	},
	{
		pattern: "no data rows",
		msg: UserMessage{
			Title:   "Invalid File",
			Message: "The file has a header but no students",
			Action:  "Upload a CSV file with data rows",
			Code:    "IMP004",
		},
	},
	{
		pattern: "file too large",
		msg: UserMessage{
			Title:   "Invalid File",
			Message: "File exceeds maximum size limit",
			Action:  "Split the file into smaller chunks",
			Code:    "IMP005",
		},
	},
}

var defaultMessage = UserMessage{
	Title:   "Error",
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// Returns an empty UserMessage for a nil error.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	if errors.Is(err, ErrOffline) {
		return offlineMessage
	}
	if code := StatusCode(err); code != 0 {
		return statusMessage(code)
	}
	if IsNetwork(err) {
		return networkMessage
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

func statusMessage(code int) UserMessage {
	if msg, ok := statusMessages[code]; ok {
		return msg
	}
	title := "Request Failed"
	if code >= http.StatusInternalServerError {
		title = "Server Error"
	}
	return UserMessage{
		Title:   title,
		Message: fmt.Sprintf("Request failed with status %d", code),
		Action:  "Please try again or contact support",
		Code:    fmt.Sprintf("API%d", code),
	}
}

// FormatUserError returns a single line combining message, code and action.
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than the default.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
