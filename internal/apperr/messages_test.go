package apperr

import (
	"errors"
	"fmt"
	"net"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    string
		wantMessage string
	}{
		{
			name:        "nil error returns empty",
			err:         nil,
			wantCode:    "",
			wantMessage: "",
		},
		{
			name:        "offline wins over network",
			err:         fmt.Errorf("load roster: %w", ErrOffline),
			wantCode:    "NET002",
			wantMessage: "You appear to be offline",
		},
		{
			name:        "network sentinel",
			err:         fmt.Errorf("save: %w", ErrNetwork),
			wantCode:    "NET001",
			wantMessage: "Unable to reach the server",
		},
		{
			name:        "net.Error",
			err:         &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")},
			wantCode:    "NET001",
			wantMessage: "Unable to reach the server",
		},
		{
			name:        "status 404",
			err:         NewStatusError(404, "course missing"),
			wantCode:    "API404",
			wantMessage: "The requested resource was not found",
		},
		{
			name:        "status 429",
			err:         fmt.Errorf("list courses: %w", NewStatusError(429, "")),
			wantCode:    "API429",
			wantMessage: "Too many requests",
		},
		{
			name:        "status 503",
			err:         NewStatusError(503, "maintenance"),
			wantCode:    "API503",
			wantMessage: "The service is temporarily unavailable",
		},
		{
			name:        "unmapped status",
			err:         NewStatusError(418, "teapot"),
			wantCode:    "API418",
			wantMessage: "Request failed with status 418",
		},
		{
			name:        "duplicate key maps correctly",
			err:         errors.New("ERROR: duplicate key value violates unique constraint"),
			wantCode:    "DB001",
			wantMessage: "A record with this ID already exists",
		},
		{
			name:        "foreign key maps correctly",
			err:         errors.New("violates foreign key constraint"),
			wantCode:    "DB003",
			wantMessage: "Referenced record does not exist",
		},
		{
			name:        "invalid student id",
			err:         errors.New("Invalid student ID: must be 6-10 digits"),
			wantCode:    "VAL001",
			wantMessage: "The student ID is not valid",
		},
		{
			name:        "import not found",
			err:         errors.New("import not found"),
			wantCode:    "IMP003",
			wantMessage: "Import session not found",
		},
		{
			name:        "unknown error returns default",
			err:         errors.New("some random internal error"),
			wantCode:    "ERR000",
			wantMessage: "An unexpected error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
			if got.Message != tt.wantMessage {
				t.Errorf("MapError() message = %q, want %q", got.Message, tt.wantMessage)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	result := FormatUserError(NewStatusError(409, "exists"))

	expected := "This record conflicts with existing data (Code: API409). Refresh and review the existing record"
	if result != expected {
		t.Errorf("FormatUserError() = %q, want %q", result, expected)
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil error is not user facing", err: nil, want: false},
		{name: "status error is user facing", err: NewStatusError(500, ""), want: true},
		{name: "unknown error is not user facing", err: errors.New("random internal error xyz"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUserFacing(tt.err); got != tt.want {
				t.Errorf("IsUserFacing() = %v, want %v", got, tt.want)
			}
		})
	}
}
