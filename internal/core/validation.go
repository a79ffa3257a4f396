package core

// validation.go checks student rows before anything is persisted.
//
// Student IDs go through a pluggable StudentIDValidator so deployments can
// apply their own numbering policy; DefaultStudentIDValidator accepts 6 to 10
// digits. Names and emails use fixed rules. Validation stops at the first
// problem because the row message reports one reason.

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxNameLength is the longest accepted student name, in characters.
const MaxNameLength = 100

// ValidationError describes why a field was rejected.
type ValidationError struct {
	Field   string // "id", "name" or "email"
	Value   string // The rejected value
	Message string // Human-readable error message
}

func (e ValidationError) Error() string {
	return e.Message
}

// StudentIDValidator checks a normalized student ID.
type StudentIDValidator func(id string) error

var studentIDPattern = regexp.MustCompile(`^\d{6,10}$`)

// DefaultStudentIDValidator accepts IDs of 6 to 10 digits.
func DefaultStudentIDValidator(id string) error {
	if id == "" {
		return ValidationError{Field: "id", Message: "Student ID is required"}
	}
	if !studentIDPattern.MatchString(id) {
		return ValidationError{Field: "id", Value: id, Message: "Invalid student ID: must be 6-10 digits"}
	}
	return nil
}

// PatternStudentIDValidator returns a validator accepting IDs that fully
// match pattern. It errors when pattern does not compile.
func PatternStudentIDValidator(pattern string) (StudentIDValidator, error) {
	re, err := regexp.Compile(`^(?:` + pattern + `)$`)
	if err != nil {
		return nil, fmt.Errorf("student ID pattern: %w", err)
	}
	return func(id string) error {
		if id == "" {
			return ValidationError{Field: "id", Message: "Student ID is required"}
		}
		if !re.MatchString(id) {
			return ValidationError{Field: "id", Value: id, Message: "Invalid student ID: does not match the configured format"}
		}
		return nil
	}, nil
}

// NormalizeStudentID strips spreadsheet artifacts and whitespace.
func NormalizeStudentID(id string) string {
	return CleanCell(id)
}

// ValidateName checks a student name.
func ValidateName(name string) error {
	if name == "" {
		return ValidationError{Field: "name", Message: "Name is required"}
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return ValidationError{Field: "name", Value: name, Message: "Invalid name: must be at most 100 characters"}
	}
	for _, r := range name {
		if unicode.IsLetter(r) || r == ' ' || r == '-' || r == '\'' || r == '.' {
			continue
		}
		return ValidationError{Field: "name", Value: name, Message: "Invalid name: only letters, spaces, hyphens, apostrophes and periods are allowed"}
	}
	return nil
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidateEmail checks an optional email address. Empty is valid.
func ValidateEmail(email string) error {
	if email == "" {
		return nil
	}
	if !emailPattern.MatchString(email) {
		return ValidationError{Field: "email", Value: email, Message: "Invalid email address"}
	}
	return nil
}

// ValidateRow normalizes row in place and returns its first validation error.
func ValidateRow(row *BulkImportRow, validateID StudentIDValidator) error {
	if validateID == nil {
		validateID = DefaultStudentIDValidator
	}

	row.ID = NormalizeStudentID(row.ID)
	row.Name = strings.Join(strings.Fields(CleanCell(row.Name)), " ")
	row.Email = strings.ToLower(CleanCell(row.Email))

	if err := validateID(row.ID); err != nil {
		return err
	}
	if err := ValidateName(row.Name); err != nil {
		return err
	}
	return ValidateEmail(row.Email)
}
