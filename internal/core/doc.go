// Package core provides the gradebook domain: students, courses, enrollments
// and the bulk student import pipeline.
//
// The package has no transport or database dependencies. Persistence is
// reached through the store interfaces in stores.go, and cached reads go
// through the fetch orchestrator.
//
// # Bulk Import
//
// An import turns a roster export into enrolled students:
//
//  1. [ParseStudentCSV] locates the header, cleans spreadsheet artifacts and
//     returns one [BulkImportRow] per non-blank line.
//  2. [Importer.Run] handles the rows in input order against a snapshot of
//     the roster. Every row ends in exactly one [Outcome].
//  3. The working copy is committed with one [StateStore.Save] and the
//     subject's cached roster is invalidated.
//
// [ImportTracker] runs imports in the background, bounded by an
// [ImportLimiter], and broadcasts [ImportStatus] updates to subscribers.
//
// # Row Outcomes
//
//   - success: student created and enrolled
//   - duplicate: the ID already exists, or appeared earlier in the file
//   - already_enrolled: the ID is already on the subject's roster
//   - created_without_enrollment: student created but no enrollment was made
//   - failed: validation or a store call failed; the reason is in Errors
//
// # Errors
//
// Row failures are collected as "Row N: reason" and never abort the run.
// Snapshot and commit failures are wholesale: every row is reported failed
// and the cause is classified through [apperr.Classifier].
package core
