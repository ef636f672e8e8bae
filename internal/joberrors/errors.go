// Package joberrors defines the typed errors reported back to the job
// queue. Every error carries a numeric status code, and detail text is
// redacted unless the site that raised it marked it safe to report.
package joberrors

import "fmt"

// Reserved status codes. -1 is reported for timed-out jobs and 99 for
// anything unclassified, so named errors may not claim them.
const (
	CodeTimeout      = -1
	CodeUnclassified = 99
)

// Error is a job failure with a queue-visible status code.
type Error struct {
	// Code is the status code reported to the queue.
	Code int

	// Kind names the failure class, e.g. "RepoNotFound".
	Kind string

	// Detail is the human-readable cause.
	Detail string

	// Reportable marks the detail as safe to send off-host. Details often
	// contain paths or query fragments from sensitive environments, so the
	// default is to redact.
	Reportable bool
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// SafeDetails returns the message form suitable for reporting to the queue,
// redacting detail text unless it was marked reportable.
func (e *Error) SafeDetails() string {
	if e.Reportable {
		return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	}
	return fmt.Sprintf("%s: [possibly-unsafe details redacted]", e.Kind)
}

// New creates a typed job error. It panics if the status code is reserved:
// a named error reporting -1 or 99 would be indistinguishable from the
// timeout and unclassified cases.
func New(code int, kind, detail string, reportable bool) *Error {
	if code == CodeTimeout || code == CodeUnclassified {
		panic(fmt.Sprintf("status code %d is reserved", code))
	}
	return &Error{Code: code, Kind: kind, Detail: detail, Reportable: reportable}
}

// Named constructors for the known failure classes. Codes are part of the
// queue protocol and must stay stable.

func RepoNotFound(detail string) *Error {
	return New(2, "RepoNotFound", detail, true)
}

func InvalidRunCommand(detail string) *Error {
	return New(3, "InvalidRunCommand", detail, true)
}

func DuplicateRunCommand(detail string) *Error {
	return New(4, "DuplicateRunCommand", detail, true)
}

func InvalidVariable(detail string) *Error {
	return New(5, "InvalidVariable", detail, true)
}

func OperationNotInProject(detail string) *Error {
	return New(6, "OperationNotInProject", detail, false)
}

func DependencyNotFinished(detail string) *Error {
	return New(7, "DependencyNotFinished", detail, true)
}

func DependencyCycle(detail string) *Error {
	return New(8, "DependencyCycle", detail, true)
}

func ContainerRunFailed(detail string) *Error {
	return New(9, "ContainerRunFailed", detail, false)
}

func InvalidOutputPath(detail string) *Error {
	return New(10, "InvalidOutputPath", detail, false)
}
