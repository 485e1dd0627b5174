package output

import "errors"

// ReportedError is an error the command already showed to the user. The root
// command exits non-zero without printing it again.
type ReportedError struct {
	Err  error
	Code int
}

func (e *ReportedError) Error() string { return e.Err.Error() }

func (e *ReportedError) Unwrap() error { return e.Err }

// Reported marks err as already shown.
func Reported(err error, code int) error {
	if err == nil {
		return nil
	}
	return &ReportedError{Err: err, Code: code}
}

// ExitCode maps an error to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var re *ReportedError
	if errors.As(err, &re) && re.Code != 0 {
		return re.Code
	}
	return ExitUserError
}

// IsReported reports whether err was already shown.
func IsReported(err error) bool {
	var re *ReportedError
	return errors.As(err, &re)
}
