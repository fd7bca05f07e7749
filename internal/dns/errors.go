package dns

import "errors"

// Error taxonomy for the record lifecycle. Handlers translate these to
// HTTP status codes; wrap with fmt.Errorf("...: %w", err) to add context.
var (
	ErrInvalidRecord = errors.New("invalid dns record")
	ErrConflict      = errors.New("record conflict")
	ErrZoneLocked    = errors.New("zone is locked")
	ErrRecordLocked  = errors.New("record is locked")
	ErrNotFound      = errors.New("not found")
)
