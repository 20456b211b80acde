package tasker

import "errors"

var (
	// Registry errors.
	ErrAlreadyRegistered = errors.New("tasker: task already registered")
	ErrNotRegistered     = errors.New("tasker: task not registered")
	ErrInvalidTask       = errors.New("tasker: invalid task")
	ErrTaskNotFound      = errors.New("tasker: task not found")

	// Store errors.
	ErrNoStore            = errors.New("tasker: no store configured")
	ErrMigrationFailed    = errors.New("tasker: migration failed")
	ErrInvocationNotFound = errors.New("tasker: invocation not found")
	ErrInvocationExists   = errors.New("tasker: invocation already exists")

	// State errors.
	ErrInvalidState = errors.New("tasker: invalid state transition")
)
