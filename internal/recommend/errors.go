package recommend

import "errors"

var (
	// ErrUnknownEmployee means the employee does not exist or has no job title.
	ErrUnknownEmployee = errors.New("unknown employee")
	ErrUnknownSkill    = errors.New("unknown skill")
	// ErrPersistenceConflict wraps a store failure that persisted after one retry.
	ErrPersistenceConflict = errors.New("persistence conflict")
)
