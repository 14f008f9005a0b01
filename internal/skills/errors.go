package skills

import "errors"

var (
	ErrNotFound     = errors.New("skill not found")
	ErrInvalidVote  = errors.New("vote must be up or down")
	ErrInvalidLabel = errors.New("skill label is empty")
)
