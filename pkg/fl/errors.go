package fl

import "errors"

var (
	ErrInvalidRoundID = errors.New("invalid round id")
	ErrRoundNotFound  = errors.New("round not found")
)
