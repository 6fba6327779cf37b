package domain

import "errors"

// Domain errors
var (
	ErrInvalidChoice   = errors.New("choice is not a valid response to the target symbol")
	ErrNotAParticipant = errors.New("player is not a participant of this match")
	ErrMatchFinished   = errors.New("match already finished")
	ErrMatchNotFound   = errors.New("match not found")
	ErrInviteNotFound  = errors.New("invite not found")
	ErrAlreadyInMatch  = errors.New("player is already in a live match")
	ErrSelfInvite      = errors.New("cannot invite yourself")
	ErrUsernameTaken   = errors.New("username already taken")
	ErrInvalidUsername = errors.New("invalid username")
	ErrPlayerNotFound  = errors.New("player not found")
	ErrNotInvitee      = errors.New("invite is addressed to another player")

	// ErrNotDurable marks an operation that took effect in memory but whose
	// state write failed. The next successful write carries the change.
	ErrNotDurable = errors.New("change applied but not yet saved")
)
