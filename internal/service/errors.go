package service

import "errors"

var (
	ErrSignerNotConfigured = errors.New("keeper private key not configured")
	ErrNoRoundsExist       = errors.New("no rounds exist")
	ErrAlreadySettled      = errors.New("round already settled")
	ErrRoundActive         = errors.New("a round is still active")
	ErrRoundNotExpired     = errors.New("round has not expired")
	ErrRoundNotFound       = errors.New("round not found")
	ErrRoundNotSettled     = errors.New("round not settled")
	ErrNoBet               = errors.New("user has no bet in round")
	ErrAlreadyClaimed      = errors.New("winnings already claimed")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrFeatureDisabled     = errors.New("feature disabled")
)
