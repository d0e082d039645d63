package game

import "errors"

// Validation and state errors surfaced to callers. Store and classifier
// failures are wrapped and propagated as-is.
var (
	// ErrStudentNotFound indicates the student document does not exist
	ErrStudentNotFound = errors.New("student not found")

	// ErrLevelNotFound indicates the level id has no content
	ErrLevelNotFound = errors.New("level not found")

	// ErrLevelLocked indicates the student has not unlocked the level yet
	ErrLevelLocked = errors.New("level not unlocked")

	// ErrInvalidTask indicates the task id is not a valid index into the
	// level's task list
	ErrInvalidTask = errors.New("invalid task id")

	// ErrInvalidImages indicates the submitted image set does not match the
	// target word
	ErrInvalidImages = errors.New("invalid image set")

	// ErrNicknameTaken indicates the nickname is already registered
	ErrNicknameTaken = errors.New("nickname already exists")

	// ErrInvalidNickname indicates a missing or malformed nickname
	ErrInvalidNickname = errors.New("invalid nickname")
)
