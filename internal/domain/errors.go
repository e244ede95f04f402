package domain

import "errors"

var (
	ErrTaskInProgress   = errors.New("a background task is already running")
	ErrUnknownTaskType  = errors.New("unknown task type")
	ErrUnknownFeature   = errors.New("unknown feature")
	ErrUnknownSignal    = errors.New("unknown activity signal")
	ErrNoSession        = errors.New("no session handle held")
	ErrRecordVersion    = errors.New("unsupported task record version")
	ErrRuntimeStopped   = errors.New("console runtime stopped")
	ErrNotificationGone = errors.New("notification not found")
)
