package service

import "errors"

var (
	ErrFormNotFound    = errors.New("form not found")
	ErrSessionNotFound = errors.New("session not found")
	ErrControlNotFound = errors.New("control not found")
	ErrNotDropDown     = errors.New("control is not a drop-down")
	ErrJobNotFound     = errors.New("import job not found")
	ErrJobRunning      = errors.New("import job already running")
)
