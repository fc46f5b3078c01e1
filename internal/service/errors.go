package service

import "errors"

var (
	// ErrPersistence wraps failures of the audit and notification stores.
	ErrPersistence = errors.New("persistence failure")
	// ErrVisitNotFound is returned when a visit does not exist.
	ErrVisitNotFound = errors.New("visit not found")
	// ErrVisitForbidden is returned when the actor may not touch the visit.
	ErrVisitForbidden = errors.New("visit belongs to another volunteer")
	// ErrInvalidVisitState is returned when the visit status does not allow the transition.
	ErrInvalidVisitState = errors.New("visit status does not allow this action")
	// ErrEmptyAfterSanitization is returned when a required text field holds nothing but markup.
	ErrEmptyAfterSanitization = errors.New("input is empty after sanitization")
	// ErrNotificationNotFound is returned when a recipient-scoped notification lookup misses.
	ErrNotificationNotFound = errors.New("notification not found")
)
