package org

import "errors"

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrUserNotFound       = errors.New("user not found")
	ErrStructureNotFound  = errors.New("structure not found")
	ErrParentNotFound     = errors.New("parent structure not found")
	ErrPermissionNotFound = errors.New("permission not found")
	ErrDuplicateName      = errors.New("duplicate structure name")
	ErrPathConflict       = errors.New("path conflict")
	ErrMaxDepthExceeded   = errors.New("maximum hierarchy depth exceeded")
	ErrAlreadyGranted     = errors.New("permission already granted")
	ErrEmailTaken         = errors.New("email already registered")

	// ErrNotAccessible means the caller's resolved scope does not include the
	// structure. Callers must not learn from this whether the structure exists.
	ErrNotAccessible = errors.New("structure not accessible")
)
