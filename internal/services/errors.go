// internal/services/errors.go
package services

import "errors"

// Engine error taxonomy. Callers match with errors.Is; messages carry the
// identifying context of the proposal or order involved. Unverified pricing
// is deliberately absent: it is an annotation on the computed tree, never an
// error.
var (
	// ErrNotFound: proposal, order or referenced record absent.
	ErrNotFound = errors.New("not found")

	// ErrConflict: locking refused (terminal status) or a state transition
	// the lifecycle does not permit.
	ErrConflict = errors.New("conflict")

	// ErrPrecondition: conversion attempted before acceptance/lock.
	ErrPrecondition = errors.New("precondition failed")
)
