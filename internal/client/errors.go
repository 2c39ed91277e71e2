package client

import "errors"

var (
	// ErrMissingImageURL means a backend answered but no URL-bearing field
	// was found in any of the known response shapes.
	ErrMissingImageURL = errors.New("backend response missing image URL")

	// ErrPredictionTimeout means the prediction poll loop exceeded its bound.
	ErrPredictionTimeout = errors.New("prediction timed out")

	// ErrNotConfigured means a client is missing credentials and cannot be used.
	ErrNotConfigured = errors.New("client not configured")
)
