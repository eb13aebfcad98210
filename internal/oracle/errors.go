// Package oracle provides clients for the win-probability service.
package oracle

import "errors"

var (
	// ErrOracleUnavailable indicates the probability service is unreachable
	ErrOracleUnavailable = errors.New("oracle service unavailable")

	// ErrInvalidPrediction indicates the prediction response is malformed
	ErrInvalidPrediction = errors.New("invalid prediction response")

	// ErrInsufficientFeatures indicates the snapshot lacks the inputs the model needs
	ErrInsufficientFeatures = errors.New("insufficient entrant features")
)
