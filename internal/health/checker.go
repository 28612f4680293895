// Package health provides readiness checks for the API's external
// dependencies.
package health

import "context"

// Checker reports whether one dependency is usable. A nil error means
// healthy.
type Checker interface {
	HealthCheck(ctx context.Context) error
}
