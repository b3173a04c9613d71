// Package id provides unique identifier generation for generation tasks.
package id

import "github.com/google/uuid"

// New returns a new unique task id.
func New() string {
	return uuid.NewString()
}
