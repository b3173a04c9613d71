// Package stager stages inline binary data at a fetchable URL. Some providers
// only accept source images as public URLs, so adapters hand base64 payloads
// here before submission. Staging is best-effort infrastructure, injected into
// the adapters that need it so they stay testable without object storage.
package stager

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ErrNotConfigured is returned by Disabled when staging is attempted without
// object storage configured.
var ErrNotConfigured = errors.New("stager: object storage is not configured")

// ErrInvalidDataURI is returned when an inline image is not a base64 data URI.
var ErrInvalidDataURI = errors.New("stager: invalid data URI")

// Stager uploads data and returns a publicly fetchable URL for it.
type Stager interface {
	Stage(ctx context.Context, data []byte, contentType string) (url string, err error)
}

// Disabled is the Stager used when no object storage is configured.
type Disabled struct{}

// Stage always fails with ErrNotConfigured.
func (Disabled) Stage(context.Context, []byte, string) (string, error) {
	return "", ErrNotConfigured
}

// Compile-time check that Disabled implements Stager.
var _ Stager = Disabled{}

// DecodeDataURI splits a "data:<type>;base64,<payload>" URI into its decoded
// bytes and content type.
func DecodeDataURI(uri string) (data []byte, contentType string, err error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return nil, "", ErrInvalidDataURI
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", ErrInvalidDataURI
	}
	contentType, _, _ = strings.Cut(meta, ";")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if !strings.HasSuffix(meta, ";base64") {
		return nil, "", fmt.Errorf("%w: not base64 encoded", ErrInvalidDataURI)
	}
	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidDataURI, err)
	}
	return data, contentType, nil
}
