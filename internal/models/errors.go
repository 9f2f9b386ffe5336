package models

import (
	"errors"
	"fmt"
)

// Sentinel causes carried by PatchError.
var (
	// ErrNoAttentionLayers means the model exposes zero matching attention layers.
	ErrNoAttentionLayers = errors.New("no matching attention layers")

	// ErrSessionOpen means a patch session is already open for the model.
	ErrSessionOpen = errors.New("patch session already open")

	// ErrLayerPatched means a layer already carries this controller's wrapper.
	ErrLayerPatched = errors.New("layer already patched")
)

// ConfigurationError reports an invalid control-surface value. It is always
// raised before any model mutation and is never retried.
type ConfigurationError struct {
	Field  string `json:"field"`
	Value  any    `json:"value,omitempty"`
	Reason string `json:"reason"`
}

// NewConfigurationError creates a ConfigurationError.
func NewConfigurationError(field string, value any, reason string) *ConfigurationError {
	return &ConfigurationError{Field: field, Value: value, Reason: reason}
}

func (e *ConfigurationError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("configuration error: %s=%v: %s", e.Field, e.Value, e.Reason)
}

// PatchError reports a failure to open a patch session. Sampling must not proceed.
type PatchError struct {
	Model string
	Err   error
}

func (e *PatchError) Error() string {
	return fmt.Sprintf("patch error on model %s: %v", e.Model, e.Err)
}

func (e *PatchError) Unwrap() error {
	return e.Err
}

// RestoreFailure reports that an original attention callable could not be
// reinstated. The model must be treated as potentially contaminated.
type RestoreFailure struct {
	Model  string
	Layers []string
	Reason string
}

func (e *RestoreFailure) Error() string {
	return fmt.Sprintf("restore failure on model %s (%d layers): %s", e.Model, len(e.Layers), e.Reason)
}

// IsConfigurationError reports whether err wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// IsPatchError reports whether err wraps a PatchError.
func IsPatchError(err error) bool {
	var pe *PatchError
	return errors.As(err, &pe)
}

// IsRestoreFailure reports whether err wraps a RestoreFailure.
func IsRestoreFailure(err error) bool {
	var rf *RestoreFailure
	return errors.As(err, &rf)
}
