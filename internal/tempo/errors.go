// SPDX-License-Identifier: MIT
package tempo

import (
	"errors"
	"fmt"
)

// ConfigError reports an invalid engine configuration. It is the only error
// the engine ever returns synchronously; all runtime conditions surface
// through DetectionState.Status instead.
type ConfigError struct {
	Field  string // The offending option, e.g. "fft_size".
	Reason string // The violated constraint.
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("tempo: invalid config: %s: %s", e.Field, e.Reason)
}

// Internal invariant breaches. These never escape the engine; they flip the
// published status to StatusError and force a reset.
var (
	errWindowNotReady   = errors.New("tempo: window extracted before ready")
	errNonMonotonicBeat = errors.New("tempo: beat timestamp not after previous")
)
