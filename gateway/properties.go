package gateway

import (
	"runtime"
	"sync"

	"github.com/emberlink/gatewire/internal/wire"
)

// IdentifyProperties is the public alias for the wire-level properties
// object sent on every IDENTIFY.
type IdentifyProperties = wire.IdentifyProperties

var (
	defaultPropsOnce sync.Once
	defaultProps     IdentifyProperties
)

// DefaultProperties assembles the process-wide IDENTIFY properties once, on
// first use, and returns the cached value on every subsequent call (§9:
// properties are process-wide constants, not per-connection).
func DefaultProperties() IdentifyProperties {
	defaultPropsOnce.Do(func() {
		defaultProps = IdentifyProperties{
			OS:      runtime.GOOS,
			Browser: "gatewire",
			Device:  "gatewire",
		}
	})
	return defaultProps
}
