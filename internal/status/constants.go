// internal/status/constants.go
package status

// Health codes reported per meter.
// These values are part of the device_info contract and MUST NOT change.

// HealthUnknown represents a meter that has not produced a value yet.
const HealthUnknown uint16 = 0

// HealthOK represents a meter updated within the stale window.
const HealthOK uint16 = 1

// HealthStale represents a meter whose last update is older than the stale window.
const HealthStale uint16 = 3

// HealthDisabled represents an acquisition line turned off in config.
const HealthDisabled uint16 = 4

// ---- LIMITS ----

// MaxAgeSeconds caps the reported age. Age MUST NOT wrap.
const MaxAgeSeconds = 65535

// ---- LINK FLAGS ----

// Link values as the device_info reply spells them.
const (
	LinkUp   = "ok"
	LinkDown = "-"
)

// HealthName returns the wire name of a health code.
func HealthName(h uint16) string {
	switch h {
	case HealthUnknown:
		return "unknown"
	case HealthOK:
		return "ok"
	case HealthStale:
		return "stale"
	case HealthDisabled:
		return "disabled"
	default:
		return "invalid"
	}
}
