// Package credential defines the typed credential wrappers used throughout
// ldactl, plus the SDK key rotation timer used to implement expiring keys.
package credential

// SDKCredential is implemented by types that represent an SDK authorization
// credential. It never validates the semantic meaning of the value it
// wraps -- it only knows how to present it for logging and for transport.
type SDKCredential interface {
	// GetAuthorizationHeaderValue returns the value that should be passed
	// in an HTTP Authorization header when using this credential, or ""
	// if the credential is not presented that way.
	GetAuthorizationHeaderValue() string
	// Defined returns true if the credential is non-empty.
	Defined() bool
	// Masked returns a form of the credential suitable for log messages:
	// never the full value, so credentials are never logged in the clear.
	Masked() string
}

// AutoConfigKey is the relay auto-configuration key used to authenticate
// the streaming connection itself.
type AutoConfigKey string

// SDKKey is a server-side SDK key for a single environment.
type SDKKey string

// MobileKey is a mobile SDK key for a single environment.
type MobileKey string

// EnvironmentID is the client-side identifier for a single environment,
// also referred to as the environment's "client ID".
type EnvironmentID string

// FilterID is the identifier for a named traffic-split filter.
type FilterID string

func (k AutoConfigKey) GetAuthorizationHeaderValue() string { return string(k) }
func (k AutoConfigKey) Defined() bool                       { return k != "" }
func (k AutoConfigKey) Masked() string                      { return mask(string(k)) }

func (k SDKKey) GetAuthorizationHeaderValue() string { return string(k) }
func (k SDKKey) Defined() bool                       { return k != "" }
func (k SDKKey) Masked() string                      { return mask(string(k)) }

func (k MobileKey) GetAuthorizationHeaderValue() string { return string(k) }
func (k MobileKey) Defined() bool                       { return k != "" }
func (k MobileKey) Masked() string                      { return mask(string(k)) }

func (id EnvironmentID) Defined() bool { return id != "" }

// mask returns only the last 4 characters of a credential, preceded by
// ellipsis, so log lines can refer to "which key" without exposing it.
func mask(s string) string {
	if len(s) <= 4 {
		return "..." + s
	}
	return "..." + s[len(s)-4:]
}
