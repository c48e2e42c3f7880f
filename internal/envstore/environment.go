package envstore

import (
	"fmt"
	"time"

	"github.com/tarqd/ldactl/internal/credential"
)

// Environment is the unit of configuration the auto-configuration stream
// delivers: one LaunchDarkly project+environment pair's credentials and
// metadata.
type Environment struct {
	// Path is the stream-assigned primary key, unique per environment.
	Path string
	// ProjectKey is the logical project identifier.
	ProjectKey string
	// EnvKey is the logical environment identifier within the project.
	EnvKey string
	// EnvID is the client-side identifier, also called the client ID.
	EnvID credential.EnvironmentID
	// MobileKey is the mobile SDK credential.
	MobileKey credential.MobileKey
	// SDKKey is the server-side SDK credential.
	SDKKey credential.SDKKey
	// Version is the server-assigned generation counter, monotonic per path.
	Version int

	// ExpiringSDKKey is an old SDK key that remains valid until
	// ExpiringSDKKeyExpiresAt. It is the zero value if there is none.
	ExpiringSDKKey credential.SDKKey
	// ExpiringSDKKeyExpiresAt is the timestamp at which ExpiringSDKKey
	// stops being valid. Meaningless if ExpiringSDKKey is not Defined().
	ExpiringSDKKeyExpiresAt time.Time
}

// Describe returns a short human-readable identifier for log messages. It
// never includes a credential value.
func (e Environment) Describe() string {
	return fmt.Sprintf("%s/%s (%s)", e.ProjectKey, e.EnvKey, e.Path)
}

// Filter is a named, project-scoped traffic-split configuration that
// streams alongside environments using the same Put/Patch/Delete
// discipline.
type Filter struct {
	Path       string
	ProjectKey string
	FilterKey  string
	Version    int
}

// Describe returns a short human-readable identifier for log messages.
func (f Filter) Describe() string {
	return fmt.Sprintf("%s/%s (%s)", f.ProjectKey, f.FilterKey, f.Path)
}
