// Package autoconfig contains the event decoder and stream supervisor for
// the LaunchDarkly relay auto-configuration stream.
//
// It abstracts away the SSE and JSON wire details so that the rest of
// ldactl only has to deal with Environment and Filter values appearing,
// changing, and disappearing.
package autoconfig
