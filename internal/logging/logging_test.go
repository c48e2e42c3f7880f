package logging

import (
	"io"
	"strings"
	"testing"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/stretchr/testify/assert"
)

func TestObfuscatePayloadRedactsSDKKey(t *testing.T) {
	in := `{"sdkKey":"sdk-abcdef123456","version":1}`
	out := ObfuscatePayload(in)
	assert.Contains(t, out, `"sdkKey":"...3456"`)
	assert.NotContains(t, out, "sdk-abcdef123456")
}

func TestObfuscatePayloadRedactsExpiringSDKKey(t *testing.T) {
	in := `{"sdkKey":"sdk-new","expiringSdkKey":{"value":"sdk-abcdef123456","timestamp":1700000000000}}`
	out := ObfuscatePayload(in)
	assert.Contains(t, out, `"expiringSdkKey":{"value":"...3456"`)
	assert.NotContains(t, out, "sdk-abcdef123456")
}

func TestObfuscatePayloadRedactsMobileKey(t *testing.T) {
	in := `{"mobKey":"mob-abcdef123456"}`
	out := ObfuscatePayload(in)
	assert.Contains(t, out, `"mobKey":"...3456"`)
	assert.NotContains(t, out, "mob-abcdef123456")
}

func TestObfuscatePayloadLeavesOtherFieldsAlone(t *testing.T) {
	in := `{"envKey":"dev","projKey":"p"}`
	assert.Equal(t, in, ObfuscatePayload(in))
}

func TestHandleForDiscardsBelowMinLevel(t *testing.T) {
	w := handleFor(ldlog.Debug, ldlog.Warn, io.Discard)
	assert.Equal(t, io.Discard, w)
}

func TestHandleForPassesThroughAtOrAboveMinLevel(t *testing.T) {
	var buf strings.Builder
	w := handleFor(ldlog.Error, ldlog.Warn, &buf)
	assert.NotEqual(t, io.Discard, w)
}

func TestNewDoesNotPanicAtAnyLevel(t *testing.T) {
	loggers := New(ldlog.Warn)
	assert.NotPanics(t, func() {
		loggers.Debugf("below min level, should be discarded")
		loggers.Warnf("at min level")
		loggers.Errorf("above min level")
	})
}
