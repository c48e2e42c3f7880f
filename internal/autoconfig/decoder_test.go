package autoconfig

import (
	"testing"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarqd/ldactl/internal/envstore"
	"github.com/tarqd/ldactl/internal/sse"
)

func event(name string, data string) sse.Frame {
	return sse.Frame{
		Kind: sse.FrameEvent,
		Event: sse.Event{
			Name: name,
			Data: []byte(data),
		},
	}
}

func TestDecodePutPopulatesStoreAndEmitsInitialized(t *testing.T) {
	store := envstore.NewStore()
	d := NewDecoder(store, ldlog.NewDisabledLoggers())

	result := d.Decode(event("put", `{"path":"/","data":{"environments":{"/e/A":{"envID":"c1","envKey":"dev","projKey":"p","mobKey":"m1","sdkKey":"s1","version":1}}}}`))

	require.NoError(t, result.Err)
	require.True(t, result.Initialized)
	require.Len(t, result.EnvChanges, 1)
	assert.Equal(t, KindInitialized, result.EnvChanges[0].Kind)
	assert.Equal(t, "s1", string(result.EnvChanges[0].Env.SDKKey))

	stored, ok := store.Environment("/e/A")
	require.True(t, ok)
	assert.Equal(t, "dev", stored.EnvKey)
}

func TestDecodePatchInsertThenUpdate(t *testing.T) {
	store := envstore.NewStore()
	d := NewDecoder(store, ldlog.NewDisabledLoggers())

	result := d.Decode(event("patch", `{"path":"/e/A","data":{"envID":"c1","envKey":"dev","projKey":"p","mobKey":"m1","sdkKey":"s1","version":1}}`))
	require.NoError(t, result.Err)
	require.Len(t, result.EnvChanges, 1)
	assert.Equal(t, KindInsert, result.EnvChanges[0].Kind)

	result = d.Decode(event("patch", `{"path":"/e/A","data":{"envID":"c1","envKey":"dev","projKey":"p","mobKey":"m2","sdkKey":"s2","version":2}}`))
	require.NoError(t, result.Err)
	require.Len(t, result.EnvChanges, 1)
	assert.Equal(t, KindUpdate, result.EnvChanges[0].Kind)
	assert.Equal(t, "s2", string(result.EnvChanges[0].Env.SDKKey))
}

// A patch is an upsert regardless of its version relative to what's stored;
// it must never be silently dropped for arriving "out of order".
func TestDecodePatchAppliesEvenWithLowerVersion(t *testing.T) {
	store := envstore.NewStore()
	d := NewDecoder(store, ldlog.NewDisabledLoggers())

	d.Decode(event("patch", `{"path":"/e/A","data":{"envID":"c1","envKey":"dev","projKey":"p","mobKey":"m1","sdkKey":"s1","version":5}}`))

	result := d.Decode(event("patch", `{"path":"/e/A","data":{"envID":"c1","envKey":"dev","projKey":"p","mobKey":"m1","sdkKey":"s-downgraded","version":1}}`))
	require.NoError(t, result.Err)
	require.Len(t, result.EnvChanges, 1)
	assert.Equal(t, KindUpdate, result.EnvChanges[0].Kind)
	assert.Equal(t, "s-downgraded", string(result.EnvChanges[0].Env.SDKKey))

	stored, ok := store.Environment("/e/A")
	require.True(t, ok)
	assert.Equal(t, "s-downgraded", string(stored.SDKKey))
}

func TestDecodePatchCarriesExpiringSDKKeyAsSiblingField(t *testing.T) {
	store := envstore.NewStore()
	d := NewDecoder(store, ldlog.NewDisabledLoggers())

	result := d.Decode(event("patch", `{"path":"/e/A","data":{"envID":"c1","envKey":"dev","projKey":"p","mobKey":"m1","sdkKey":"s-new","expiringSdkKey":{"value":"s-old","timestamp":1700000000000},"version":1}}`))

	require.NoError(t, result.Err)
	require.Len(t, result.EnvChanges, 1)
	env := result.EnvChanges[0].Env
	assert.Equal(t, "s-new", string(env.SDKKey))
	assert.Equal(t, "s-old", string(env.ExpiringSDKKey))
}

func TestDecodeDeleteHonorsVersionOnly(t *testing.T) {
	store := envstore.NewStore()
	d := NewDecoder(store, ldlog.NewDisabledLoggers())

	d.Decode(event("patch", `{"path":"/e/A","data":{"envID":"c1","envKey":"dev","projKey":"p","mobKey":"m1","sdkKey":"s1","version":2}}`))

	stale := d.Decode(event("delete", `{"path":"/e/A","version":1}`))
	require.NoError(t, stale.Err)
	assert.Empty(t, stale.EnvChanges)

	current := d.Decode(event("delete", `{"path":"/e/A","version":2}`))
	require.NoError(t, current.Err)
	require.Len(t, current.EnvChanges, 1)
	assert.Equal(t, KindDelete, current.EnvChanges[0].Kind)

	_, ok := store.Environment("/e/A")
	assert.False(t, ok)
}

func TestDecodeFilterPatchAndDeleteNeverTouchEnvChanges(t *testing.T) {
	store := envstore.NewStore()
	d := NewDecoder(store, ldlog.NewDisabledLoggers())

	result := d.Decode(event("patch", `{"path":"/filters/f1","data":{"projKey":"p","key":"beta","version":1}}`))
	require.NoError(t, result.Err)
	require.Len(t, result.FilterChanges, 1)
	assert.Empty(t, result.EnvChanges)

	_, ok := store.Filter("/filters/f1")
	assert.True(t, ok)

	result = d.Decode(event("delete", `{"path":"/filters/f1","version":1}`))
	require.NoError(t, result.Err)
	require.Len(t, result.FilterChanges, 1)
	assert.Empty(t, result.EnvChanges)

	_, ok = store.Filter("/filters/f1")
	assert.False(t, ok)
}

func TestDecodeMalformedPatchReturnsError(t *testing.T) {
	store := envstore.NewStore()
	d := NewDecoder(store, ldlog.NewDisabledLoggers())

	result := d.Decode(event("patch", `not json`))
	assert.Error(t, result.Err)
}

func TestDecodeRetryFrameYieldsHint(t *testing.T) {
	store := envstore.NewStore()
	d := NewDecoder(store, ldlog.NewDisabledLoggers())

	result := d.Decode(sse.Frame{Kind: sse.FrameRetry, RetryMS: 5000})
	require.NotNil(t, result.Retry)
	assert.Equal(t, 5*1000, int(result.Retry.Delay.Milliseconds()))
}

func TestDecodeCommentFrameIsIgnored(t *testing.T) {
	store := envstore.NewStore()
	d := NewDecoder(store, ldlog.NewDisabledLoggers())

	result := d.Decode(sse.Frame{Kind: sse.FrameComment, Comment: "heartbeat"})
	assert.Nil(t, result.Retry)
	assert.Empty(t, result.EnvChanges)
	assert.NoError(t, result.Err)
}

// A path that doesn't start with the filter prefix is routed as an
// environment path, not dropped -- this includes every shape the source
// itself sends, which never uses a reserved environment prefix.
func TestDecodeNonFilterPathIsRoutedAsEnvironment(t *testing.T) {
	store := envstore.NewStore()
	d := NewDecoder(store, ldlog.NewDisabledLoggers())

	result := d.Decode(event("patch", `{"path":"/e/A","data":{"envID":"c1","envKey":"dev","projKey":"p","mobKey":"m1","sdkKey":"s1","version":1}}`))
	assert.NoError(t, result.Err)
	require.Len(t, result.EnvChanges, 1)
	assert.Empty(t, result.FilterChanges)

	_, ok := store.Environment("/e/A")
	assert.True(t, ok)
}
