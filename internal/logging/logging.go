// Package logging builds ldactl's ldlog.Loggers and provides the
// credential-redaction helper used when echoing raw stream data at debug
// level.
package logging

import (
	"io"
	"log"
	"os"
	"regexp"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

// used to obscure SDK keys and mobile keys inside raw JSON payloads when
// they are logged at debug level.
var (
	sdkKeyJSONRegex         = regexp.MustCompile(`"sdkKey":\s*"[^"]*([^"][^"][^"][^"])"`)
	expiringSDKKeyJSONRegex = regexp.MustCompile(`("expiringSdkKey":\s*\{\s*"value":\s*")[^"]*([^"][^"][^"][^"])"`)
	mobKeyJSONRegex         = regexp.MustCompile(`"mobKey":\s*"[^"]*([^"][^"][^"][^"])"`)
)

// New returns an ldlog.Loggers that writes debug/info to stdout and
// warn/error to stderr, filtered to minLevel.
func New(minLevel ldlog.LogLevel) ldlog.Loggers {
	loggers := ldlog.Loggers{}
	loggers.SetBaseLoggerForLevel(ldlog.Debug, makeLog(handleFor(ldlog.Debug, minLevel, os.Stdout)))
	loggers.SetBaseLoggerForLevel(ldlog.Info, makeLog(handleFor(ldlog.Info, minLevel, os.Stdout)))
	loggers.SetBaseLoggerForLevel(ldlog.Warn, makeLog(handleFor(ldlog.Warn, minLevel, os.Stderr)))
	loggers.SetBaseLoggerForLevel(ldlog.Error, makeLog(handleFor(ldlog.Error, minLevel, os.Stderr)))
	loggers.SetMinLevel(minLevel)
	loggers.SetPrefix("ldactl")
	return loggers
}

func handleFor(level, minLevel ldlog.LogLevel, w io.Writer) io.Writer {
	if level < minLevel {
		return io.Discard
	}
	return w
}

func makeLog(w io.Writer) *log.Logger {
	return log.New(w, "", log.Ldate|log.Ltime|log.Lmicroseconds)
}

// ObfuscatePayload redacts SDK and mobile key values inside a raw stream
// payload, for use in debug-level log lines that echo the wire data.
func ObfuscatePayload(data string) string {
	data = sdkKeyJSONRegex.ReplaceAllString(data, `"sdkKey":"...$1"`)
	data = expiringSDKKeyJSONRegex.ReplaceAllString(data, `${1}...$2"`)
	data = mobKeyJSONRegex.ReplaceAllString(data, `"mobKey":"...$1"`)
	return data
}
