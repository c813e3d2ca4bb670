// Copyright 2026 Blindspot Software
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package engine

import (
	"fmt"
	"strings"

	"go.uber.org/zap/zapcore"
)

// LogLevel is the verbosity an engine runs with.
type LogLevel int

const (
	LogLevelTrace LogLevel = iota
	LogLevelDebug
	LogLevelInfo
	LogLevelWarn
	LogLevelError
	LogLevelCritical
	LogLevelOff
)

var levelNames = map[LogLevel]string{
	LogLevelTrace:    "trace",
	LogLevelDebug:    "debug",
	LogLevelInfo:     "info",
	LogLevelWarn:     "warn",
	LogLevelError:    "error",
	LogLevelCritical: "critical",
	LogLevelOff:      "off",
}

func (l LogLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}

	return fmt.Sprintf("LogLevel(%d)", int(l))
}

// ParseLogLevel parses a level name, case-insensitively.
func ParseLogLevel(s string) (LogLevel, error) {
	for level, name := range levelNames {
		if strings.EqualFold(s, name) {
			return level, nil
		}
	}

	return LogLevelInfo, fmt.Errorf("unknown log level %q", s)
}

// ZapLevel maps the level onto zap. Trace has no zap counterpart and maps to
// debug; off maps above fatal so nothing is enabled.
func (l LogLevel) ZapLevel() zapcore.Level {
	switch l {
	case LogLevelTrace, LogLevelDebug:
		return zapcore.DebugLevel
	case LogLevelInfo:
		return zapcore.InfoLevel
	case LogLevelWarn:
		return zapcore.WarnLevel
	case LogLevelError:
		return zapcore.ErrorLevel
	case LogLevelCritical:
		return zapcore.DPanicLevel
	default:
		return zapcore.FatalLevel + 1
	}
}
