// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package commons

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewLoggerBuildsForEveryLevelAndEncoding(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", ""} {
		for _, json := range []bool{true, false} {
			l := NewLogger(LogConfig{Level: level, JSON: json})
			assert.NotNil(t, l)
			l.Infof("hello %s", "world")
			l.Warn("warn")
			l.Error("err")
			l.Benchmark("op", time.Millisecond)
		}
	}
}

func TestLoggerWithReturnsIndependentLogger(t *testing.T) {
	l := NewNop()
	child := l.With("request_id", "abc")
	assert.NotNil(t, child)
	child.Info("scoped")
}

func TestNewLoggerRotatesThroughFileSinkWithoutPanicking(t *testing.T) {
	dir := t.TempDir()
	l := NewLogger(LogConfig{Level: "info", FilePath: dir + "/gateway.log", MaxSizeMB: 1, MaxBackups: 1, MaxAgeDays: 1})
	l.Info("rotated sink smoke test")
}
