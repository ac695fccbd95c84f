/*
 * Copyright 2025 The RuleGo Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package logger

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level    Level
		expected string
	}{
		{DEBUG, "DEBUG"},
		{INFO, "INFO"},
		{WARN, "WARN"},
		{ERROR, "ERROR"},
		{OFF, "OFF"},
		{Level(999), "UNKNOWN"},
	}

	for _, test := range tests {
		assert.Equal(t, test.expected, test.level.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   DEBUG,
		"TRACE":   DEBUG,
		"info":    INFO,
		"warning": WARN,
		"error":   ERROR,
		"off":     OFF,
		"bogus":   INFO,
		"":        INFO,
	}
	for name, want := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, want, ParseLevel(name))
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(INFO, &buf)
	require.NotNil(t, log)

	log.Info("info message with %d number", 42)
	output := buf.String()
	assert.Contains(t, output, "info message with 42 number")
	assert.Contains(t, output, "level=info")
}

func TestLevelFiltering(t *testing.T) {
	tests := []struct {
		level   Level
		visible []string
		hidden  []string
	}{
		{DEBUG, []string{"d-msg", "i-msg", "w-msg", "e-msg"}, nil},
		{INFO, []string{"i-msg", "w-msg", "e-msg"}, []string{"d-msg"}},
		{WARN, []string{"w-msg", "e-msg"}, []string{"d-msg", "i-msg"}},
		{ERROR, []string{"e-msg"}, []string{"d-msg", "i-msg", "w-msg"}},
		{OFF, nil, []string{"d-msg", "i-msg", "w-msg", "e-msg"}},
	}

	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			var buf bytes.Buffer
			log := NewLogger(tt.level, &buf)
			log.Debug("d-msg")
			log.Info("i-msg")
			log.Warn("w-msg")
			log.Error("e-msg")

			output := buf.String()
			for _, msg := range tt.visible {
				assert.Contains(t, output, msg)
			}
			for _, msg := range tt.hidden {
				assert.NotContains(t, output, msg)
			}
		})
	}
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(ERROR, &buf)

	log.Debug("before")
	assert.Empty(t, buf.String())

	log.SetLevel(DEBUG)
	log.Debug("after")
	assert.Contains(t, buf.String(), "after")
}

func TestFromLogrusAndWithField(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	log := WithField(FromLogrus(l, DEBUG), "table", "orders")
	log.Debug("rebuilt")

	output := buf.String()
	assert.Contains(t, output, "rebuilt")
	assert.Contains(t, output, "table=orders")

	// foreign loggers pass through untouched
	discard := NewDiscardLogger()
	assert.Same(t, discard, WithField(discard, "k", "v"))
}

func TestDiscardLogger(t *testing.T) {
	log := NewDiscardLogger()
	assert.NotPanics(t, func() {
		log.Debug("x")
		log.Info("x")
		log.Warn("x")
		log.Error("x")
		log.SetLevel(DEBUG)
	})
}

func TestGlobalLogger(t *testing.T) {
	original := GetDefault()
	defer SetDefault(original)

	var buf bytes.Buffer
	SetDefault(NewLogger(DEBUG, &buf))

	Debug("global debug")
	Info("global info")
	Warn("global warn")
	Error("global error")

	output := buf.String()
	for _, msg := range []string{"global debug", "global info", "global warn", "global error"} {
		assert.Contains(t, output, msg)
	}
}

func TestConcurrentLogging(t *testing.T) {
	var buf safeBuffer
	log := NewLogger(INFO, &buf)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				log.Info("goroutine %d message %d", id, j)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 100, strings.Count(buf.String(), "goroutine"))
}

type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
