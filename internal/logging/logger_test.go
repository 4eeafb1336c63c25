package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observe(t *testing.T, enabled map[string]bool) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	SetBase(zap.New(core), enabled)
	t.Cleanup(func() { SetBase(nil, nil) })
	return logs
}

func TestGet_NamesLoggerByCategory(t *testing.T) {
	logs := observe(t, nil)

	Get(CategoryRewrite).Info("pass %s done", "eliminate")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "rewrite", entries[0].LoggerName)
	assert.Equal(t, "pass eliminate done", entries[0].Message)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
}

func TestGet_DisabledCategoryIsSilent(t *testing.T) {
	logs := observe(t, map[string]bool{"syntax": false})

	SyntaxDebug("should not appear")
	RewriteDebug("should appear")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "rewrite", entries[0].LoggerName)
	assert.False(t, IsCategoryEnabled(CategorySyntax))
	assert.True(t, IsCategoryEnabled(CategoryBuild), "unlisted categories default to enabled")
}

func TestGet_CachesPerCategory(t *testing.T) {
	observe(t, nil)
	assert.Same(t, Get(CategoryCrates), Get(CategoryCrates))
	assert.Equal(t, CategoryCrates, Get(CategoryCrates).Category())
}

func TestWith_CarriesFields(t *testing.T) {
	logs := observe(t, nil)

	Get(CategoryBuild).With("run_id", "abc").Warn("slow target")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "abc", entries[0].ContextMap()["run_id"])
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{"debug", zapcore.DebugLevel, false},
		{"", zapcore.InfoLevel, false},
		{"WARNING", zapcore.WarnLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"loud", zapcore.InfoLevel, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInitialize_WritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "expandinator.log")
	require.NoError(t, Initialize(Options{Level: "debug", Format: "json", OutputPath: path}))
	t.Cleanup(func() { SetBase(nil, nil) })

	Build("building %s", "serde_derive")
	Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `"logger":"build"`), string(data))
	assert.True(t, strings.Contains(string(data), "building serde_derive"))
}

func TestInitialize_RejectsUnknownLevel(t *testing.T) {
	assert.Error(t, Initialize(Options{Level: "chatty"}))
}
