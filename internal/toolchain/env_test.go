package toolchain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnv_Defaults(t *testing.T) {
	env := Env(nil)
	assert.Equal(t, []string{"CARGO_TERM_COLOR=never", "CARGO_TERM_PROGRESS_WHEN=never"}, env)
}

func TestEnv_ConfiguredVarsOverrideAndSort(t *testing.T) {
	env := Env(map[string]string{
		"RUSTFLAGS":        "-C opt-level=s",
		"CARGO_TERM_COLOR": "always",
		"CARGO_HOME":       "/opt/cargo",
	})
	assert.Equal(t, []string{
		"CARGO_TERM_COLOR=always",
		"CARGO_TERM_PROGRESS_WHEN=never",
		"CARGO_HOME=/opt/cargo",
		"RUSTFLAGS=-C opt-level=s",
	}, env)
}

func TestEnv_DoesNotMutateDefaults(t *testing.T) {
	Env(map[string]string{"CARGO_TERM_COLOR": "always"})
	assert.Equal(t, "CARGO_TERM_COLOR=never", defaultEnv[0])
}

func TestMergeEnv(t *testing.T) {
	base := []string{"A=1", "B=2"}
	got := MergeEnv(base, "B=3", "C=4=5", "malformed", "=x")

	assert.Equal(t, []string{"A=1", "B=3", "C=4=5"}, got)
	assert.Equal(t, []string{"A=1", "B=2"}, base)
}
