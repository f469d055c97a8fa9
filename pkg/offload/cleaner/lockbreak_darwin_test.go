//go:build darwin

package cleaner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLsof(t *testing.T) {
	out := []byte("p314\ncpython3\np1590\ncmlx_worker\n")
	procs := parseLsof(out, 99999)
	assert.Equal(t, []Process{
		{PID: 314, Name: "python3"},
		{PID: 1590, Name: "mlx_worker"},
	}, procs)
}

func TestParseLsofSkipsSelf(t *testing.T) {
	out := []byte("p314\ncpython3\np42\ncoffload\n")
	procs := parseLsof(out, 42)
	assert.Equal(t, []Process{{PID: 314, Name: "python3"}}, procs)
}

func TestParseLsofEmpty(t *testing.T) {
	assert.Empty(t, parseLsof(nil, 1))
	assert.Empty(t, parseLsof([]byte("\n"), 1))
}
