package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestYAMLFormat(t *testing.T) {
	var buf bytes.Buffer
	f := &YAMLFormatter{}
	require.NoError(t, f.Format(&buf, sampleResult()))

	var out yamlOutput
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &out))

	require.Len(t, out.Candidates, 2)
	assert.Equal(t, "/Users/dev/Library/Caches/pip", out.Candidates[0].Path)
	assert.Equal(t, "directory", out.Candidates[0].Kind)

	assert.Equal(t, "run-0142", out.Meta.RunID)
	assert.Equal(t, "2.7 GiB", out.Meta.TotalSizeHuman)

	require.Len(t, out.Stages, 1)
	assert.Equal(t, "migrate", out.Stages[0].Stage)
	assert.Equal(t, "2m10s", out.Stages[0].Duration)
}

func TestYAMLFormatStructure(t *testing.T) {
	var buf bytes.Buffer
	f := &YAMLFormatter{}
	require.NoError(t, f.Format(&buf, sampleResult()))
	out := buf.String()

	assert.Contains(t, out, "candidates:")
	assert.Contains(t, out, "meta:")
	assert.Contains(t, out, "stages:")
}
