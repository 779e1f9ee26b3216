package query

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dtnitsch/school-kb/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeKB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kb.csv")
	data := "question,answer,pregunta,respuesta\n" +
		"What time does school start?,8am,¿A qué hora empieza la escuela?,A las 8\n" +
		"Where is the office?,Building A,,\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))
	return path
}

func TestRun(t *testing.T) {
	path := writeKB(t)

	var buf bytes.Buffer
	require.NoError(t, Run(context.Background(), &buf, nil, path, "what time does school start", 0.55))

	var out Output
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, path, out.Source)
	assert.Equal(t, map[models.Language]int{models.English: 2, models.Spanish: 1, models.Japanese: 0}, out.Counts)
	require.NotNil(t, out.Match)
	assert.Equal(t, "8am", out.Match.Answer)
	assert.Greater(t, out.Match.Similarity, 0.9)
}

func TestRunNoMatch(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Run(context.Background(), &buf, nil, writeKB(t), "xyz completely unrelated", 0.55))
	assert.Contains(t, buf.String(), "match: null")
}

func TestRunZeroCutoffAlwaysMatches(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Run(context.Background(), &buf, nil, writeKB(t), "xyz completely unrelated", 0))

	var out Output
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &out))
	require.NotNil(t, out.Match)
	assert.Equal(t, "A las 8", out.Match.Answer)
	assert.Less(t, out.Match.Similarity, 0.55)
}

func TestRunMissingSource(t *testing.T) {
	var buf bytes.Buffer
	err := Run(context.Background(), &buf, nil, filepath.Join(t.TempDir(), "missing.csv"), "q", 0.55)
	assert.Error(t, err)
	assert.Empty(t, buf.String())
}
