package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esche888/appcollab-sub000/internal/config"
)

func TestParseVars(t *testing.T) {
	vars, err := parseVars([]string{"projectTitle=Atlas", "feedback=a=b", "empty="})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"projectTitle": "Atlas",
		"feedback":     "a=b",
		"empty":        "",
	}, vars)

	_, err = parseVars([]string{"novalue"})
	assert.Error(t, err)

	_, err = parseVars([]string{"=x"})
	assert.Error(t, err)
}

func TestNewApp_WithoutDatabase(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("GEMINI_API_KEY", "")

	c := config.Default()
	a, err := newApp(c, modeServer)
	require.NoError(t, err)
	defer a.close(t.Context())

	assert.Nil(t, a.db)
	assert.Nil(t, a.worker)
	assert.Nil(t, a.recorder)

	deps := a.dependencies()
	assert.Nil(t, deps.Usage)
	assert.Nil(t, deps.DeadLetters)
	assert.Nil(t, deps.Health)

	res, err := a.service.GetActiveModel(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "openai", string(res.Model))
}

func TestRequireDB_NotConfigured(t *testing.T) {
	cfg = config.Default()
	_, err := requireDB()
	assert.Error(t, err)
}
