package debug

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInitWith(t *testing.T) {
	var buf bytes.Buffer
	t.Cleanup(func() { Init(false) })

	InitWith(&buf, FormatJSON, false)
	Debug("hidden")
	Warn("analysis fell back", "sql", "select 1")
	assert.False(t, Enabled())
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"analysis fell back"`)

	buf.Reset()
	InitWith(&buf, FormatText, true)
	With("table", "fighters").Debug("compiled")
	assert.True(t, Enabled())
	assert.Contains(t, buf.String(), "table=fighters")
}
