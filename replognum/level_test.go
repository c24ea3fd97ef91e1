package replognum_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/replog/replog-go/replognum"
)

func TestLevelString(t *testing.T) {
	assert.Equal(t, "Warn", replognum.WarnLevel.String())

	level, err := replognum.LevelString("Error")
	require.NoError(t, err)
	assert.Equal(t, replognum.ErrorLevel, level)

	_, err = replognum.LevelString("shouting")
	assert.Error(t, err)
}

func TestLevelJSON(t *testing.T) {
	encoded, err := json.Marshal(replognum.DebugLevel)
	require.NoError(t, err)
	assert.Equal(t, `"Debug"`, string(encoded))

	var level replognum.Level
	require.NoError(t, json.Unmarshal([]byte(`"Trace"`), &level))
	assert.Equal(t, replognum.TraceLevel, level)
	assert.Error(t, json.Unmarshal([]byte(`"Deafening"`), &level))
}

func TestKindJSON(t *testing.T) {
	encoded, err := json.Marshal(replognum.KindSpan)
	require.NoError(t, err)
	assert.Equal(t, `"Span"`, string(encoded))

	var kind replognum.Kind
	require.NoError(t, json.Unmarshal([]byte(`"Event"`), &kind))
	assert.Equal(t, replognum.KindEvent, kind)
}
