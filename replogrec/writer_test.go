package replogrec_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/replog/replog-go/replognum"
	"github.com/replog/replog-go/replogrec"
)

func TestWriterEmitsHeaderOnce(t *testing.T) {
	var buf bytes.Buffer
	w := replogrec.NewWriter(&buf)

	record := replogrec.Record{
		Meta: replogrec.MetaNow("ThreadId(1)", "main"),
		Trace: replogrec.Trace{RegisterCallsite: &replogrec.Metadata{
			ID: 1, Name: "cs", Target: "t", Level: replognum.InfoLevel, Kind: replognum.KindEvent,
		}},
	}
	require.NoError(t, w.WriteRecord(record))
	require.NoError(t, w.WriteRecord(record))

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)

	header, err := replogrec.DecodeHeader([]byte(lines[0]))
	require.NoError(t, err)
	require.NotNil(t, header)
	assert.Equal(t, replogrec.FormatVersion, header.Version)
	assert.NoError(t, header.CheckVersion())

	for _, line := range lines[1:] {
		header, err := replogrec.DecodeHeader([]byte(line))
		require.NoError(t, err)
		assert.Nil(t, header, "record lines are not headers")
		_, err = replogrec.DecodeLine([]byte(line))
		assert.NoError(t, err)
	}
}

func TestHeaderVersionCompatibility(t *testing.T) {
	assert.NoError(t, replogrec.Header{Version: "1.0.0"}.CheckVersion())
	assert.NoError(t, replogrec.Header{Version: "1.9.3"}.CheckVersion())
	assert.Error(t, replogrec.Header{Version: "2.0.0"}.CheckVersion())
	assert.Error(t, replogrec.Header{Version: "bogus"}.CheckVersion())
}
