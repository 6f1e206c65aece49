package logsink

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHexDumpSingleShortLine(t *testing.T) {
	out := HexDump([]byte("abc"))
	assert.True(t, strings.HasPrefix(out, "00000000: 61 62 63"))
	assert.Contains(t, out, "abc")
}

func TestHexDumpWrapsAtSixteenBytes(t *testing.T) {
	data := make([]byte, 20)
	for i := range data {
		data[i] = byte(i)
	}
	out := HexDump(data)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	assert.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "00000000:"))
	assert.True(t, strings.HasPrefix(lines[1], "00000010:"))
}

func TestHexDumpEmptyInputProducesNoLines(t *testing.T) {
	assert.Equal(t, "", HexDump(nil))
}

func TestHexDumpNonPrintableBytesShownAsDot(t *testing.T) {
	out := HexDump([]byte{0x00, 0x01, 0xFF})
	assert.Contains(t, out, "...")
}
