package logsink

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gridmerge/gbtsim/gbt"
)

func TestTranscriptLineHasNoANSIEscapesAndUsesPlainDirFormat(t *testing.T) {
	var transcript bytes.Buffer
	s := New(&transcript, nil)

	s.Deliver("CLT", "SVR", gbt.APDU{LB: true, BN: 1, BNA: 0, STR: false, W: 63, BD: []byte("hi")})
	s.Close()

	line := transcript.String()
	assert.NotContains(t, line, "\x1b[")
	assert.Contains(t, line, "CLT -> SVR:")
	assert.Contains(t, line, "BN=1")
}

func TestTranscriptDropLineMarksDroppedWithoutColor(t *testing.T) {
	var transcript bytes.Buffer
	s := New(&transcript, nil)

	s.Drop("SVR", "CLT", gbt.APDU{LB: false, BN: 2, BNA: 1, STR: true, W: 6})
	s.Close()

	line := transcript.String()
	assert.NotContains(t, line, "\x1b[")
	assert.Contains(t, line, "SVR -x CLT:")
	assert.Contains(t, line, "(dropped)")
}

func TestPlantUMLOutputBracketsStartAndEnd(t *testing.T) {
	var plantuml bytes.Buffer
	s := New(nil, &plantuml)

	s.Deliver("CLT", "SVR", gbt.APDU{LB: true, BN: 1})
	s.Close()

	out := plantuml.String()
	assert.True(t, strings.HasPrefix(out, "@startuml\n"))
	assert.True(t, strings.HasSuffix(out, "@enduml\n"))
}
