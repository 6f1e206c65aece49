package logsink

import (
	"fmt"
	"strings"
)

// HexDump renders data as an address-prefixed, 16-column hex and ASCII
// dump, e.g.:
//
//	00000000: 30 31 32 33 34 35 36 37 38 39 61 62 63 64 65 66  0123456789abcdef
//
// A byte-oriented successor to the original's PrintData, fixed at 16
// bytes per line and always dual hex/ASCII (its iFormat/iMode switches
// aren't needed here).
func HexDump(data []byte) string {
	const perLine = 16
	var b strings.Builder
	for offset := 0; offset < len(data); offset += perLine {
		end := offset + perLine
		if end > len(data) {
			end = len(data)
		}
		line := data[offset:end]
		fmt.Fprintf(&b, "%08X: ", offset)
		for i := 0; i < perLine; i++ {
			if i < len(line) {
				fmt.Fprintf(&b, "%02X ", line[i])
			} else {
				b.WriteString("   ")
			}
		}
		b.WriteString(" ")
		for _, c := range line {
			if c >= 0x20 && c < 0x7F {
				b.WriteByte(c)
			} else {
				b.WriteByte('.')
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}
