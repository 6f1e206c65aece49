package gbt

import "fmt"

// Block is one unit transferred by the General Block Transfer protocol.
// BD is nil for an acknowledgement-only block.
type Block struct {
	LB bool
	BN uint16
	BD []byte
}

func (b Block) String() string {
	return fmt.Sprintf("LB=%d, BN=%d, BD=%s", boolToBit(b.LB), b.BN, bdString(b.BD))
}

// APDU is a Block wrapped with the GBT transport fields. It is the
// semantic record exchanged between peers; wire encoding is out of scope.
type APDU struct {
	LB  bool
	BN  uint16
	BD  []byte
	STR bool
	W   uint8
	BNA uint16
}

func apduFromBlock(b Block) APDU {
	return APDU{LB: b.LB, BN: b.BN, BD: b.BD}
}

func (a APDU) String() string {
	return fmt.Sprintf("LB=%d, STR=%d, W=%d, BN=%d, BNA=%d, BD=%s",
		boolToBit(a.LB), boolToBit(a.STR), a.W, a.BN, a.BNA, bdString(a.BD))
}

func boolToBit(b bool) int {
	if b {
		return 1
	}
	return 0
}

func bdString(bd []byte) string {
	if bd == nil {
		return "<none>"
	}
	return fmt.Sprintf("%x", bd)
}
