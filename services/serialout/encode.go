package serialout

import (
	"chargecode-go/core/calib"
	"chargecode-go/types"
	"chargecode-go/x/conv"
)

// LineLen bounds one encoded line.
const LineLen = 192

// AppendLine encodes t as one record:
//
//	$<calc>;<vout V>;<iout A>;<vin V>;<tint C>;<text C>;<mAh>;<cells>;<c1>..<c6>;<mask>\r\n
func AppendLine(dst []byte, t *types.Telemetry) []byte {
	var num [24]byte
	dst = append(dst, '$')
	dst = append(dst, conv.Utoa(num[:], uint64(t.Calculations))...)
	field := func(v int32, decimals int) {
		dst = append(dst, ';')
		dst = append(dst, conv.Fixed(num[:], int64(v), decimals)...)
	}
	field(t.VoutMilliV, 3)
	field(t.IoutMilliA, 3)
	field(t.VinMilliV, 3)
	field(t.TintCentiC, 2)
	field(t.TextCentiC, 2)
	field(t.ChargeMilliAh, 0)
	field(int32(t.CellCount), 0)
	for _, c := range t.Cells {
		field(c, 3)
	}
	field(int32(t.Balancing), 0)
	return append(dst, '\r', '\n')
}

// RawSource exposes averaged ADC counts for the debug record.
type RawSource interface {
	Raw(ch calib.Channel) uint16
}

// AppendDebug encodes the raw counts of every measured channel:
//
//	#<raw0>;<raw1>;...\r\n
func AppendDebug(dst []byte, src RawSource) []byte {
	var num [24]byte
	dst = append(dst, '#')
	for ch := calib.Channel(0); int(ch) < calib.NumMeasured; ch++ {
		if ch > 0 {
			dst = append(dst, ';')
		}
		dst = append(dst, conv.Utoa(num[:], uint64(src.Raw(ch)))...)
	}
	return append(dst, '\r', '\n')
}
