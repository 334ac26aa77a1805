package protocol

import "github.com/sigurn/crc8"

// crc8DVBS2 is CRC-8 with polynomial 0xD5, MSB-first, zero initial value,
// no reflection and no final XOR.
var crc8DVBS2 = crc8.Params{
	Poly:   0xD5,
	Init:   0x00,
	RefIn:  false,
	RefOut: false,
	XorOut: 0x00,
	Check:  0xBC,
	Name:   "CRC-8/DVB-S2",
}

var checksumTable = crc8.MakeTable(crc8DVBS2)

// Checksum returns the frame integrity code over data.
func Checksum(data []byte) byte {
	return crc8.Checksum(data, checksumTable)
}
