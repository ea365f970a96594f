// Package crc implements the table-driven checksums used by the audio
// header parsers: CRC-16/CCITT for DTS UHD frame headers and the Ogg page
// CRC-32.
package crc

// CRC-16 with polynomial 0x1021, MSB first.
var crc16Table [256]uint16

// CRC-32 with polynomial 0x04C11DB7, MSB first (Ogg framing).
var crc32Table [256]uint32

func init() {
	for i := 0; i < 256; i++ {
		c16 := uint16(i) << 8
		c32 := uint32(i) << 24
		for j := 0; j < 8; j++ {
			if c16&0x8000 != 0 {
				c16 = (c16 << 1) ^ 0x1021
			} else {
				c16 <<= 1
			}
			if c32&0x80000000 != 0 {
				c32 = (c32 << 1) ^ 0x04C11DB7
			} else {
				c32 <<= 1
			}
		}
		crc16Table[i] = c16
		crc32Table[i] = c32
	}
}

// CRC16 returns the CRC-16/CCITT of data starting from initial.
func CRC16(data []byte, initial uint16) uint16 {
	crc := initial
	for _, b := range data {
		crc = (crc << 8) ^ crc16Table[byte(crc>>8)^b]
	}
	return crc
}

// OggCRC32 returns the Ogg page checksum of data. The caller is responsible
// for zeroing the checksum field of the page before calling.
func OggCRC32(data []byte) uint32 {
	var crc uint32
	for _, b := range data {
		crc = (crc << 8) ^ crc32Table[byte(crc>>24)^b]
	}
	return crc
}
