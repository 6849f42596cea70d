package zipper

import "sync"

// ieeePoly is the reflected form of the IEEE 802.3 polynomial.
const ieeePoly = 0xEDB88320

var crcTable = sync.OnceValue(func() *[256]uint32 {
	var t [256]uint32
	for i := range t {
		c := uint32(i)
		for range 8 {
			if c&1 != 0 {
				c = ieeePoly ^ (c >> 1)
			} else {
				c >>= 1
			}
		}
		t[i] = c
	}
	return &t
})

// CRC32 computes the checksum stored in zip headers.
func CRC32(data []byte) uint32 {
	t := crcTable()
	crc := ^uint32(0)
	for _, b := range data {
		crc = t[byte(crc)^b] ^ (crc >> 8)
	}
	return ^crc
}
