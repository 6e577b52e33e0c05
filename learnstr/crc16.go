package learnstr

// CRC-16/ARC: polynomial 0x8005 processed LSB first (reflected 0xA001),
// initial value 0, no final XOR. Check value for "123456789" is 0xBB3D.
const crcPolyReflected = 0xA001

var crcTable = makeCRCTable()

func makeCRCTable() *[256]uint16 {
	var table [256]uint16
	for i := range table {
		crc := uint16(i)
		for range 8 {
			if crc&1 != 0 {
				crc = (crc >> 1) ^ crcPolyReflected
			} else {
				crc >>= 1
			}
		}
		table[i] = crc
	}

	return &table
}

// Checksum returns the CRC-16 of data as stored in a learn string record.
func Checksum(data []byte) uint16 {
	return UpdateChecksum(0, data)
}

// UpdateChecksum continues a checksum over additional data.
func UpdateChecksum(crc uint16, data []byte) uint16 {
	for _, b := range data {
		crc = (crc >> 8) ^ crcTable[byte(crc)^b]
	}

	return crc
}
