package prologix

const esc = 0x1B

// escape prefixes CR, LF, ESC and '+' with ESC so the controller passes them
// to the bus instead of interpreting them.
func escape(data []byte) []byte {
	out := make([]byte, 0, len(data)+8)
	for _, c := range data {
		switch c {
		case '\r', '\n', esc, '+':
			out = append(out, esc)
		}
		out = append(out, c)
	}

	return out
}
