package util

import "fmt"

func toPrintableString(b []byte) string {
	sz := len(b)
	if sz == 0 {
		return ""
	}
	buf := make([]byte, sz)
	for i := 0; i < sz; i++ {
		if b[i] < 32 || b[i] > 126 {
			buf[i] = '.'
		} else {
			buf[i] = b[i]
		}
	}
	return string(buf)
}

// ToPrintableAndHexString renders data as a printable-ASCII string
// (non-printable bytes shown as '.') followed by its hex dump, for
// logging rejected or malformed packet bytes.
func ToPrintableAndHexString(data []byte) string {
	return fmt.Sprintf("%s [%X]", toPrintableString(data), data)
}
