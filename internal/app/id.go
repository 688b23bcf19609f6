package app

import (
	"crypto/rand"
	"fmt"
	"time"
)

// newRequestID produces an identifier of the form REQ-<timestamp>-<random>.
// The timestamp keeps ids roughly sortable; the random suffix makes them
// unique when two requests land in the same second.
func newRequestID() (string, error) {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	const hex = "0123456789abcdef"
	suffix := make([]byte, 8)
	for i, v := range b {
		suffix[i*2] = hex[v>>4]
		suffix[i*2+1] = hex[v&0x0f]
	}
	return fmt.Sprintf("REQ-%s-%s", time.Now().UTC().Format("20060102150405"), suffix), nil
}
