package dataset

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint hashes column names, type tags and cell contents. Two tables
// with the same fingerprint yield the same analysis results.
func (t *Table) Fingerprint() string {
	d := xxhash.New()
	var buf [8]byte
	for _, c := range t.cols {
		_, _ = d.WriteString(c.Name)
		_, _ = d.Write([]byte{0, byte(c.Kind)})
		for r := 0; r < c.Len(); r++ {
			if c.Missing[r] {
				_, _ = d.Write([]byte{0xff})
				continue
			}
			if c.Kind == Numeric {
				binary.LittleEndian.PutUint64(buf[:], math.Float64bits(c.Numbers[r]))
				_, _ = d.Write(buf[:])
				continue
			}
			_, _ = d.WriteString(c.Labels[r])
			_, _ = d.Write([]byte{0})
		}
	}
	return fmt.Sprintf("%016x", d.Sum64())
}
