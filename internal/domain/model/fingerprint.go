package model

import (
	"math"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint hashes the content of a batch (validator, timestamp, entries)
// independent of map iteration order. BatchID is not part of the hash, so
// the same batch fetched twice yields the same fingerprint.
func (r BatchReport) Fingerprint() uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(r.Validator)
	_, _ = d.Write([]byte{0})
	_, _ = d.WriteString(strconv.FormatUint(math.Float64bits(r.Timestamp), 16))
	for _, idx := range r.Indices() {
		_, _ = d.Write([]byte{0})
		_, _ = d.WriteString(idx)
		_, _ = d.Write([]byte{'='})
		_, _ = d.WriteString(string(r.UIDs[idx]))
		_, _ = d.Write([]byte{'|'})
		_, _ = d.WriteString(string(r.RatingChanges[idx]))
	}
	return d.Sum64()
}

// FingerprintKey is Fingerprint rendered as a hex string.
func (r BatchReport) FingerprintKey() string {
	return strconv.FormatUint(r.Fingerprint(), 16)
}
