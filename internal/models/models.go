package models

// Mismatch is a block whose transaction count differs from the expected one.
type Mismatch struct {
	Height  uint64 `json:"height"`
	TxCount uint64 `json:"txCount"`
}

// ScanResult is the outcome of one scan pass.
// Mismatches are kept in ascending height order.
type ScanResult struct {
	Expected   uint64     `json:"expected"`
	Start      uint64     `json:"start"`
	Stop       uint64     `json:"stop"`
	Scanned    uint64     `json:"scanned"`
	Mismatches []Mismatch `json:"mismatches"`
	// Failed holds the heights skipped because they could not be fetched.
	Failed []uint64 `json:"failed,omitempty"`
}

// NewScanResult returns an empty result for the given expected count.
func NewScanResult(expected uint64) *ScanResult {
	return &ScanResult{
		Expected:   expected,
		Mismatches: []Mismatch{},
	}
}

// Heights returns the heights of the mismatching blocks.
func (r *ScanResult) Heights() []uint64 {
	heights := make([]uint64, len(r.Mismatches))
	for i, m := range r.Mismatches {
		heights[i] = m.Height
	}
	return heights
}
