package output

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/manifest-network/blockscan/internal/models"
)

// TextOutputHandler writes human readable lines, one per scanned block.
type TextOutputHandler struct {
	w io.Writer
}

var _ OutputHandler = (*TextOutputHandler)(nil)

func NewTextOutputHandler(w io.Writer) *TextOutputHandler {
	return &TextOutputHandler{w: w}
}

func (h *TextOutputHandler) WriteBlock(height, txCount uint64, mismatches []models.Mismatch) error {
	heights := make([]string, len(mismatches))
	for i, m := range mismatches {
		heights[i] = strconv.FormatUint(m.Height, 10)
	}
	_, err := fmt.Fprintf(h.w, "block %d's tx count: %d -> invalid block list: [%s]\n",
		height, txCount, strings.Join(heights, ", "))
	return err
}

func (h *TextOutputHandler) WriteSummary(result *models.ScanResult) error {
	if _, err := fmt.Fprintf(h.w, "\nthere are %d invalid blocks which have an unexpected tx count (expected %d)\n",
		len(result.Mismatches), result.Expected); err != nil {
		return err
	}
	for _, m := range result.Mismatches {
		if _, err := fmt.Fprintf(h.w, "   invalid block number: %d / tx count: %d\n", m.Height, m.TxCount); err != nil {
			return err
		}
	}
	for _, height := range result.Failed {
		if _, err := fmt.Fprintf(h.w, "   failed block number: %d\n", height); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(h.w)
	return err
}
