package output

import (
	"io"

	jsoniter "github.com/json-iterator/go"
	"github.com/manifest-network/blockscan/internal/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// JSONOutputHandler writes the summary as a single JSON document.
type JSONOutputHandler struct {
	w io.Writer
}

var _ OutputHandler = (*JSONOutputHandler)(nil)

func (h *JSONOutputHandler) WriteBlock(uint64, uint64, []models.Mismatch) error {
	return nil
}

func (h *JSONOutputHandler) WriteSummary(result *models.ScanResult) error {
	enc := json.NewEncoder(h.w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
