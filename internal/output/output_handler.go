package output

import (
	"fmt"
	"io"

	"github.com/manifest-network/blockscan/internal/config"
	"github.com/manifest-network/blockscan/internal/models"
)

type OutputHandler interface {
	// WriteBlock writes the progress observation of a scanned block,
	// along with the mismatches found so far.
	WriteBlock(height, txCount uint64, mismatches []models.Mismatch) error

	// WriteSummary writes the final scan summary.
	WriteSummary(result *models.ScanResult) error
}

// New returns the output handler for the given format.
func New(format string, w io.Writer) (OutputHandler, error) {
	switch format {
	case config.OutputText, "":
		return &TextOutputHandler{w: w}, nil
	case config.OutputJSON:
		return &JSONOutputHandler{w: w}, nil
	default:
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
}
