package reporting

import (
	"fmt"
	"io"
	"os"

	"github.com/xkilldash9x/uiprobe/api/schemas"
)

// Reporter writes suite reports to an output.
type Reporter interface {
	// Write adds one suite report.
	Write(report *schemas.Report) error
	// Close finalizes the output and releases any file handle.
	Close() error
}

// nopWriteCloser wraps an io.Writer and provides a no-op Close method.
type nopWriteCloser struct {
	io.Writer
}

func (nwc *nopWriteCloser) Close() error {
	return nil
}

// New creates a reporter for format writing to outputPath. An empty path or
// "stdout" writes to stdout, or os.Stdout when stdout is nil.
func New(format, outputPath string, stdout io.Writer) (Reporter, error) {
	switch format {
	case "json", "text":
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}

	var writer io.WriteCloser
	if outputPath == "" || outputPath == "stdout" {
		if stdout == nil {
			stdout = os.Stdout
		}
		writer = &nopWriteCloser{stdout}
	} else {
		f, err := os.Create(outputPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create output file %s: %w", outputPath, err)
		}
		writer = f
	}

	if format == "json" {
		return NewJSONReporter(writer), nil
	}
	return NewTextReporter(writer), nil
}
