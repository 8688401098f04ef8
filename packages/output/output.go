package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hitchain/packages/core/runner"
)

// Output format names accepted by --output.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
	FormatJUnit   = "junit"
	FormatTAP     = "tap"
	FormatXLSX    = "xlsx"
	FormatHTML    = "html"
)

// Formats lists every supported output format.
var Formats = []string{FormatConsole, FormatJSON, FormatJUnit, FormatTAP, FormatXLSX, FormatHTML}

// Formatter is implemented by every output format.
type Formatter interface {
	FormatHeader(version string)
	FormatResult(result *runner.RunResult)
	FormatError(err error)
}

// Flushable is implemented by formatters that write once the run is over.
type Flushable interface {
	Flush(totalDuration time.Duration) error
}

// ParseFormat normalizes a format name.
func ParseFormat(name string) (string, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, f := range Formats {
		if f == name {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown output format %q (use one of: %s)", name, strings.Join(Formats, ", "))
}

// IsBinary reports whether format cannot be written to a terminal.
func IsBinary(format string) bool {
	return format == FormatXLSX
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
