package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/term"

	"github.com/charliek/horn/internal/api"
	"github.com/charliek/horn/internal/constants"
	"github.com/charliek/horn/internal/domain"
)

// LogPrinter handles consistent log formatting and color assignment
type LogPrinter struct {
	out        io.Writer
	color      bool
	colors     map[string]string
	colorIndex int
}

// NewLogPrinter creates a LogPrinter. Colors are used only when out is a
// terminal and NO_COLOR is unset.
func NewLogPrinter(out io.Writer) *LogPrinter {
	return &LogPrinter{
		out:    out,
		color:  isTerminal(out) && os.Getenv("NO_COLOR") == "",
		colors: make(map[string]string),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// PrintEntry prints an API log entry
func (lp *LogPrinter) PrintEntry(entry api.LogEntryResponse) {
	ts, err := time.Parse(time.RFC3339Nano, entry.Timestamp)
	if err != nil {
		ts = time.Now()
	}

	if !lp.color {
		fmt.Fprintf(lp.out, "%s %-8s | %s\n", ts.Format("15:04:05"), entry.Process, entry.Line)
		return
	}

	line := entry.Line
	if domain.Level(entry.Level).IsError() {
		line = constants.ColorBrightRed + line + constants.ColorReset
	}
	fmt.Fprintf(lp.out, "%s %s%-8s%s | %s\n",
		ts.Format("15:04:05"),
		lp.getColor(entry.Process), entry.Process, constants.ColorReset,
		line)
}

func (lp *LogPrinter) getColor(process string) string {
	color, ok := lp.colors[process]
	if !ok {
		color = constants.ProcessColors[lp.colorIndex%len(constants.ProcessColors)]
		lp.colors[process] = color
		lp.colorIndex++
	}
	return color
}
