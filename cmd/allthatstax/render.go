package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"allthatstax/internal/workflow"
)

const (
	ansiReset  = "\033[0m"
	ansiYellow = "\033[33m"
	ansiRed    = "\033[31m"
	ansiDim    = "\033[2m"
)

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// logEntryPrinter writes journal entries as progress lines.
type logEntryPrinter struct {
	out      io.Writer
	colorize bool
}

func newLogEntryPrinter(out io.Writer) *logEntryPrinter {
	return &logEntryPrinter{out: out, colorize: shouldColorize(out)}
}

func (p *logEntryPrinter) print(entry workflow.LogEntry) {
	var b strings.Builder
	progress := ""
	if entry.Total > 0 {
		progress = fmt.Sprintf("[%d/%d] ", entry.Processed, entry.Total)
	}
	stamp := entry.Time.Local().Format("15:04:05")
	if p.colorize {
		stamp = ansiDim + stamp + ansiReset
	}
	b.WriteString(stamp)
	b.WriteByte(' ')
	b.WriteString(progress)

	label := ""
	switch entry.Level {
	case workflow.LevelWarning:
		label = "WARN "
		if p.colorize {
			label = ansiYellow + label + ansiReset
		}
	case workflow.LevelError:
		label = "ERROR "
		if p.colorize {
			label = ansiRed + label + ansiReset
		}
	}
	b.WriteString(label)
	if entry.Card != "" && !strings.Contains(entry.Message, entry.Card) {
		b.WriteString(entry.Card)
		b.WriteString(": ")
	}
	b.WriteString(entry.Message)
	fmt.Fprintln(p.out, b.String())
}

func formatSummary(state workflow.State) []string {
	lines := []string{fmt.Sprintf("Job %s %s", state.JobID, state.Status)}
	if state.Result != nil {
		r := state.Result
		lines = append(lines,
			fmt.Sprintf("Cards processed:   %d", r.CardsProcessed),
			fmt.Sprintf("Cards updated:     %d", r.CardsUpdated),
			fmt.Sprintf("Images downloaded: %d", r.ImagesDownloaded),
			fmt.Sprintf("Duration:          %s", r.Duration.Round(10*time.Millisecond)),
		)
		if len(r.Errors) > 0 {
			lines = append(lines, fmt.Sprintf("Errors (%d):", len(r.Errors)))
			for _, e := range r.Errors {
				lines = append(lines, "  - "+e)
			}
		}
	}
	if state.Error != "" {
		lines = append(lines, "Error: "+state.Error)
	}
	return lines
}
