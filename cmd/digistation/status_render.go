package main

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"digistation/internal/capture"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

func severityColor(level capture.Severity) string {
	switch level {
	case capture.SeverityOK:
		return ansiGreen
	case capture.SeverityWarning:
		return ansiYellow
	case capture.SeverityError:
		return ansiRed
	case capture.SeverityInfo:
		return ansiBlue
	default:
		return ""
	}
}

func colorizeSeverity(level capture.Severity, text string, colorize bool) string {
	if !colorize {
		return text
	}
	if color := severityColor(level); color != "" {
		return color + text + ansiReset
	}
	return text
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
