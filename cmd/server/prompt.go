package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"
)

// resolveVerbose decides whether verbose logging is on. Flags win over the
// config; the operator is only asked when neither says and stdin is a
// terminal.
func resolveVerbose(verboseFlag, quietFlag bool, configured *bool) bool {
	switch {
	case verboseFlag:
		return true
	case quietFlag:
		return false
	case configured != nil:
		return *configured
	case term.IsTerminal(int(os.Stdin.Fd())):
		return askVerbose(os.Stdin, os.Stdout)
	default:
		return false
	}
}

// askVerbose asks the verbose logging question on out and reads the answer
// from in.
func askVerbose(in io.Reader, out io.Writer) bool {
	color.New(color.FgCyan).Fprint(out, "Enable verbose logging for video processing? (y/n) ")

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(out)
		return false
	}
	return isYes(line)
}

func isYes(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}

// printBanner shows where the converter can be reached.
func printBanner(out io.Writer, httpAddr, httpsAddr string, verbose bool) {
	title := color.New(color.FgHiGreen, color.Bold)
	label := color.New(color.FgWhite)
	value := color.New(color.FgGreen)

	title.Fprintln(out, "3DS Video Converter")
	label.Fprint(out, "  HTTP:    ")
	value.Fprintln(out, "http://"+httpAddr)
	if httpsAddr != "" {
		label.Fprint(out, "  HTTPS:   ")
		value.Fprintln(out, "https://"+httpsAddr)
	}
	label.Fprint(out, "  Verbose: ")
	if verbose {
		value.Fprintln(out, "on")
	} else {
		color.New(color.FgYellow).Fprintln(out, "off")
	}
}
