package config

import (
	"io"
	"os"

	"github.com/distbuild/distbuild/internal/errors"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"golang.org/x/term"
)

const defaultTermWidth = 80

// DiagnosticsWriter renders HCL diagnostics with source snippets, colored when stderr is a terminal.
func DiagnosticsWriter(writer io.Writer, parser *hclparse.Parser, disableColor bool) hcl.DiagnosticWriter {
	termColor := !disableColor && term.IsTerminal(int(os.Stderr.Fd()))

	termWidth, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		termWidth = defaultTermWidth
	}

	return hcl.NewDiagnosticTextWriter(writer, parser.Files(), uint(termWidth), termColor)
}

func handleDiagnostics(parser *hclparse.Parser, diags hcl.Diagnostics, opts LoadOptions) error {
	if opts.DiagnosticsWriter != nil {
		if err := DiagnosticsWriter(opts.DiagnosticsWriter, parser, opts.DisableColor).WriteDiagnostics(diags); err != nil {
			opts.Logger.Warnf("Failed to write diagnostics: %v", err)
		}
	}

	return errors.New(diags)
}
