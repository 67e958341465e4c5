package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/maltedev/catawiki-seller-parser/internal/models"
	"github.com/maltedev/catawiki-seller-parser/internal/parser"
	"github.com/maltedev/catawiki-seller-parser/pkg/logger"
	"github.com/spf13/cobra"
)

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "seller-profile <profile.html>",
		Short:         "Extract a Catawiki seller profile from a saved HTML page as JSON",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.NewWithWriter(stderr, "info", "text")

			profile, err := extractFile(args[0])
			if err != nil {
				log.Error("extraction failed", "path", args[0], "error", err)
				return err
			}

			return writeProfile(stdout, profile)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	return cmd
}

func extractFile(path string) (*models.SellerProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return parser.NewCatawikiParser().ParseProfileBytes(data)
}

// writeProfile emits the record indented, with non-ASCII and HTML
// characters written literally.
func writeProfile(w io.Writer, profile *models.SellerProfile) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(profile); err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}

	if _, err := w.Write(unescapeLineSeparators(buf.Bytes())); err != nil {
		return fmt.Errorf("failed to write profile: %w", err)
	}
	return nil
}

// unescapeLineSeparators turns the \u2028 and \u2029 escapes that
// encoding/json always emits back into the literal characters. A sequence
// whose backslash is itself escaped is literal text and is left alone.
func unescapeLineSeparators(data []byte) []byte {
	if !bytes.Contains(data, []byte(`\u202`)) {
		return data
	}

	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if data[i] != '\\' {
			out = append(out, data[i])
			continue
		}

		// Copy a run of backslashes; only the last one of an odd run
		// starts an escape.
		j := i
		for j < len(data) && data[j] == '\\' {
			j++
		}
		run := j - i
		out = append(out, data[i:j-1]...)
		i = j - 1

		if run%2 == 1 && j+5 <= len(data) {
			switch string(data[j : j+5]) {
			case "u2028":
				out = append(out, "\u2028"...)
				i = j + 4
				continue
			case "u2029":
				out = append(out, "\u2029"...)
				i = j + 4
				continue
			}
		}
		out = append(out, '\\')
	}

	return out
}
