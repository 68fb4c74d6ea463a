// Package cli holds small helpers shared by the tripstory subcommands:
// interactive prompts, human-readable route summaries and friendly messages
// for API key failures.
package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"
)

// Prompt asks for a value on out and reads one line from in. It returns def
// if the user enters nothing or input cannot be read.
func Prompt(in io.Reader, out io.Writer, label, def string) string {
	if def != "" {
		fmt.Fprintf(out, "%s [%s]: ", label, def)
	} else {
		fmt.Fprintf(out, "%s: ", label)
	}

	input, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && input == "" {
		if err != io.EOF {
			log.Warn().Err(err).Str("prompt", label).Msg("Failed to read input, using default")
		}
		return def
	}

	input = strings.TrimSpace(input)
	if input == "" {
		return def
	}
	return input
}
