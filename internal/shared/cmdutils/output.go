package cmdutils

import (
	"fmt"
	"io"
)

// Logo prefixes assistant output on the terminal.
const Logo = "💬"

// PrintResponse writes an assistant reply to w. Empty text prints nothing.
func PrintResponse(w io.Writer, text string) {
	if text == "" {
		return
	}

	fmt.Fprintf(w, "\n%s assistente\n%s\n\n", Logo, text)
}
