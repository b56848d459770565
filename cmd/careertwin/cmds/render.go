package cmds

import (
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/mattn/go-isatty"
)

// renderReply styles markdown with glamour when w is a terminal and returns
// the reply unchanged otherwise.
func renderReply(w *os.File, reply string) (string, error) {
	if !isatty.IsTerminal(w.Fd()) {
		return reply, nil
	}
	styled, err := glamour.Render(reply, "dark")
	if err != nil {
		return "", err
	}
	return strings.TrimRight(styled, "\n"), nil
}
