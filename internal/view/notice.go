package view

import (
	"strconv"
	"strings"

	g "maragu.dev/gomponents"
	h "maragu.dev/gomponents/html"

	"unlockstudio/internal/domain"
)

// Notice renders a transient notification. Content policy warnings use the
// warning style; everything else is an error.
func Notice(n domain.Notice) g.Node {
	if n.Kind == "" && n.Message == "" {
		return nil
	}
	class := "notice notice-error"
	if n.Kind == domain.KindContentPolicy {
		class = "notice notice-warning"
	}
	return h.Div(h.Class(class), h.Role("alert"),
		g.Attr("data-kind", strings.ReplaceAll(string(n.Kind), "_", "-")),
		g.Attr("data-duration-ms", strconv.FormatInt(n.Duration.Milliseconds(), 10)),
		g.Text(n.Message),
	)
}
