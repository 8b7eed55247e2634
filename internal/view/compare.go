package view

import (
	"strings"

	g "maragu.dev/gomponents"
	h "maragu.dev/gomponents/html"

	"unlockstudio/internal/slider"
)

// Compare renders the before/after slider. The after layer is clipped from
// the right so it shows from the left edge up to percent.
func Compare(widgetID, beforeURL, afterURL string, percent float64) g.Node {
	left := slider.HandleLeft(percent)
	return h.Div(h.Class("compare"),
		g.Attr("data-endpoint", WidgetPath(widgetID, "slider")),
		h.Img(h.Class("compare-before"), h.Src(beforeURL), h.Alt("Before"), g.Attr("draggable", "false")),
		h.Img(h.Class("compare-after"), h.Src(afterURL), h.Alt("After"), g.Attr("draggable", "false"),
			h.Style("clip-path: "+slider.ClipInset(percent)),
		),
		h.Div(h.Class("compare-handle"), h.Role("slider"),
			g.Attr("aria-valuemin", "0"),
			g.Attr("aria-valuemax", "100"),
			g.Attr("aria-valuenow", strings.TrimSuffix(left, "%")),
			h.Style("left: "+left),
		),
	)
}
