// Package view renders widget state as HTML with gomponents.
package view

import (
	"fmt"
	"strconv"

	g "maragu.dev/gomponents"
	h "maragu.dev/gomponents/html"

	"unlockstudio/internal/domain"
	"unlockstudio/internal/gate"
)

// ArtifactPath is the route for an action on one artifact of a widget.
func ArtifactPath(widgetID string, index int, action string) string {
	return fmt.Sprintf("/v1/widgets/%s/artifacts/%d/%s", widgetID, index, action)
}

// WidgetPath is the route for a widget-level action.
func WidgetPath(widgetID, action string) string {
	if action == "" {
		return "/v1/widgets/" + widgetID
	}
	return "/v1/widgets/" + widgetID + "/" + action
}

// GalleryProps is the input for Gallery.
type GalleryProps struct {
	WidgetID string
	Snapshot gate.Snapshot
	Locale   string
}

// Gallery renders the result grid. Locked artifacts only ever reference the
// blurred preview route; their full URL is never written to the page.
func Gallery(p GalleryProps) g.Node {
	if len(p.Snapshot.Artifacts) == 0 {
		return h.Div(h.Class("gallery gallery-empty"),
			h.P(g.Text("Your generated images will appear here.")),
		)
	}
	price := p.Snapshot.Price.Display(p.Locale)
	return h.Div(h.Class("gallery"),
		g.Attr("data-batch", p.Snapshot.Batch),
		g.Map(p.Snapshot.Artifacts, func(a gate.ArtifactView) g.Node {
			return artifactCard(p.WidgetID, a, price)
		}),
	)
}

func artifactCard(widgetID string, a gate.ArtifactView, price string) g.Node {
	alt := fmt.Sprintf("Generated image %d", a.Index+1)
	idx := strconv.Itoa(a.Index)
	if !a.Locked {
		return h.Figure(h.Class("artifact artifact-unlocked"), g.Attr("data-index", idx),
			h.Img(h.Src(a.FullURL), h.Alt(alt), h.Loading("lazy")),
			h.FigCaption(
				h.A(h.Class("button download"), h.Href(ArtifactPath(widgetID, a.Index, "download")),
					g.Attr("download", fmt.Sprintf("generated-image-%d", a.Index+1)),
					g.Text("Download"),
				),
			),
		)
	}
	return h.Figure(h.Class("artifact artifact-locked"), g.Attr("data-index", idx), g.Attr("data-state", string(a.State)),
		h.Img(h.Class("blurred"), h.Src(ArtifactPath(widgetID, a.Index, "preview")), h.Alt(alt), h.Loading("lazy")),
		h.Div(h.Class("lock-overlay"),
			h.Span(h.Class("lock-icon"), g.Attr("aria-hidden", "true"), g.Text("🔒")),
			g.If(a.State == domain.StatePendingPayment,
				g.Group{
					h.P(h.Class("lock-status"), g.Text("Waiting for payment…")),
					h.Form(h.Method("post"), h.Action(WidgetPath(widgetID, "payment/cancel")),
						h.Button(h.Type("submit"), h.Class("button secondary"), g.Text("Cancel")),
					),
				},
			),
			g.If(a.State != domain.StatePendingPayment,
				h.Form(h.Method("post"), h.Action(ArtifactPath(widgetID, a.Index, "unlock")),
					h.Button(h.Type("submit"), h.Class("button unlock"),
						g.Textf("Unlock for %s", price),
					),
				),
			),
		),
	)
}
