package view

import (
	"fmt"

	g "maragu.dev/gomponents"
	c "maragu.dev/gomponents/components"
	h "maragu.dev/gomponents/html"

	"unlockstudio/internal/domain"
	"unlockstudio/internal/gate"
)

// PageProps is everything needed to render one widget.
type PageProps struct {
	WidgetID   string
	Mode       domain.Mode
	Snapshot   gate.Snapshot
	Notice     domain.Notice
	Percent    float64
	BeforeURL  string
	Generating bool
	Locale     string
	Viewer     *domain.Viewer
}

// Page renders a standalone HTML document for a widget.
func Page(p PageProps) g.Node {
	lang := p.Locale
	if lang == "" {
		lang = "en"
	}
	return c.HTML5(c.HTML5Props{
		Title:    title(p.Mode),
		Language: lang,
		Body:     []g.Node{Widget(p)},
	})
}

// Widget renders the generator form, notice, gallery and, for image-to-image
// results, the comparison slider.
func Widget(p PageProps) g.Node {
	return h.Section(h.Class("widget widget-"+string(p.Mode)), h.ID("widget-"+p.WidgetID),
		g.Iff(p.Viewer != nil, func() g.Node { return account(p.Viewer) }),
		form(p),
		Notice(p.Notice),
		g.If(p.Generating, h.P(h.Class("generating"), g.Text("Generating…"))),
		compareFor(p),
		Gallery(GalleryProps{WidgetID: p.WidgetID, Snapshot: p.Snapshot, Locale: p.Locale}),
	)
}

func title(mode domain.Mode) string {
	switch mode {
	case domain.ModeImageToImage:
		return "Image to Image"
	case domain.ModeAvatar:
		return "Username to Avatar"
	default:
		return "Text to Image"
	}
}

func form(p PageProps) g.Node {
	var fields g.Group
	switch p.Mode {
	case domain.ModeAvatar:
		fields = g.Group{
			h.Label(h.For("username"), g.Text("Username")),
			h.Input(h.Type("text"), h.Name("username"), h.ID("username"), h.Required()),
		}
	case domain.ModeImageToImage:
		fields = g.Group{
			h.Label(h.For("init_image"), g.Text("Input image")),
			h.Input(h.Type("url"), h.Name("init_image"), h.ID("init_image"), h.Required()),
			h.Label(h.For("prompt"), g.Text("Describe the change")),
			h.Textarea(h.Name("prompt"), h.ID("prompt"), h.Required()),
		}
	default:
		fields = g.Group{
			h.Label(h.For("prompt"), g.Text("Prompt")),
			h.Textarea(h.Name("prompt"), h.ID("prompt"), h.Required()),
		}
	}
	return h.Form(h.Class("generate"), h.Method("post"), h.Action(WidgetPath(p.WidgetID, "generate")),
		fields,
		h.Label(h.For("style"), g.Text("Style")),
		h.Input(h.Type("text"), h.Name("style"), h.ID("style")),
		h.Button(h.Type("submit"), g.If(p.Generating, h.Disabled()), g.Text("Generate")),
	)
}

func compareFor(p PageProps) g.Node {
	if p.Mode != domain.ModeImageToImage || p.BeforeURL == "" || len(p.Snapshot.Artifacts) == 0 {
		return nil
	}
	first := p.Snapshot.Artifacts[0]
	after := first.FullURL
	if first.Locked {
		after = ArtifactPath(p.WidgetID, first.Index, "preview")
	}
	return Compare(p.WidgetID, p.BeforeURL, after, p.Percent)
}

func account(v *domain.Viewer) g.Node {
	name := v.Name
	if name == "" {
		name = v.Email
	}
	return h.Div(h.Class("account"),
		h.Span(h.Class("account-name"), g.Text(name)),
		h.Span(h.Class("account-credits"), g.Text(fmt.Sprintf("%d credits", v.CreditsBalance))),
		g.If(v.SubscriptionPlan != "", h.Span(h.Class("account-plan"), g.Text(v.SubscriptionPlan))),
	)
}
