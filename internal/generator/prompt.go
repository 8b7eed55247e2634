package generator

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"unlockstudio/internal/domain"
)

// DefaultStyle is appended to text-to-image prompts that carry no style.
const DefaultStyle = "high detail, sharp focus, natural lighting"

// PromptInput is the raw widget form.
type PromptInput struct {
	Mode     domain.Mode
	Prompt   string
	Style    string
	Username string
	Locale   string
}

// BuildPrompt renders the text sent to the generation API for the mode.
func BuildPrompt(in PromptInput) (string, error) {
	switch in.Mode {
	case domain.ModeAvatar:
		return AvatarPrompt(in.Username, in.Style, in.Locale)
	case domain.ModeImageToImage:
		prompt := strings.TrimSpace(in.Prompt)
		if prompt == "" {
			return "", domain.ErrInvalidPrompt
		}
		parts := []string{prompt}
		if style := strings.TrimSpace(in.Style); style != "" {
			parts = append(parts, "Style: "+style+".")
		}
		parts = append(parts, "Keep the composition and subject of the input image.")
		return strings.Join(parts, " "), nil
	default:
		prompt := strings.TrimSpace(in.Prompt)
		if prompt == "" {
			return "", domain.ErrInvalidPrompt
		}
		style := strings.TrimSpace(in.Style)
		if style == "" {
			style = DefaultStyle
		}
		return fmt.Sprintf("%s, %s", strings.TrimRight(prompt, ",. "), style), nil
	}
}

// AvatarPrompt turns a username into an avatar prompt. The name is split on
// separators and title-cased for the locale.
func AvatarPrompt(username, style, locale string) (string, error) {
	name := displayName(username, locale)
	if name == "" {
		return "", domain.ErrInvalidPrompt
	}
	style = strings.TrimSpace(style)
	if style == "" {
		style = "colorful flat illustration"
	}
	return fmt.Sprintf("A unique profile avatar inspired by the name %q, %s, centered portrait, clean background", name, style), nil
}

func displayName(username, locale string) string {
	fields := strings.FieldsFunc(strings.TrimSpace(username), func(r rune) bool {
		switch r {
		case '_', '-', '.', '@', ' ':
			return true
		}
		return false
	})
	if len(fields) == 0 {
		return ""
	}
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	return cases.Title(tag).String(strings.Join(fields, " "))
}
