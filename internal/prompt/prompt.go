// Package prompt assembles the provider prompt from session selections.
// The interesting prompt engineering lives with the content team; this
// composer only stitches their pieces together in a fixed order.
package prompt

import (
	"strings"

	"github.com/ahmed-jemaa-2000/photo-studio-bot/internal/domain"
)

type Composer struct{}

func NewComposer() *Composer {
	return &Composer{}
}

func (Composer) Compose(sess domain.Session, kind domain.JobKind) string {
	if kind == domain.JobKindVideo {
		return "animate the product shot with a subtle camera move"
	}

	parts := []string{"professional product photo"}
	if sess.Category != "" {
		parts = append(parts, "category: "+sess.Category)
	}
	if sess.Gender != "" {
		parts = append(parts, "model: "+sess.Gender)
	}
	if len(sess.ColorPalette) > 0 {
		parts = append(parts, "palette: "+strings.Join(sess.ColorPalette, " "))
	}
	return strings.Join(parts, ", ")
}
