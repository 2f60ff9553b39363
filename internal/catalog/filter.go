// Package catalog narrows a venue's wine list to the bottles a guest's
// stated preferences allow, before anything reaches the language model.
package catalog

import "github.com/liber-ai/sommelier/internal/model"

// Filter returns the wines matching the color and budget preferences.
// Color "any" (or empty) applies no color filter at all. The budget
// ceiling already carries the overshoot tolerance; there is no floor.
func Filter(wines []model.Wine, prefs model.Preferences) []model.Wine {
	ceiling := prefs.Ceiling()
	out := make([]model.Wine, 0, len(wines))
	for _, w := range wines {
		if !w.Available {
			continue
		}
		if prefs.Color != "" && prefs.Color != model.ColorAny && w.Color != prefs.Color {
			continue
		}
		if ceiling > 0 && w.Price > ceiling {
			continue
		}
		out = append(out, w)
	}
	return out
}
