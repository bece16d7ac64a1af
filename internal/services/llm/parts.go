package llm

import (
	"strings"

	"github.com/ternarybob/docchat/internal/models"
)

// splitSystem separates the leading run of system parts from the rest.
// Leading system parts become the provider's system instruction; any system
// part that appears after user content stays inline so caller order holds.
func splitSystem(parts []models.Part) (system string, rest []models.Part) {
	var sys []string
	i := 0
	for ; i < len(parts); i++ {
		if parts[i].Kind != models.PartSystem {
			break
		}
		if t := strings.TrimSpace(parts[i].Text); t != "" {
			sys = append(sys, parts[i].Text)
		}
	}
	return strings.Join(sys, "\n\n"), parts[i:]
}

// hasContent reports whether any part carries text or an image
func hasContent(parts []models.Part) bool {
	for _, p := range parts {
		if p.Kind == models.PartImage && p.Image != nil && len(p.Image.Data) > 0 {
			return true
		}
		if p.Kind != models.PartImage && strings.TrimSpace(p.Text) != "" {
			return true
		}
	}
	return false
}
