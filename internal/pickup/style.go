package pickup

import "pickupcal/internal/model"

// Color tokens understood by the presentation layer.
const (
	TokenHoliday = "holiday"
	TokenSuccess = "success"
	TokenWarning = "warning"
	TokenDanger  = "danger"
	TokenInfo    = "info"
	TokenPrimary = "primary"
	TokenAlert   = "alert"
	TokenNeutral = "neutral"
)

// Style is the display classification of an event.
type Style struct {
	ColorToken string `json:"color_token"`
	Emphasized bool   `json:"emphasized"`
}

var statusTokens = map[string]string{
	"succeeded": TokenSuccess,
	"ready":     TokenSuccess,
	"pending":   TokenWarning,
	"canceled":  TokenDanger,
	"preparing": TokenInfo,
	"completed": TokenPrimary,
	"refunded":  TokenAlert,
}

var tokenHex = map[string]string{
	TokenHoliday: "#dc2626",
	TokenSuccess: "#10b981",
	TokenWarning: "#f59e0b",
	TokenDanger:  "#ef4444",
	TokenInfo:    "#8b5cf6",
	TokenPrimary: "#3b82f6",
	TokenAlert:   "#f97316",
	TokenNeutral: "#6b7280",
}

// ClassifyEventStyle maps an event to its color token. It never fails:
// unknown or empty statuses get the neutral token.
func ClassifyEventStyle(e model.CalendarEvent) Style {
	if e.Kind == model.KindHoliday {
		return Style{ColorToken: TokenHoliday, Emphasized: true}
	}

	status := ""
	if e.Order != nil {
		status = e.Order.Status
	}
	token, ok := statusTokens[status]
	if !ok {
		token = TokenNeutral
	}
	return Style{ColorToken: token}
}

// Hex returns the dashboard color of the style's token.
func (s Style) Hex() string {
	if h, ok := tokenHex[s.ColorToken]; ok {
		return h
	}
	return tokenHex[TokenNeutral]
}

// LegendEntry is one line of the color legend.
type LegendEntry struct {
	Label string `json:"label"`
	Token string `json:"token"`
	Hex   string `json:"hex"`
}

// Legend lists the color legend in display order.
func Legend() []LegendEntry {
	entries := []struct{ label, token string }{
		{"Payé / Prêt", TokenSuccess},
		{"En attente", TokenWarning},
		{"En préparation", TokenInfo},
		{"Terminé", TokenPrimary},
		{"Annulé", TokenDanger},
		{"Remboursé", TokenAlert},
		{"Jour férié", TokenHoliday},
	}

	out := make([]LegendEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, LegendEntry{Label: e.label, Token: e.token, Hex: tokenHex[e.token]})
	}
	return out
}
