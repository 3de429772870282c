package pickup

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"pickupcal/internal/model"
)

func orderWithStatus(status string) model.CalendarEvent {
	return model.CalendarEvent{
		Kind:  model.KindOrder,
		Order: &model.OrderResource{Status: status},
	}
}

func TestClassifyEventStyleStatuses(t *testing.T) {
	cases := map[string]string{
		"succeeded": TokenSuccess,
		"ready":     TokenSuccess,
		"pending":   TokenWarning,
		"canceled":  TokenDanger,
		"preparing": TokenInfo,
		"completed": TokenPrimary,
		"refunded":  TokenAlert,
		"":          TokenNeutral,
		"unknown":   TokenNeutral,
		"Succeeded": TokenNeutral,
	}
	for status, want := range cases {
		got := ClassifyEventStyle(orderWithStatus(status))
		assert.Equal(t, want, got.ColorToken, "status %q", status)
		assert.False(t, got.Emphasized, "status %q", status)
	}
}

func TestClassifyEventStyleHoliday(t *testing.T) {
	e := model.CalendarEvent{
		Kind:    model.KindHoliday,
		Holiday: &model.HolidayResource{Name: "Noël"},
	}
	assert.Equal(t, Style{ColorToken: TokenHoliday, Emphasized: true}, ClassifyEventStyle(e))
}

func TestClassifyEventStyleMissingOrder(t *testing.T) {
	assert.Equal(t, TokenNeutral, ClassifyEventStyle(model.CalendarEvent{Kind: model.KindOrder}).ColorToken)
}

func TestStyleHex(t *testing.T) {
	assert.Equal(t, "#dc2626", Style{ColorToken: TokenHoliday}.Hex())
	assert.Equal(t, "#10b981", Style{ColorToken: TokenSuccess}.Hex())
	assert.Equal(t, "#6b7280", Style{ColorToken: "bogus"}.Hex())
}

func TestLegendCoversTokens(t *testing.T) {
	legend := Legend()
	assert.Len(t, legend, 7)
	for _, e := range legend {
		assert.NotEmpty(t, e.Label)
		assert.Equal(t, Style{ColorToken: e.Token}.Hex(), e.Hex)
	}
	assert.Equal(t, TokenHoliday, legend[len(legend)-1].Token)
}
