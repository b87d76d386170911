package contracts

import (
	"bytes"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderPDFKeepsAccentedText(t *testing.T) {
	c := Contract{
		ContractNumber: "CT-2025-0001",
		EmployeeName:   "Zoë Müller",
		Type:           TypePermanent,
		StartDate:      testNow,
		Salary:         decimal.RequireFromString("4200"),
		Currency:       "EUR",
		WorkingHours:   40,
		Notes:          "Bonus 500 € paid in März → see annex",
	}

	data, err := renderPDF(c, false)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
	assert.True(t, bytes.Contains(data, []byte("Zo\xeb M\xfcller")), "name is written in cp1252")
	assert.True(t, bytes.Contains(data, []byte("Bonus 500 \x80 paid in M\xe4rz . see annex")), "runes outside cp1252 are replaced")
	assert.False(t, bytes.Contains(data, []byte("Zoë")), "no raw utf-8 reaches the page")

	compressed, err := RenderPDF(c)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(compressed, []byte("%PDF")))
}
