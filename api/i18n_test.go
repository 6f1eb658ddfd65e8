package api

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/unimak/dftrack/api/models"
)

func TestPreferredLanguage(t *testing.T) {
	tests := []struct {
		name, explicit, header, want string
	}{
		{"explicit wins", "es", "tr-TR,tr;q=0.9", "es"},
		{"explicit is case insensitive", " TR ", "", "tr"},
		{"unsupported explicit falls back to header", "fr", "tr-TR,tr;q=0.9,en;q=0.5", "tr"},
		{"regional variant", "", "es-MX", "es"},
		{"quality order", "", "de;q=0.9,es;q=0.8,en;q=0.1", "es"},
		{"nothing supported", "", "de-DE,fr", "en"},
		{"empty header", "", "", "en"},
		{"garbage header", "", ";;;", "en"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PreferredLanguage(tt.explicit, tt.header))
		})
	}
}

func TestTranslator(t *testing.T) {
	tr := NewTranslator("tr")
	assert.Equal(t, "Yükle", tr.T("upload"))
	assert.Equal(t, "Yanlış Parça", tr.Option(strPtr("reasons.wrong_part")))
	assert.Equal(t, "Bekliyor", tr.Status(models.StatusWaiting))
	assert.Equal(t, "Shipment And Packing", tr.Status(models.StatusShipmentAndPacking), "falls back to English")
	assert.Equal(t, "International Assembly Mechanics", tr.Option(strPtr("department.international_assembly_mechanics")))

	es := NewTranslator("es")
	assert.Equal(t, "Historial", es.T("history"))

	en := NewTranslator("fr")
	assert.Equal(t, "en", en.Lang())
	assert.Equal(t, "Wrong Part", en.Option(strPtr("reasons.wrong_part")))
	assert.Equal(t, "not.a.key", en.T("not.a.key"))
	assert.Equal(t, "", en.Option(nil))
	assert.Equal(t, "reduce speed by 10%", en.T("reduce speed by 10%"))
}
