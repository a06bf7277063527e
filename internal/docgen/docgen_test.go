package docgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkowalczyk/prawnik-backend/pkg/models"
)

func sampleCase() *models.Case {
	return &models.Case{
		Title:       "Spór z deweloperem o opóźnienie",
		Description: "Deweloper oddał lokal 6 miesięcy po terminie.",
		User: models.User{
			FirstName:   "Jan",
			LastName:    "Kowalski",
			CompanyName: "Kowalski Sp. z o.o.",
		},
	}
}

func TestRenderKnownTypes(t *testing.T) {
	cs := sampleCase()
	an := &models.Analysis{
		Summary:         "Umowa przewiduje kary umowne za opóźnienie.",
		Recommendations: "Naliczyć kary umowne zgodnie z par. 9.",
	}

	for _, docType := range Types() {
		out, err := Render(docType, cs, an)
		require.NoError(t, err, "type %s", docType)
		assert.Contains(t, out, "Jan Kowalski", "type %s", docType)
		assert.NotContains(t, out, "{{", "unrendered template in %s", docType)
	}
}

func TestRenderIncludesAnalysis(t *testing.T) {
	out, err := Render("wezwanie_do_zaplaty", sampleCase(), &models.Analysis{
		Summary: "Roszczenie jest zasadne.",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "WEZWANIE DO ZAPŁATY")
	assert.Contains(t, out, "Roszczenie jest zasadne.")
	assert.Contains(t, out, "Kowalski Sp. z o.o.")
}

func TestRenderWithoutAnalysis(t *testing.T) {
	out, err := Render("wezwanie_do_zaplaty", sampleCase(), nil)
	require.NoError(t, err)
	assert.NotContains(t, out, "Podsumowanie prawne")
}

func TestRenderUnknownType(t *testing.T) {
	_, err := Render("testament", sampleCase(), nil)
	assert.Error(t, err)
}
