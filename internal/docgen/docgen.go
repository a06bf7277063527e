package docgen

import (
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/mkowalczyk/prawnik-backend/pkg/models"
)

// Data is the render context shared by every document template.
type Data struct {
	Date            string
	ClientName      string
	CompanyName     string
	CaseTitle       string
	CaseDescription string
	Summary         string
	Recommendations string
}

var templates = map[string]*template.Template{
	"wezwanie_do_zaplaty": must("wezwanie_do_zaplaty", `WEZWANIE DO ZAPŁATY

{{.Date}}

Nadawca: {{.ClientName}}{{if .CompanyName}} ({{.CompanyName}}){{end}}

Dotyczy: {{.CaseTitle}}

Działając w imieniu własnym, niniejszym wzywam do zapłaty należności wynikającej z opisanej poniżej sprawy, w terminie 14 dni od daty otrzymania niniejszego wezwania.

Stan faktyczny:
{{.CaseDescription}}
{{if .Summary}}
Podsumowanie prawne:
{{.Summary}}
{{end}}
W przypadku braku zapłaty w wyznaczonym terminie sprawa zostanie skierowana na drogę postępowania sądowego, co narazi Państwa na dodatkowe koszty procesu oraz odsetki ustawowe za opóźnienie.

Z poważaniem,
{{.ClientName}}`),

	"odpowiedz_na_pismo": must("odpowiedz_na_pismo", `ODPOWIEDŹ NA PISMO

{{.Date}}

Nadawca: {{.ClientName}}{{if .CompanyName}} ({{.CompanyName}}){{end}}

Dotyczy: {{.CaseTitle}}

W odpowiedzi na otrzymane pismo przedstawiam następujące stanowisko:

{{.CaseDescription}}
{{if .Recommendations}}
Uzasadnienie:
{{.Recommendations}}
{{end}}
Z poważaniem,
{{.ClientName}}`),

	"pelnomocnictwo": must("pelnomocnictwo", `PEŁNOMOCNICTWO

{{.Date}}

Ja, niżej podpisany/a {{.ClientName}}{{if .CompanyName}}, działając w imieniu {{.CompanyName}},{{end}} udzielam pełnomocnictwa do reprezentowania mnie we wszystkich czynnościach związanych ze sprawą: {{.CaseTitle}}.

Pełnomocnictwo obejmuje w szczególności składanie i odbiór pism, oświadczeń oraz reprezentację przed sądami i organami administracji.

_________________________
(podpis mocodawcy)`),

	"ugoda": must("ugoda", `PROJEKT UGODY

{{.Date}}

Strona: {{.ClientName}}{{if .CompanyName}} ({{.CompanyName}}){{end}}

Dotyczy: {{.CaseTitle}}

Strony zgodnie postanawiają zakończyć spór opisany poniżej na warunkach ustalonych w toku negocjacji.

Przedmiot sporu:
{{.CaseDescription}}
{{if .Summary}}
Ocena prawna:
{{.Summary}}
{{end}}
_________________________          _________________________
(strona pierwsza)                  (strona druga)`),
}

func must(name, body string) *template.Template {
	return template.Must(template.New(name).Parse(body))
}

// Types lists the supported document types.
func Types() []string {
	out := make([]string, 0, len(templates))
	for k := range templates {
		out = append(out, k)
	}
	return out
}

// Render produces draft document text for the given type from case and
// analysis data. The operator edits the draft before it is published to
// the client.
func Render(docType string, cs *models.Case, an *models.Analysis) (string, error) {
	tpl, ok := templates[docType]
	if !ok {
		return "", fmt.Errorf("unknown document type %q", docType)
	}

	data := Data{
		Date:            time.Now().Format("02.01.2006"),
		ClientName:      cs.User.FullName(),
		CompanyName:     cs.User.CompanyName,
		CaseTitle:       cs.Title,
		CaseDescription: cs.Description,
	}
	if an != nil {
		data.Summary = an.Summary
		data.Recommendations = an.Recommendations
	}

	var sb strings.Builder
	if err := tpl.Execute(&sb, data); err != nil {
		return "", err
	}
	return sb.String(), nil
}
