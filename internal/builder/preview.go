package builder

import (
	"html/template"
	"strings"

	"github.com/pitabwire/reportal/model"
)

var previewTemplate = template.Must(template.New("preview").Funcs(template.FuncMap{
	"inputType": inputType,
}).Parse(`<form class="form-preview">
{{- range .}}
{{- if eq .Kind "section"}}
  <fieldset class="section"><legend>{{.SectionTitle}}</legend></fieldset>
{{- else if eq .Kind "button"}}
  <button type="button" disabled>{{if .ButtonText}}{{.ButtonText}}{{else}}Button{{end}}</button>
{{- else}}
  <div class="field" data-kind="{{.Kind}}">
    <label for="{{.ID}}">{{.Label}}{{if .Required}} *{{end}}</label>
{{- if eq .Kind "textarea"}}
    <textarea id="{{.ID}}" placeholder="{{.Placeholder}}" disabled></textarea>
{{- else if eq .Kind "dropdown"}}
    <select id="{{.ID}}" disabled>
      <option value="">{{if .Placeholder}}{{.Placeholder}}{{else}}Select...{{end}}</option>
{{- range .Options}}
      <option value="{{.Value}}">{{.Label}}</option>
{{- end}}
    </select>
{{- else if eq .Kind "radio"}}
{{- $id := .ID}}
{{- range .Options}}
    <label><input type="radio" name="{{$id}}" value="{{.Value}}" disabled> {{.Label}}</label>
{{- end}}
{{- else if eq .Kind "checkboxGroup"}}
{{- $id := .ID}}
{{- range .Options}}
    <label><input type="checkbox" name="{{$id}}" value="{{.Value}}" disabled> {{.Label}}</label>
{{- end}}
{{- else if eq .Kind "checkbox"}}
    <input type="checkbox" id="{{.ID}}" disabled>
{{- else if eq .Kind "switch"}}
    <input type="checkbox" role="switch" id="{{.ID}}" disabled>
{{- else}}
    <input type="{{inputType .Kind}}" id="{{.ID}}" placeholder="{{.Placeholder}}" disabled>
{{- end}}
  </div>
{{- end}}
{{- end}}
</form>
`))

func inputType(k model.FieldKind) string {
	switch k {
	case model.KindNumber:
		return "number"
	case model.KindDate:
		return "date"
	case model.KindFile:
		return "file"
	default:
		return "text"
	}
}

// Preview renders fields as static, disabled HTML for operator review.
func Preview(fields []model.FieldDefinition) (string, error) {
	var b strings.Builder
	if err := previewTemplate.Execute(&b, fields); err != nil {
		return "", err
	}
	return b.String(), nil
}
