package tag

import (
	"bytes"
	"encoding/json"
	"text/template"
)

// encoded marks text that is already a JSON literal safe to embed in a
// <script> element. json.Marshal escapes <, >, &, U+2028 and U+2029.
type encoded string

func encode(v any) (encoded, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return encoded(b), nil
}

var dataLayerTmpl = template.Must(template.New("datalayer").Parse(
	`window.dataLayer = window.dataLayer || [];
window.dataLayer.push({{.Payload}});`))

var gtagTmpl = template.Must(template.New("gtag").Parse(
	`window.dataLayer = window.dataLayer || [];
function gtag(){dataLayer.push(arguments);}
gtag("set", "linker", { "domains": {{.Domains}} });
gtag("js", new Date() );
gtag("config", {{.MeasurementID}}, {{.Config}});
gtag("set", "user_properties", { is_subscriber: {{.IsSubscriber}} } );`))

type dataLayerFields struct {
	Payload encoded
}

type gtagFields struct {
	MeasurementID encoded
	Domains       encoded
	Config        encoded
	IsSubscriber  int
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// dataLayerScript pushes payload onto window.dataLayer.
func dataLayerScript(payload any) (string, error) {
	p, err := encode(payload)
	if err != nil {
		return "", err
	}
	return render(dataLayerTmpl, dataLayerFields{Payload: p})
}

// gtagScript boots gtag with a cross-domain linker and the config call.
// config must encode to a JSON object.
func gtagScript(measurementID string, domains []string, config any, isSubscriber int) (string, error) {
	id, err := encode(measurementID)
	if err != nil {
		return "", err
	}
	d, err := encode(domains)
	if err != nil {
		return "", err
	}
	c, err := encode(config)
	if err != nil {
		return "", err
	}
	return render(gtagTmpl, gtagFields{MeasurementID: id, Domains: d, Config: c, IsSubscriber: isSubscriber})
}
