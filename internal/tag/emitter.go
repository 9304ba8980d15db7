package tag

import (
	"context"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/xwp/ga4-extensions/internal/content"
	"github.com/xwp/ga4-extensions/internal/facts"
	"github.com/xwp/ga4-extensions/internal/scripts"
	"github.com/xwp/ga4-extensions/internal/settings"
)

const (
	HandleDataLayer = "ga4-ext-data-layer"
	HandleGtag      = "ga4-ext-gtagjs"

	GtagURL = "https://www.googletagmanager.com/gtag/js"
)

// Print priorities; the data layer goes out before anything else.
const (
	PriorityDataLayer = 1
	PriorityGtag      = 10
)

type SkipReason string

const (
	SkipNone              SkipReason = ""
	SkipEncode            SkipReason = "encode"
	SkipOptionError       SkipReason = "option_error"
	SkipNoMeasurementID   SkipReason = "no_measurement_id"
	SkipBadMeasurementID  SkipReason = "invalid_measurement_id"
	SkipUnparseableDomain SkipReason = "unparseable_domain"
)

type OptionReader interface {
	Get(ctx context.Context, name string) (string, error)
}

type FactsResolver interface {
	Resolve(ctx context.Context, rc content.RequestContext) facts.Facts
}

// Result reports which paths emitted and why the others did not.
type Result struct {
	Facts         facts.Facts
	DataLayer     bool
	DataLayerSkip SkipReason
	Gtag          bool
	GtagSkip      SkipReason
}

type Emitter struct {
	options OptionReader
	facts   FactsResolver
	siteURL string

	// encodePayload is swapped in tests to force an encoding failure.
	encodePayload func(any) (string, error)
}

func NewEmitter(options OptionReader, resolver FactsResolver, siteURL string) *Emitter {
	return &Emitter{
		options:       options,
		facts:         resolver,
		siteURL:       siteURL,
		encodePayload: dataLayerScript,
	}
}

// Emit resolves the request facts once and runs both emission paths
// against reg. Nothing here fails the render.
func (e *Emitter) Emit(ctx context.Context, rc content.RequestContext, reg *scripts.Registry) Result {
	f := e.facts.Resolve(ctx, rc)
	res := Result{Facts: f}
	res.DataLayer, res.DataLayerSkip = e.EnqueueDataLayer(reg, f)
	res.Gtag, res.GtagSkip = e.EnqueueGtag(ctx, reg, f)
	return res
}

// EnqueueDataLayer registers the inline-only data layer asset carrying the
// facts payload. It runs on every page.
func (e *Emitter) EnqueueDataLayer(reg *scripts.Registry, f facts.Facts) (bool, SkipReason) {
	js, err := e.encodePayload(f.Payload())
	if err != nil {
		log.Debug().Err(err).Msg("data layer emission skipped")
		return false, SkipEncode
	}
	reg.Register(HandleDataLayer, "", nil, scripts.Options{Priority: PriorityDataLayer})
	reg.Enqueue(HandleDataLayer)
	reg.AddInline(HandleDataLayer, js, scripts.Before)
	return true, SkipNone
}

// EnqueueGtag registers the deferred gtag.js loader with its bootstrap
// inline script. It needs a Measurement ID and a site host.
func (e *Emitter) EnqueueGtag(ctx context.Context, reg *scripts.Registry, f facts.Facts) (bool, SkipReason) {
	id, err := e.options.Get(ctx, settings.MeasurementIDOption)
	if err != nil {
		log.Debug().Err(err).Msg("gtag emission skipped: option read failed")
		return false, SkipOptionError
	}
	if id == "" {
		return false, SkipNoMeasurementID
	}
	// stored values are sanitized on save; rows written around the form are not.
	if v := settings.ValidateMeasurementID(id); !v.OK || v.Value != id {
		log.Debug().Msg("gtag emission skipped: stored measurement id is invalid")
		return false, SkipBadMeasurementID
	}

	domain, ok := SiteDomain(e.siteURL)
	if !ok {
		log.Debug().Str("site_url", e.siteURL).Msg("gtag emission skipped: no host in site url")
		return false, SkipUnparseableDomain
	}

	config := any(struct{}{})
	if pd := f.PostData(); pd != nil {
		config = pd
	}
	js, err := gtagScript(id, []string{domain}, config, f.IsSubscriber)
	if err != nil {
		log.Debug().Err(err).Msg("gtag emission skipped")
		return false, SkipEncode
	}

	reg.Register(HandleGtag, GtagURL+"?id="+url.QueryEscape(id), nil, scripts.Options{
		InFooter: true,
		Strategy: scripts.Defer,
		Priority: PriorityGtag,
	})
	// before is the only inline position the defer strategy keeps in order.
	reg.AddInline(HandleGtag, js, scripts.Before)
	reg.Enqueue(HandleGtag)
	return true, SkipNone
}

// SiteDomain returns the host of siteURL without port. IPv6 literals keep
// their brackets.
func SiteDomain(siteURL string) (string, bool) {
	u, err := url.Parse(siteURL)
	if err != nil {
		return "", false
	}
	host := u.Hostname()
	if host == "" {
		return "", false
	}
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	return host, true
}
