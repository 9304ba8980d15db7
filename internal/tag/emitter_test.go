package tag

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xwp/ga4-extensions/internal/content"
	"github.com/xwp/ga4-extensions/internal/facts"
	"github.com/xwp/ga4-extensions/internal/scripts"
	"github.com/xwp/ga4-extensions/internal/settings"
	"github.com/xwp/ga4-extensions/internal/storage"
)

type MockOptions struct {
	values map[string]string
	err    error
}

func (m *MockOptions) Get(_ context.Context, name string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.values[name], nil
}

type MockFacts struct{ f facts.Facts }

func (m MockFacts) Resolve(context.Context, content.RequestContext) facts.Facts { return m.f }

var singleFacts = facts.Facts{
	Single:       true,
	PostAuthor:   "alice",
	PostCategory: "news tech",
	PostTags:     "",
	IsSubscriber: 1,
}

func withID(id string) *MockOptions {
	return &MockOptions{values: map[string]string{settings.MeasurementIDOption: id}}
}

func TestEmit_Scenarios(t *testing.T) {
	tests := []struct {
		name       string
		options    *MockOptions
		siteURL    string
		facts      facts.Facts
		wantGtag   bool
		wantSkip   SkipReason
		wantInGtag []string
	}{
		{
			name:     "no measurement id",
			options:  withID(""),
			siteURL:  "https://example.com",
			wantSkip: SkipNoMeasurementID,
		},
		{
			name:     "option read error",
			options:  &MockOptions{err: errors.New("db down")},
			siteURL:  "https://example.com",
			wantSkip: SkipOptionError,
		},
		{
			name:     "stored id not normalized",
			options:  withID("g-test123"),
			siteURL:  "https://example.com",
			wantSkip: SkipBadMeasurementID,
		},
		{
			name:     "stored id with script",
			options:  withID(`G-1");alert(1);//`),
			siteURL:  "https://example.com",
			wantSkip: SkipBadMeasurementID,
		},
		{
			name:     "site url without host",
			options:  withID("G-TEST123"),
			siteURL:  "example.com",
			wantSkip: SkipUnparseableDomain,
		},
		{
			name:     "unparseable site url",
			options:  withID("G-TEST123"),
			siteURL:  "http://[::1",
			wantSkip: SkipUnparseableDomain,
		},
		{
			name:     "listing page",
			options:  withID("G-TEST123"),
			siteURL:  "https://example.com:8443/blog",
			facts:    facts.Facts{IsSubscriber: 0},
			wantGtag: true,
			wantInGtag: []string{
				`gtag("set", "linker", { "domains": ["example.com"] });`,
				`gtag("config", "G-TEST123", {});`,
				`gtag("set", "user_properties", { is_subscriber: 0 } );`,
			},
		},
		{
			name:     "single post",
			options:  withID("G-TEST123"),
			siteURL:  "https://example.com",
			facts:    singleFacts,
			wantGtag: true,
			wantInGtag: []string{
				`gtag("config", "G-TEST123", {"post_author":"alice","post_category":"news tech","post_tags":""});`,
				`gtag("set", "user_properties", { is_subscriber: 1 } );`,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEmitter(tt.options, MockFacts{f: tt.facts}, tt.siteURL)
			reg := scripts.NewRegistry()

			res := e.Emit(context.Background(), content.RequestContext{}, reg)

			assert.True(t, res.DataLayer, "data layer always emits")
			assert.True(t, reg.IsEnqueued(HandleDataLayer))
			assert.Equal(t, tt.wantGtag, res.Gtag)
			assert.Equal(t, tt.wantSkip, res.GtagSkip)

			a, ok := reg.Asset(HandleGtag)
			if !tt.wantGtag {
				assert.False(t, ok)
				return
			}
			require.True(t, ok)
			assert.Equal(t, "https://www.googletagmanager.com/gtag/js?id=G-TEST123", a.Src)
			assert.True(t, a.Opts.InFooter)
			assert.Equal(t, scripts.Defer, a.Opts.Strategy)
			inline := a.Inline(scripts.Before)
			assert.True(t, strings.HasPrefix(inline, "window.dataLayer = window.dataLayer || [];\nfunction gtag(){dataLayer.push(arguments);}\n"))
			assert.Contains(t, inline, `gtag("js", new Date() );`)
			for _, want := range tt.wantInGtag {
				assert.Contains(t, inline, want)
			}
		})
	}
}

func TestEnqueueDataLayer_Script(t *testing.T) {
	e := NewEmitter(withID(""), MockFacts{}, "https://example.com")
	reg := scripts.NewRegistry()

	ok, skip := e.EnqueueDataLayer(reg, singleFacts)
	require.True(t, ok)
	assert.Equal(t, SkipNone, skip)

	a, _ := reg.Asset(HandleDataLayer)
	assert.Equal(t, "", a.Src)
	assert.Equal(t, PriorityDataLayer, a.Opts.Priority)
	assert.Equal(t,
		"window.dataLayer = window.dataLayer || [];\n"+
			`window.dataLayer.push({"user_properties":{"is_subscriber":1},"post_author":"alice","post_category":"news tech","post_tags":""});`,
		a.Inline(scripts.Before))
}

func TestEnqueueDataLayer_EncodeFailureSkipsEverything(t *testing.T) {
	e := NewEmitter(withID(""), MockFacts{}, "https://example.com")
	e.encodePayload = func(any) (string, error) { return "", errors.New("unsupported value") }
	reg := scripts.NewRegistry()

	ok, skip := e.EnqueueDataLayer(reg, facts.Facts{})
	assert.False(t, ok)
	assert.Equal(t, SkipEncode, skip)
	_, registered := reg.Asset(HandleDataLayer)
	assert.False(t, registered, "no partial output")
}

func TestEmit_EscapesScriptBreakout(t *testing.T) {
	f := facts.Facts{Single: true, PostAuthor: "</script><script>alert(1)</script>", PostCategory: "a&b"}
	e := NewEmitter(withID("G-TEST123"), MockFacts{f: f}, "https://example.com")
	reg := scripts.NewRegistry()
	e.Emit(context.Background(), content.RequestContext{}, reg)

	var buf bytes.Buffer
	require.NoError(t, reg.PrintHead(&buf))
	require.NoError(t, reg.PrintFooter(&buf))
	out := buf.String()

	assert.NotContains(t, out, "</script><script>alert")
	assert.Contains(t, out, `</script>`)
	assert.Contains(t, out, `a\u0026b`)
}

func TestEmit_PrintOrder(t *testing.T) {
	e := NewEmitter(withID("G-TEST123"), MockFacts{f: singleFacts}, "https://example.com")
	reg := scripts.NewRegistry()
	e.Emit(context.Background(), content.RequestContext{}, reg)

	var head, foot bytes.Buffer
	require.NoError(t, reg.PrintHead(&head))
	require.NoError(t, reg.PrintFooter(&foot))

	assert.Contains(t, head.String(), `<script id="ga4-ext-data-layer-js-before">`)
	assert.NotContains(t, head.String(), "gtag/js")

	out := foot.String()
	before := strings.Index(out, `<script id="ga4-ext-gtagjs-js-before">`)
	src := strings.Index(out, `<script src="https://www.googletagmanager.com/gtag/js?id=G-TEST123" id="ga4-ext-gtagjs-js" defer`)
	require.True(t, before >= 0 && src >= 0, out)
	assert.Less(t, before, src)
}

func TestEmit_WithSettingsAndResolver(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	mgr := settings.NewManager(store)
	require.NoError(t, settings.RegisterMeasurementID(mgr))
	store.PutUser(content.User{ID: 1, Login: "alice"})
	store.SetTerms(10, content.TaxonomyCategory, []content.Term{{Slug: "news"}, {Slug: "tech"}})

	e := NewEmitter(mgr, facts.NewResolver(store, store), "https://example.com")
	rc := content.RequestContext{Single: true, Post: &content.Post{ID: 10, AuthorID: 1}}

	res := e.Emit(ctx, rc, scripts.NewRegistry())
	assert.True(t, res.DataLayer)
	assert.False(t, res.Gtag)
	assert.Equal(t, "news tech", res.Facts.PostCategory)

	_, err := mgr.Save(ctx, settings.GroupGeneral, map[string][]string{settings.MeasurementIDOption: {" g-test123 "}})
	require.NoError(t, err)

	res = e.Emit(ctx, rc, scripts.NewRegistry())
	assert.True(t, res.Gtag)
}

func TestEnqueueGtag_IPv6LinkerDomain(t *testing.T) {
	e := NewEmitter(withID("G-TEST123"), MockFacts{}, "http://[::1]:8080/")
	reg := scripts.NewRegistry()

	ok, _ := e.EnqueueGtag(context.Background(), reg, facts.Facts{})
	require.True(t, ok)
	a, _ := reg.Asset(HandleGtag)
	assert.Contains(t, a.Inline(scripts.Before), `{ "domains": ["[::1]"] }`)
}

func TestSiteDomain(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"https://example.com", "example.com", true},
		{"http://Example.com:8080/wp", "Example.com", true},
		{"https://[::1]:443/", "[::1]", true},
		{"http://[2001:db8::1]/blog", "[2001:db8::1]", true},
		{"example.com", "", false},
		{"", "", false},
		{"%zz", "", false},
	}
	for _, tt := range tests {
		got, ok := SiteDomain(tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.wantOK, ok, tt.in)
	}
}
