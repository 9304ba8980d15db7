package scripts

import (
	"html/template"
	"io"
	"sort"
	"strings"
)

type Position string

const (
	Before Position = "before"
	After  Position = "after"
)

type Strategy string

const (
	Blocking Strategy = ""
	Defer    Strategy = "defer"
	Async    Strategy = "async"
)

// Options control where and how an asset is printed. Lower Priority prints
// first; equal priorities keep enqueue order.
type Options struct {
	InFooter bool
	Strategy Strategy
	Priority int
}

type Asset struct {
	Handle string
	Src    string
	Deps   []string
	Opts   Options

	before []string
	after  []string
	seq    int
}

// Inline returns the inline content attached at pos, joined by newlines.
func (a *Asset) Inline(pos Position) string {
	if pos == After {
		return strings.Join(a.after, "\n")
	}
	return strings.Join(a.before, "\n")
}

// Registry holds one render's script assets. It is not safe for concurrent
// use; build a new one per request.
type Registry struct {
	assets   map[string]*Asset
	enqueued map[string]bool
	printed  map[string]bool
	seq      int
}

func NewRegistry() *Registry {
	return &Registry{
		assets:   map[string]*Asset{},
		enqueued: map[string]bool{},
		printed:  map[string]bool{},
	}
}

// Register adds an asset. An empty src registers an inline-only asset.
// It reports false when the handle is already taken.
func (r *Registry) Register(handle, src string, deps []string, opts Options) bool {
	if handle == "" {
		return false
	}
	if _, ok := r.assets[handle]; ok {
		return false
	}
	r.assets[handle] = &Asset{Handle: handle, Src: src, Deps: deps, Opts: opts}
	return true
}

// Enqueue marks a registered asset for printing. Unknown handles are ignored.
func (r *Registry) Enqueue(handle string) bool {
	a, ok := r.assets[handle]
	if !ok {
		return false
	}
	if !r.enqueued[handle] {
		r.seq++
		a.seq = r.seq
		r.enqueued[handle] = true
	}
	return true
}

// AddInline attaches inline script content before or after the asset's tag.
func (r *Registry) AddInline(handle, content string, pos Position) bool {
	a, ok := r.assets[handle]
	if !ok || content == "" {
		return false
	}
	if pos == After {
		a.after = append(a.after, content)
	} else {
		a.before = append(a.before, content)
	}
	return true
}

// RegisterInlineScript registers an inline-only asset, enqueues it and
// attaches content at pos.
func (r *Registry) RegisterInlineScript(handle, content string, pos Position, opts Options) bool {
	if !r.Register(handle, "", nil, opts) {
		return false
	}
	r.Enqueue(handle)
	return r.AddInline(handle, content, pos)
}

func (r *Registry) Asset(handle string) (*Asset, bool) {
	a, ok := r.assets[handle]
	return a, ok
}

func (r *Registry) IsEnqueued(handle string) bool { return r.enqueued[handle] }

// Queue returns the enqueued assets in print order.
func (r *Registry) Queue() []*Asset {
	out := make([]*Asset, 0, len(r.enqueued))
	for h := range r.enqueued {
		out = append(out, r.assets[h])
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Opts.Priority != out[j].Opts.Priority {
			return out[i].Opts.Priority < out[j].Opts.Priority
		}
		return out[i].seq < out[j].seq
	})
	return out
}

// PrintHead writes the enqueued head assets.
func (r *Registry) PrintHead(w io.Writer) error { return r.print(w, false) }

// PrintFooter writes the enqueued footer assets plus anything enqueued
// after the head was printed.
func (r *Registry) PrintFooter(w io.Writer) error { return r.print(w, true) }

func (r *Registry) print(w io.Writer, footer bool) error {
	for _, a := range r.Queue() {
		if a.Opts.InFooter && !footer {
			continue
		}
		if err := r.printAsset(w, a, map[string]bool{}); err != nil {
			return err
		}
	}
	return nil
}

// printAsset prints dependencies first; seen guards against cycles.
func (r *Registry) printAsset(w io.Writer, a *Asset, seen map[string]bool) error {
	if r.printed[a.Handle] || seen[a.Handle] {
		return nil
	}
	seen[a.Handle] = true
	for _, d := range a.Deps {
		if dep, ok := r.assets[d]; ok {
			if err := r.printAsset(w, dep, seen); err != nil {
				return err
			}
		}
	}
	r.printed[a.Handle] = true
	return assetTemplate.Execute(w, assetView{
		Handle:   a.Handle,
		Src:      a.Src,
		Strategy: string(a.Opts.Strategy),
		// inline content is built from encoded values by its producer
		Before: template.JS(a.Inline(Before)),
		After:  template.JS(a.Inline(After)),
	})
}

type assetView struct {
	Handle   string
	Src      string
	Strategy string
	Before   template.JS
	After    template.JS
}

var assetTemplate = template.Must(template.New("asset").Parse(
	`{{if .Before}}<script id="{{.Handle}}-js-before">
{{.Before}}
</script>
{{end}}{{if .Src}}<script src="{{.Src}}" id="{{.Handle}}-js"` +
		`{{if eq .Strategy "defer"}} defer data-strategy="defer"{{else if eq .Strategy "async"}} async data-strategy="async"{{end}}></script>
{{end}}{{if .After}}<script id="{{.Handle}}-js-after">
{{.After}}
</script>
{{end}}`))
