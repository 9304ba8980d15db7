package scripts

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterEnqueue(t *testing.T) {
	r := NewRegistry()

	assert.True(t, r.Register("app", "/app.js", nil, Options{}))
	assert.False(t, r.Register("app", "/other.js", nil, Options{}), "duplicate handle")
	assert.False(t, r.Register("", "/x.js", nil, Options{}))

	assert.False(t, r.Enqueue("missing"))
	assert.True(t, r.Enqueue("app"))
	assert.True(t, r.IsEnqueued("app"))

	a, ok := r.Asset("app")
	require.True(t, ok)
	assert.Equal(t, "/app.js", a.Src)

	assert.False(t, r.AddInline("missing", "x()", Before))
	assert.False(t, r.AddInline("app", "", Before))
}

func TestRegistry_QueueOrder(t *testing.T) {
	r := NewRegistry()
	r.Register("late", "/late.js", nil, Options{Priority: 10})
	r.Register("b", "/b.js", nil, Options{})
	r.Register("a", "/a.js", nil, Options{})
	r.Register("first", "", nil, Options{Priority: 1})

	r.Enqueue("late")
	r.Enqueue("b")
	r.Enqueue("a")
	r.Enqueue("first")
	r.Enqueue("b") // re-enqueue keeps original position

	var handles []string
	for _, a := range r.Queue() {
		handles = append(handles, a.Handle)
	}
	assert.Equal(t, []string{"b", "a", "first", "late"}, handles)
}

func TestRegistry_PrintInlineOnly(t *testing.T) {
	r := NewRegistry()
	require.True(t, r.RegisterInlineScript("data", "window.x = 1;", Before, Options{Priority: 1}))

	var buf bytes.Buffer
	require.NoError(t, r.PrintHead(&buf))
	out := buf.String()

	assert.Equal(t, "<script id=\"data-js-before\">\nwindow.x = 1;\n</script>\n", out)
	assert.NotContains(t, out, "src=")
}

func TestRegistry_PrintFooterDeferred(t *testing.T) {
	r := NewRegistry()
	r.Register("loader", "https://cdn.example.com/l.js?id=G-1", nil, Options{InFooter: true, Strategy: Defer})
	r.AddInline("loader", "init();", Before)
	r.AddInline("loader", "more();", Before)
	r.AddInline("loader", "after();", After)
	r.Enqueue("loader")

	var head bytes.Buffer
	require.NoError(t, r.PrintHead(&head))
	assert.Empty(t, head.String())

	var foot bytes.Buffer
	require.NoError(t, r.PrintFooter(&foot))
	out := foot.String()

	before := strings.Index(out, `<script id="loader-js-before">`)
	src := strings.Index(out, `<script src="https://cdn.example.com/l.js?id=G-1" id="loader-js" defer data-strategy="defer"></script>`)
	after := strings.Index(out, `<script id="loader-js-after">`)
	require.True(t, before >= 0 && src >= 0 && after >= 0, out)
	assert.True(t, before < src && src < after)
	assert.Contains(t, out, "init();\nmore();")

	// printed once
	foot.Reset()
	require.NoError(t, r.PrintFooter(&foot))
	assert.Empty(t, foot.String())
}

func TestRegistry_PrintDepsFirst(t *testing.T) {
	r := NewRegistry()
	r.Register("lib", "/lib.js", nil, Options{})
	r.Register("app", "/app.js", []string{"lib", "unknown"}, Options{})
	r.Register("cyclic", "/c.js", []string{"cyclic"}, Options{Strategy: Async})
	r.Enqueue("app")
	r.Enqueue("cyclic")

	var buf bytes.Buffer
	require.NoError(t, r.PrintHead(&buf))
	out := buf.String()

	assert.Less(t, strings.Index(out, "/lib.js"), strings.Index(out, "/app.js"))
	assert.Contains(t, out, `src="/c.js" id="cyclic-js" async data-strategy="async"`)
}
