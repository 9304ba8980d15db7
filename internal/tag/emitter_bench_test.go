package tag

import (
	"context"
	"testing"

	"github.com/xwp/ga4-extensions/internal/content"
	"github.com/xwp/ga4-extensions/internal/scripts"
)

func BenchmarkEmit(b *testing.B) {
	e := NewEmitter(withID("G-TEST123"), MockFacts{f: singleFacts}, "https://example.com")
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = e.Emit(ctx, content.RequestContext{}, scripts.NewRegistry())
	}
}
