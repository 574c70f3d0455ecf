package configsvc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lakehouse-apps/chat-config-manager/internal/dbx"
)

type fakeSource struct {
	endpoints []dbx.ServingEndpoint
	err       error
	calls     int
}

func (f *fakeSource) ListEndpoints(ctx context.Context) ([]dbx.ServingEndpoint, error) {
	f.calls++
	return f.endpoints, f.err
}

func TestCatalogCachesListing(t *testing.T) {
	t.Parallel()

	src := &fakeSource{endpoints: []dbx.ServingEndpoint{
		{Name: "databricks-claude-sonnet-4-5", Task: "llm/v1/chat"},
		{Name: "custom-model"},
	}}
	catalog := NewCatalog(CatalogOptions{Source: src, TTL: time.Minute})

	first := catalog.Available(context.Background())
	if len(first) != 2 || first[0].Name != "databricks-claude-sonnet-4-5" {
		t.Fatalf("unexpected listing: %+v", first)
	}
	second := catalog.Available(context.Background())
	if len(second) != 2 {
		t.Fatalf("unexpected cached listing: %+v", second)
	}
	if src.calls != 1 {
		t.Fatalf("expected one upstream call, got %d", src.calls)
	}

	catalog.Invalidate(context.Background())
	catalog.Available(context.Background())
	if src.calls != 2 {
		t.Fatalf("expected refresh after invalidation, got %d calls", src.calls)
	}
}

func TestCatalogFailureYieldsEmptyListing(t *testing.T) {
	t.Parallel()

	src := &fakeSource{err: errors.New("workspace down")}
	catalog := NewCatalog(CatalogOptions{Source: src, TTL: time.Minute})

	infos := catalog.Available(context.Background())
	if infos == nil || len(infos) != 0 {
		t.Fatalf("expected empty non-nil listing, got %+v", infos)
	}
}
