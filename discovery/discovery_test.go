package discovery_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/xraph/tasker"
	"github.com/xraph/tasker/discovery"
	"github.com/xraph/tasker/task"
)

func noop(_ context.Context, _ task.Args) (any, error) { return nil, nil }

func registerAll(names ...string) discovery.Setup {
	return func(r *task.Registry) error {
		for _, n := range names {
			if err := r.Register(n, noop); err != nil {
				return err
			}
		}
		return nil
	}
}

func TestCatalog_DiscoverInNameOrder(t *testing.T) {
	c := discovery.NewCatalog()
	var order []string
	for _, name := range []string{"zeta", "alpha", "mid"} {
		c.Provide(name, func(_ *task.Registry) error {
			order = append(order, name)
			return nil
		})
	}

	if err := c.Discover(context.Background(), task.NewRegistry()); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"alpha", "mid", "zeta"}, order); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestCatalog_ViaRegistryAutodiscover(t *testing.T) {
	c := discovery.NewCatalog()
	c.Provide("billing", registerAll("billing.invoice", "billing.refund"))
	c.Provide("reports", registerAll("reports.daily"))

	r := task.NewRegistry()
	if err := r.Autodiscover(context.Background(), c); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"billing.invoice", "billing.refund", "reports.daily"}, r.Names()); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
}

func TestCatalog_Only(t *testing.T) {
	c := discovery.NewCatalog()
	c.Provide("billing", registerAll("billing.invoice"))
	c.Provide("reports", registerAll("reports.daily"))

	r := task.NewRegistry()
	if err := r.Autodiscover(context.Background(), c.Only("reports")); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"reports.daily"}, r.Names()); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}

	if err := c.Only("missing").Discover(context.Background(), task.NewRegistry()); err == nil {
		t.Error("expected error for unknown setup")
	}
}

func TestCatalog_PropagatesRegistrationError(t *testing.T) {
	c := discovery.NewCatalog()
	c.Provide("a", registerAll("same"))
	c.Provide("b", registerAll("same"))

	err := c.Discover(context.Background(), task.NewRegistry())
	if !errors.Is(err, tasker.ErrAlreadyRegistered) {
		t.Fatalf("expected ErrAlreadyRegistered, got %v", err)
	}
}

func TestCatalog_ProvideTwicePanics(t *testing.T) {
	c := discovery.NewCatalog()
	c.Provide("once", registerAll())

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	c.Provide("once", registerAll())
}

func TestCatalog_CancelledContext(t *testing.T) {
	c := discovery.NewCatalog()
	c.Provide("a", registerAll("x"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.Discover(ctx, task.NewRegistry()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
