package extension

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"

	apperrors "github.com/kbukum/extkit/errors"
	"github.com/kbukum/extkit/event"
	"github.com/kbukum/extkit/observability"
)

func storeReader() *fakeReader {
	return newFakeReader().capability("Gateway").
		point("payment.gateway", true, false, "Gateway").
		point("report", false, false, "").
		extension("stripe", []string{"Gateway"}, "payment.gateway").
		extension("paypal", []string{"Gateway"}, "payment.gateway").
		extension("csv", nil, "report")
}

func TestStore_UnregisteredExtension(t *testing.T) {
	s, _ := newTestStore(storeReader(), newCountingInstantiator())
	ctx := context.Background()

	for _, key := range []string{"stripe", "nope", ""} {
		if _, err := s.Get(ctx, key); !errors.Is(err, ErrExtensionNotLoaded) {
			t.Errorf("Get(%q): expected ExtensionNotLoaded, got %v", key, err)
		}
		if _, err := s.Create(ctx, key, nil); !errors.Is(err, ErrExtensionNotLoaded) {
			t.Errorf("Create(%q): expected ExtensionNotLoaded, got %v", key, err)
		}
		if s.Has(key) {
			t.Errorf("Has(%q) = true", key)
		}
	}
}

func TestStore_SingletonIdentity(t *testing.T) {
	inst := newCountingInstantiator()
	s, _ := newTestStore(storeReader(), inst)
	mustRegisterPoints(s, "payment.gateway")
	mustRegister(s, "payment.gateway", "stripe")
	ctx := context.Background()

	a, err := s.Get(ctx, "stripe")
	if err != nil {
		t.Fatalf("first get: %v", err)
	}
	b, err := s.Get(ctx, "stripe")
	if err != nil {
		t.Fatalf("second get: %v", err)
	}
	if a != b {
		t.Error("expected identical instances")
	}
	if inst.calls.Load() != 1 {
		t.Errorf("expected one construction, got %d", inst.calls.Load())
	}

	_, err = s.Create(ctx, "stripe", nil)
	if !errors.Is(err, ErrExtensionSingleton) {
		t.Fatalf("expected ExtensionSingleton, got %v", err)
	}
	if SingletonAccessor(err) != AccessorGet {
		t.Errorf("expected accessor get, got %q", SingletonAccessor(err))
	}
}

func TestStore_NonSingletonDistinct(t *testing.T) {
	inst := newCountingInstantiator()
	s, _ := newTestStore(storeReader(), inst)
	mustRegisterPoints(s, "report")
	mustRegister(s, "report", "csv")
	ctx := context.Background()

	a, err := s.Create(ctx, "csv", map[string]any{"sep": ";"})
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	b, err := s.Create(ctx, "csv", nil)
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if a == b {
		t.Error("expected distinct instances")
	}
	if a.(*widget).params["sep"] != ";" {
		t.Errorf("create parameters not passed through: %v", a.(*widget).params)
	}
	if b.(*widget).params == nil {
		t.Error("nil parameters must reach the instantiator as an empty map")
	}
	if s.Instantiated("csv") {
		t.Error("non-singleton instances must never be cached")
	}

	_, err = s.Get(ctx, "csv")
	if !errors.Is(err, ErrExtensionSingleton) {
		t.Fatalf("expected ExtensionSingleton, got %v", err)
	}
	if SingletonAccessor(err) != AccessorCreate {
		t.Errorf("expected accessor create, got %q", SingletonAccessor(err))
	}
}

func TestStore_MissingDependencies(t *testing.T) {
	reader := storeReader().
		extension("pdf", nil, "report").
		meta("pdf", "report", Metadata{Name: "pdf", Dependencies: []string{"X", "csv", "Y"}}).
		meta("paypal", "payment.gateway", Metadata{Name: "paypal", Dependencies: []string{"stripe", "fx.rates"}})
	inst := newCountingInstantiator()
	s, _ := newTestStore(reader, inst)
	mustRegisterPoints(s, "payment.gateway", "report")
	mustRegister(s, "payment.gateway", "stripe", "paypal")
	mustRegister(s, "report", "csv", "pdf")
	ctx := context.Background()

	_, err := s.Create(ctx, "pdf", nil)
	if !errors.Is(err, ErrMissingDependencies) {
		t.Fatalf("expected MissingDependencies, got %v", err)
	}
	if got := MissingDependencyKeys(err); !slices.Equal(got, []string{"X", "Y"}) {
		t.Errorf("expected exactly [X Y], got %v", got)
	}

	_, err = s.Get(ctx, "paypal")
	if got := MissingDependencyKeys(err); !slices.Equal(got, []string{"fx.rates"}) {
		t.Errorf("expected exactly [fx.rates], got %v", got)
	}
	if s.Instantiated("paypal") {
		t.Error("failed get must cache nothing")
	}
	if inst.calls.Load() != 0 {
		t.Errorf("instantiator must not run when dependencies are missing, ran %d times", inst.calls.Load())
	}
}

func TestStore_MissingSingleDependencyScenario(t *testing.T) {
	reader := newFakeReader().
		point("P", false, false, "").
		extension("D", nil, "P").
		meta("D", "P", Metadata{Name: "D", Dependencies: []string{"X"}})
	s, _ := newTestStore(reader, newCountingInstantiator())
	mustRegisterPoints(s, "P")
	mustRegister(s, "P", "D")

	_, err := s.Create(context.Background(), "D", nil)
	if !errors.Is(err, ErrMissingDependencies) {
		t.Fatalf("expected MissingDependencies, got %v", err)
	}
	if got := MissingDependencyKeys(err); !slices.Equal(got, []string{"X"}) {
		t.Errorf("expected [X], got %v", got)
	}
	want := "MISSING_DEPENDENCIES: Could not create D extension: Missing dependencies (X)"
	if err.Error() != want {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestStore_IndependentSingletonsScenario(t *testing.T) {
	s, _ := newTestStore(storeReader(), newCountingInstantiator())
	mustRegisterPoints(s, "payment.gateway")
	mustRegister(s, "payment.gateway", "stripe", "paypal")
	ctx := context.Background()

	a1, _ := s.Get(ctx, "stripe")
	b1, _ := s.Get(ctx, "paypal")
	a2, _ := s.Get(ctx, "stripe")
	b2, _ := s.Get(ctx, "paypal")

	if a1 == nil || b1 == nil {
		t.Fatal("expected instances")
	}
	if a1 != a2 || b1 != b2 {
		t.Error("each singleton must be cached independently")
	}
	if a1 == b1 {
		t.Error("instances of different extensions must differ")
	}
}

func TestStore_SingletonParameters(t *testing.T) {
	reader := storeReader().
		meta("stripe", "payment.gateway", Metadata{Name: "Stripe", SingletonParameters: map[string]any{"key": "sk_test"}})
	s, _ := newTestStore(reader, newCountingInstantiator())
	mustRegisterPoints(s, "payment.gateway")
	mustRegister(s, "payment.gateway", "stripe")

	w, err := Get[*widget](context.Background(), s, "stripe")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if w.params["key"] != "sk_test" {
		t.Errorf("expected the record's singleton parameters, got %v", w.params)
	}
}

func TestStore_ConcurrentGetConstructsOnce(t *testing.T) {
	inst := newCountingInstantiator()
	s, _ := newTestStore(storeReader(), inst)
	mustRegisterPoints(s, "payment.gateway")
	mustRegister(s, "payment.gateway", "stripe")

	const n = 50
	results := make([]any, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = s.Get(context.Background(), "stripe")
		}(i)
	}
	wg.Wait()

	if inst.calls.Load() != 1 {
		t.Fatalf("expected exactly one construction, got %d", inst.calls.Load())
	}
	for i := 1; i < n; i++ {
		if results[i] != results[0] {
			t.Fatalf("goroutine %d got a different instance", i)
		}
	}
}

func TestStore_InstantiationFailure(t *testing.T) {
	inst := newCountingInstantiator()
	cause := errors.New("dial tcp: refused")
	inst.fail["stripe"] = cause
	s, _ := newTestStore(storeReader(), inst)
	mustRegisterPoints(s, "payment.gateway")
	mustRegister(s, "payment.gateway", "stripe")
	ctx := context.Background()

	_, err := s.Get(ctx, "stripe")
	if !errors.Is(err, ErrInstantiationFailed) {
		t.Fatalf("expected InstantiationFailed, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Error("expected the cause to be preserved")
	}
	if appErr, _ := apperrors.AsAppError(err); appErr == nil || !appErr.Retryable {
		t.Error("expected instantiation failure to be retryable")
	}
	if s.Instantiated("stripe") {
		t.Error("failed construction must cache nothing")
	}

	delete(inst.fail, "stripe")
	if _, err := s.Get(ctx, "stripe"); err != nil {
		t.Fatalf("get after recovery: %v", err)
	}
	if !s.Instantiated("stripe") {
		t.Error("expected cached instance")
	}
}

func TestStore_ValidateDependenciesMemoized(t *testing.T) {
	reader := storeReader().
		meta("csv", "report", Metadata{Name: "csv", Dependencies: []string{"stripe"}})
	s, _ := newTestStore(reader, newCountingInstantiator())
	mustRegisterPoints(s, "payment.gateway", "report")
	mustRegister(s, "report", "csv")

	if err := s.ValidateDependencies("csv"); !errors.Is(err, ErrMissingDependencies) {
		t.Fatalf("expected MissingDependencies before stripe is registered, got %v", err)
	}
	mustRegister(s, "payment.gateway", "stripe")
	if err := s.ValidateDependencies("csv"); err != nil {
		t.Fatalf("expected success once stripe is registered, got %v", err)
	}
	if err := s.ValidateDependencies("ghost"); !errors.Is(err, ErrExtensionNotLoaded) {
		t.Errorf("expected ExtensionNotLoaded, got %v", err)
	}
}

func TestStore_InstantiatedEvent(t *testing.T) {
	d := event.NewDispatcher()
	var got []*InstantiatedEvent
	var sawCached bool
	var s *Store
	d.Listen("extension.*", func(_ context.Context, e event.Event) error {
		ie := e.(*InstantiatedEvent)
		got = append(got, ie)
		if ie.Record.Singleton() {
			sawCached = s.Instantiated(ie.Record.Key())
		}
		return nil
	})

	s, _ = newTestStore(storeReader(), newCountingInstantiator(), WithNotifier(d))
	mustRegisterPoints(s, "payment.gateway", "report")
	mustRegister(s, "payment.gateway", "stripe")
	mustRegister(s, "report", "csv")
	ctx := context.Background()

	stripe, _ := s.Get(ctx, "stripe")
	_, _ = s.Get(ctx, "stripe")
	csv1, _ := s.Create(ctx, "csv", nil)
	csv2, _ := s.Create(ctx, "csv", nil)

	if len(got) != 3 {
		t.Fatalf("expected 3 events (one singleton, two creates), got %d", len(got))
	}
	if got[0].Instance != stripe || got[0].Record.Key() != "stripe" || got[0].Kind() != KindInstantiated {
		t.Errorf("unexpected first event %+v", got[0])
	}
	if got[1].Instance != csv1 || got[2].Instance != csv2 {
		t.Error("create events must carry the returned instances")
	}
	if got[1].EventID() == got[2].EventID() {
		t.Error("event IDs must be unique")
	}
	if !sawCached {
		t.Error("listeners must observe a fully registered singleton")
	}
}

func TestStore_ListenerFailureDoesNotAlterResult(t *testing.T) {
	n := &failingNotifier{}
	s, log := newTestStore(storeReader(), newCountingInstantiator(), WithNotifier(n))
	mustRegisterPoints(s, "report")
	mustRegister(s, "report", "csv")

	instance, err := s.Create(context.Background(), "csv", nil)
	if err != nil || instance == nil {
		t.Fatalf("listener failure changed the result: %v", err)
	}
	if len(n.events) != 1 {
		t.Errorf("expected one dispatched event, got %d", len(n.events))
	}
	if log.count("error") != 1 {
		t.Errorf("expected the listener failure to be logged once, got %d", log.count("error"))
	}
}

func TestStore_Close(t *testing.T) {
	var closed []string
	inst := newCountingInstantiator()
	inst.create = func(key string, params map[string]any, serial int64) any {
		w := &closingWidget{widget: widget{key: key, params: params, serial: serial}, closed: &closed}
		if key == "paypal" {
			w.err = errors.New("flush failed")
		}
		return w
	}
	s, _ := newTestStore(storeReader(), inst)
	mustRegisterPoints(s, "payment.gateway")
	mustRegister(s, "payment.gateway", "stripe", "paypal")
	ctx := context.Background()

	_, _ = s.Get(ctx, "paypal")
	_, _ = s.Get(ctx, "stripe")

	err := s.Close(ctx)
	if err == nil || err.Error() != "flush failed" {
		t.Errorf("expected joined close error, got %v", err)
	}
	if !slices.Equal(closed, []string{"stripe", "paypal"}) {
		t.Errorf("expected reverse instantiation order, got %v", closed)
	}
	if err := s.Close(ctx); err != nil {
		t.Errorf("second close must be a no-op, got %v", err)
	}
	if len(closed) != 2 {
		t.Errorf("instances closed twice: %v", closed)
	}
}

func TestStore_GenericHelpers(t *testing.T) {
	s, _ := newTestStore(storeReader(), newCountingInstantiator())
	mustRegisterPoints(s, "payment.gateway", "report")
	mustRegister(s, "payment.gateway", "stripe")
	mustRegister(s, "report", "csv")
	ctx := context.Background()

	if w, err := Create[*widget](ctx, s, "csv", nil); err != nil || w.key != "csv" {
		t.Errorf("Create[*widget] = %v, %v", w, err)
	}
	_, err := Get[*closingWidget](ctx, s, "stripe")
	if !errors.Is(err, ErrInstanceType) {
		t.Errorf("expected InstanceType, got %v", err)
	}
	if _, err := Get[*widget](ctx, s, "ghost"); !errors.Is(err, ErrExtensionNotLoaded) {
		t.Errorf("expected ExtensionNotLoaded, got %v", err)
	}
}

func TestStore_CheckHealth(t *testing.T) {
	s, _ := newTestStore(storeReader(), newCountingInstantiator())
	mustRegisterPoints(s, "payment.gateway")
	mustRegister(s, "payment.gateway", "stripe", "paypal")
	_, _ = s.Get(context.Background(), "stripe")

	h := s.CheckHealth(context.Background())
	if h.Status != observability.HealthStatusUp {
		t.Errorf("expected up, got %s", h.Status)
	}
	if h.Details["points"] != "1" || h.Details["extensions"] != "2" || h.Details["instantiated"] != "1" {
		t.Errorf("unexpected health details %v", h.Details)
	}
}

func TestStore_CheckHealthDegradedOnMissingDependency(t *testing.T) {
	reader := newFakeReader().
		point("P", false, false, "").
		extension("D", nil, "P").
		extension("E", nil, "P").
		meta("D", "P", Metadata{Name: "D", Dependencies: []string{"X"}}).
		meta("E", "P", Metadata{Name: "E", Dependencies: []string{"D"}})
	s, _ := newTestStore(reader, newCountingInstantiator())
	mustRegisterPoints(s, "P")
	mustRegister(s, "P", "D", "E")

	h := s.CheckHealth(context.Background())
	if h.Status != observability.HealthStatusDegraded {
		t.Fatalf("expected degraded, got %s", h.Status)
	}
	if h.Details["unresolved"] != "1" || !strings.Contains(h.Message, "D") {
		t.Errorf("unexpected health %+v", h)
	}
}

func TestStore_Lookup(t *testing.T) {
	inst := newCountingInstantiator()
	s, _ := newTestStore(storeReader(), inst)
	mustRegisterPoints(s, "payment.gateway")
	mustRegister(s, "payment.gateway", "stripe")

	rec, err := s.Lookup("stripe")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if rec.PointKey() != "payment.gateway" {
		t.Errorf("unexpected point %q", rec.PointKey())
	}
	if inst.calls.Load() != 0 {
		t.Error("Lookup must not instantiate")
	}
	if _, err := s.Lookup("nope"); !errors.Is(err, ErrExtensionNotLoaded) {
		t.Errorf("expected ExtensionNotLoaded, got %v", err)
	}
}
