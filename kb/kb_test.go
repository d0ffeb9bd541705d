package kb

import (
	"fmt"
	"sync"
	"testing"

	"github.com/signalsfoundry/orbit-sonifier/model"
)

func TestAddAssignsSequentialIDs(t *testing.T) {
	cat := NewCatalog()
	for i := range 3 {
		e, err := cat.Add(fmt.Sprintf("SAT-%d", i), model.CategoryScience, model.ElementHandle(i))
		if err != nil {
			t.Fatalf("Add error: %v", err)
		}
		if e.ID != i {
			t.Fatalf("Add assigned ID %d, want %d", e.ID, i)
		}
	}
	if got := cat.Len(); got != 3 {
		t.Fatalf("Len=%d, want 3", got)
	}
}

func TestAddRejectsEmptyName(t *testing.T) {
	cat := NewCatalog()
	if _, err := cat.Add("", model.CategoryDebris, 0); err == nil {
		t.Fatalf("expected Add with empty name to fail")
	}
}

func TestGetOutOfRange(t *testing.T) {
	cat := NewCatalog()
	if _, err := cat.Add("ISS", model.CategoryStation, 0); err != nil {
		t.Fatalf("Add error: %v", err)
	}
	if got := cat.Get(0); got == nil || got.Name != "ISS" {
		t.Fatalf("Get(0) = %#v, want ISS", got)
	}
	if got := cat.Get(1); got != nil {
		t.Fatalf("Get(1) = %#v, want nil", got)
	}
	if got := cat.Get(-1); got != nil {
		t.Fatalf("Get(-1) = %#v, want nil", got)
	}
}

func TestResetDestroysEntities(t *testing.T) {
	cat := NewCatalog()
	if _, err := cat.Add("ISS", model.CategoryStation, 0); err != nil {
		t.Fatalf("Add error: %v", err)
	}
	cat.Reset()
	if got := cat.Len(); got != 0 {
		t.Fatalf("Len after Reset = %d, want 0", got)
	}

	// IDs restart from zero.
	e, err := cat.Add("NOAA-15", model.CategoryWeather, 0)
	if err != nil {
		t.Fatalf("Add after Reset error: %v", err)
	}
	if e.ID != 0 {
		t.Fatalf("first ID after Reset = %d, want 0", e.ID)
	}
}

func TestSubscribeReceivesAddEvent(t *testing.T) {
	cat := NewCatalog()

	var wg sync.WaitGroup
	wg.Add(1)
	var got Event
	cat.Subscribe(func(e Event) {
		got = e
		wg.Done()
	})

	if _, err := cat.Add("GPS-IIF", model.CategoryNavigation, 7); err != nil {
		t.Fatalf("Add error: %v", err)
	}

	wg.Wait()
	if got.Type != EventEntityAdded {
		t.Fatalf("got event type %v, want EventEntityAdded", got.Type)
	}
	if got.Entity.Name != "GPS-IIF" || got.Entity.Category != model.CategoryNavigation {
		t.Fatalf("event entity = %#v, want GPS-IIF/NAVIGATION", got.Entity)
	}
}

func TestConcurrentAccess(t *testing.T) {
	cat := NewCatalog()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = cat.Get(0)
			_ = cat.List()
		}()
		go func(i int) {
			defer wg.Done()
			_, _ = cat.Add(fmt.Sprintf("SAT-%d", i), model.CategoryDebris, model.ElementHandle(i))
		}(i)
	}
	wg.Wait()

	if got := cat.Len(); got != 10 {
		t.Fatalf("Len=%d, want 10", got)
	}
}
