package wayland

import (
	"errors"
	"math/rand"
	"reflect"
	"sort"
	"testing"

	"github.com/danmuck/wlprobe/internal/protocol/schema"
	"github.com/danmuck/wlprobe/internal/protocol/wire"
	"github.com/danmuck/wlprobe/internal/testutil/testlog"
)

func registryMsg(t *testing.T, opcode uint16, args ...wire.Arg) wire.Message {
	t.Helper()
	payload, err := wire.EncodeArgs(args)
	if err != nil {
		t.Fatalf("encode args: %v", err)
	}
	return wire.Message{Header: wire.Header{ObjectID: 2, Opcode: opcode}, Payload: payload}
}

func globalMsg(t *testing.T, name uint32, iface string, version uint32) wire.Message {
	return registryMsg(t, schema.RegistryEventGlobal, wire.Uint(name), wire.String(iface), wire.Uint(version))
}

func removeMsg(t *testing.T, name uint32) wire.Message {
	return registryMsg(t, schema.RegistryEventGlobalRemove, wire.Uint(name))
}

func TestRegistryAddAddRemoveScenario(t *testing.T) {
	testlog.Start(t)
	r := newRegistry(nil)
	for _, msg := range []wire.Message{
		globalMsg(t, 1, "clock", 1),
		globalMsg(t, 2, "clock", 1),
		removeMsg(t, 1),
	} {
		if err := r.Dispatch(msg); err != nil {
			t.Fatalf("dispatch: %v", err)
		}
	}
	want := []Global{{Name: 2, Interface: "clock", Version: 1}}
	if got := r.Globals(); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected snapshot: got=%+v want=%+v", got, want)
	}
}

func TestRegistryRemoveUnknownNameIsReportedNotFatal(t *testing.T) {
	testlog.Start(t)
	r := newRegistry(nil)
	if err := r.Dispatch(globalMsg(t, 5, "wl_seat", 7)); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	before := r.Globals()

	err := r.Dispatch(removeMsg(t, 42))
	if !errors.Is(err, ErrConsistencyViolation) {
		t.Fatalf("expected ErrConsistencyViolation, got %v", err)
	}
	var cerr *ConsistencyError
	if !errors.As(err, &cerr) || cerr.Kind != ViolationUnknownName || cerr.Name != 42 {
		t.Fatalf("unexpected consistency error: %#v", err)
	}
	if got := r.Globals(); !reflect.DeepEqual(got, before) {
		t.Fatalf("state changed: got=%+v want=%+v", got, before)
	}
}

func TestRegistryDuplicateNameReplacesInPlace(t *testing.T) {
	testlog.Start(t)
	r := newRegistry(nil)
	_ = r.Dispatch(globalMsg(t, 1, "wl_output", 3))
	_ = r.Dispatch(globalMsg(t, 2, "wl_seat", 7))

	err := r.Dispatch(globalMsg(t, 1, "wl_output", 4))
	var cerr *ConsistencyError
	if !errors.As(err, &cerr) || cerr.Kind != ViolationDuplicateName {
		t.Fatalf("expected duplicate_name violation, got %v", err)
	}
	want := []Global{
		{Name: 1, Interface: "wl_output", Version: 4},
		{Name: 2, Interface: "wl_seat", Version: 7},
	}
	if got := r.Globals(); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected snapshot: got=%+v want=%+v", got, want)
	}
}

func TestRegistryNameReusedAfterRemoval(t *testing.T) {
	testlog.Start(t)
	r := newRegistry(nil)
	_ = r.Dispatch(globalMsg(t, 9, "wl_output", 2))
	_ = r.Dispatch(removeMsg(t, 9))
	if err := r.Dispatch(globalMsg(t, 9, "wl_output", 4)); err != nil {
		t.Fatalf("reuse after removal should be clean: %v", err)
	}
	if got := r.Globals(); len(got) != 1 || got[0].Version != 4 {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
}

func TestRegistryFinalSetMatchesModel(t *testing.T) {
	testlog.Start(t)
	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 50; round++ {
		r := newRegistry(nil)
		live := map[uint32]bool{}
		var next uint32 = 1
		for step := 0; step < 200; step++ {
			if len(live) > 0 && rng.Intn(3) == 0 {
				names := make([]uint32, 0, len(live))
				for n := range live {
					names = append(names, n)
				}
				sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
				victim := names[rng.Intn(len(names))]
				if err := r.Dispatch(removeMsg(t, victim)); err != nil {
					t.Fatalf("round=%d remove %d: %v", round, victim, err)
				}
				delete(live, victim)
				continue
			}
			if err := r.Dispatch(globalMsg(t, next, "iface", 1)); err != nil {
				t.Fatalf("round=%d add %d: %v", round, next, err)
			}
			live[next] = true
			next++
		}
		got := r.Globals()
		if len(got) != len(live) {
			t.Fatalf("round=%d: got %d globals want %d", round, len(got), len(live))
		}
		seen := map[uint32]bool{}
		for _, g := range got {
			if seen[g.Name] {
				t.Fatalf("round=%d: duplicate name %d", round, g.Name)
			}
			seen[g.Name] = true
			if !live[g.Name] {
				t.Fatalf("round=%d: stale name %d", round, g.Name)
			}
		}
	}
}

func TestRegistryUnknownOpcodeIsNoop(t *testing.T) {
	testlog.Start(t)
	r := newRegistry(nil)
	_ = r.Dispatch(globalMsg(t, 1, "wl_shm", 1))
	if err := r.Dispatch(wire.Message{Header: wire.Header{ObjectID: 2, Opcode: 7}, Payload: []byte{1, 2, 3, 4}}); err != nil {
		t.Fatalf("unknown opcode should be ignored: %v", err)
	}
	if got := r.Globals(); len(got) != 1 {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
}

func TestRegistryMalformedGlobal(t *testing.T) {
	testlog.Start(t)
	r := newRegistry(nil)
	err := r.Dispatch(registryMsg(t, schema.RegistryEventGlobal, wire.Uint(1)))
	if !errors.Is(err, ErrMalformedEvent) {
		t.Fatalf("expected ErrMalformedEvent, got %v", err)
	}
	err = r.Dispatch(registryMsg(t, schema.RegistryEventGlobal, wire.Uint(1), wire.NullString(), wire.Uint(1)))
	if !errors.Is(err, ErrMalformedEvent) {
		t.Fatalf("expected ErrMalformedEvent for null interface, got %v", err)
	}
	if got := r.Globals(); len(got) != 0 {
		t.Fatalf("malformed events must not mutate state: %+v", got)
	}
}

func TestParseRegistryEventVariants(t *testing.T) {
	testlog.Start(t)
	ev, err := ParseRegistryEvent(globalMsg(t, 3, "wl_compositor", 6))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ev != (GlobalEvent{Name: 3, Interface: "wl_compositor", Version: 6}) {
		t.Fatalf("unexpected event: %#v", ev)
	}
	ev, err = ParseRegistryEvent(removeMsg(t, 3))
	if err != nil || ev != (GlobalRemoveEvent{Name: 3}) {
		t.Fatalf("unexpected event: %#v err=%v", ev, err)
	}
	ev, err = ParseRegistryEvent(wire.Message{Header: wire.Header{ObjectID: 2, Opcode: 2}})
	if err != nil || ev != (UnknownRegistryEvent{Opcode: 2}) {
		t.Fatalf("unexpected event: %#v err=%v", ev, err)
	}
}

func TestRegistryLookup(t *testing.T) {
	testlog.Start(t)
	r := newRegistry(nil)
	_ = r.Dispatch(globalMsg(t, 1, "wl_output", 2))
	_ = r.Dispatch(globalMsg(t, 2, "wl_output", 4))
	_ = r.Dispatch(globalMsg(t, 3, "wl_seat", 7))

	g, ok := r.Lookup("wl_output", 3)
	if !ok || g.Name != 2 {
		t.Fatalf("unexpected lookup: %+v ok=%v", g, ok)
	}
	g, ok = r.Lookup("wl_output", 1)
	if !ok || g.Name != 1 {
		t.Fatalf("expected first advertised match: %+v ok=%v", g, ok)
	}
	if _, ok := r.Lookup("wl_output", 5); ok {
		t.Fatalf("expected no match above advertised version")
	}
	if _, ok := r.Lookup("xdg_wm_base", 1); ok {
		t.Fatalf("expected no match for missing interface")
	}
}

func TestRegistryGlobalsIsACopy(t *testing.T) {
	testlog.Start(t)
	r := newRegistry(nil)
	_ = r.Dispatch(globalMsg(t, 1, "wl_shm", 1))
	snap := r.Globals()
	snap[0].Interface = "mutated"
	if r.Globals()[0].Interface != "wl_shm" {
		t.Fatalf("snapshot aliases registry state")
	}
}

func TestRegistryObserversSeeAppliedEvents(t *testing.T) {
	testlog.Start(t)
	var seen []RegistryEvent
	r := newRegistry(nil, WithObserver(func(ev RegistryEvent) {
		seen = append(seen, ev)
	}))
	_ = r.Dispatch(globalMsg(t, 1, "wl_shm", 1))
	_ = r.Dispatch(removeMsg(t, 99))
	_ = r.Dispatch(removeMsg(t, 1))
	want := []RegistryEvent{
		GlobalEvent{Name: 1, Interface: "wl_shm", Version: 1},
		GlobalRemoveEvent{Name: 1},
	}
	if !reflect.DeepEqual(seen, want) {
		t.Fatalf("unexpected observed events: %#v", seen)
	}
}

func TestRegistryDestroyedOutsideTeardown(t *testing.T) {
	testlog.Start(t)
	r := newRegistry(nil)
	if err := r.Destroyed(2); !errors.Is(err, ErrUnexpectedDestroy) {
		t.Fatalf("expected ErrUnexpectedDestroy, got %v", err)
	}
}

func TestRegistryBindWithoutConnection(t *testing.T) {
	testlog.Start(t)
	r := newRegistry(nil)
	if _, err := r.Bind(1, "wl_shm", 1); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
