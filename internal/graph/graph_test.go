package graph

import (
	"errors"
	"reflect"
	"testing"
)

func diamond() []Node {
	return []Node{
		{ID: "a"},
		{ID: "b", DependsOn: []string{"a"}},
		{ID: "c", DependsOn: []string{"a"}},
		{ID: "d", After: []string{"b", "c"}},
	}
}

func TestNew(t *testing.T) {
	g := New()
	if g == nil {
		t.Fatal("expected non-nil graph")
	}
	if got := g.Pending(); len(got) != 0 {
		t.Errorf("Pending() = %v, want none", got)
	}
	if !g.Done() {
		t.Error("empty graph should be done")
	}
}

func TestBuild_InsertionOrder(t *testing.T) {
	g := New()
	nodes := []Node{
		{ID: "report", DependsOn: []string{"decide"}},
		{ID: "decide", After: []string{"fetch", "check"}},
		{ID: "check", DependsOn: []string{"fetch"}},
		{ID: "fetch"},
	}
	if err := g.Build(nodes); err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	want := []string{"report", "decide", "check", "fetch"}
	if got := g.Pending(); !reflect.DeepEqual(got, want) {
		t.Errorf("Pending() = %v, want %v", got, want)
	}
	if got := g.GetReady(); !reflect.DeepEqual(got, []string{"fetch"}) {
		t.Errorf("GetReady() = %v, want [fetch]", got)
	}
}

func TestBuild_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		nodes []Node
		cycle bool
	}{
		{"unknown dependency", []Node{{ID: "a", DependsOn: []string{"ghost"}}}, false},
		{"unknown soft dependency", []Node{{ID: "a", After: []string{"ghost"}}}, false},
		{"duplicate node", []Node{{ID: "a"}, {ID: "a"}}, false},
		{"self cycle", []Node{{ID: "a", DependsOn: []string{"a"}}}, true},
		{"two node cycle", []Node{
			{ID: "a", DependsOn: []string{"b"}},
			{ID: "b", After: []string{"a"}},
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New().Build(tt.nodes)
			if err == nil {
				t.Fatal("Build() error = nil, want error")
			}
			if got := errors.Is(err, ErrCycleDetected); got != tt.cycle {
				t.Errorf("errors.Is(err, ErrCycleDetected) = %v, want %v (err: %v)", got, tt.cycle, err)
			}
		})
	}
}

func TestGetReady_Waves(t *testing.T) {
	g := New()
	if err := g.Build(diamond()); err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if got := g.GetReady(); !reflect.DeepEqual(got, []string{"a"}) {
		t.Fatalf("wave 1 = %v, want [a]", got)
	}
	g.MarkComplete("a")

	if got := g.GetReady(); !reflect.DeepEqual(got, []string{"b", "c"}) {
		t.Fatalf("wave 2 = %v, want [b c]", got)
	}
	g.MarkComplete("b")

	// d waits for c to finish.
	if got := g.GetReady(); !reflect.DeepEqual(got, []string{"c"}) {
		t.Fatalf("after b = %v, want [c]", got)
	}
	g.MarkComplete("c")

	if got := g.GetReady(); !reflect.DeepEqual(got, []string{"d"}) {
		t.Fatalf("wave 3 = %v, want [d]", got)
	}
	g.MarkComplete("d")

	if !g.Done() {
		t.Error("Done() = false after all nodes completed")
	}
	if got := g.Pending(); len(got) != 0 {
		t.Errorf("Pending() = %v, want none", got)
	}
}

func TestFailure_BlocksHardDependents(t *testing.T) {
	g := New()
	if err := g.Build(diamond()); err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	g.MarkFailed("a")

	if got := g.GetReady(); len(got) != 0 {
		t.Errorf("GetReady() = %v, want none", got)
	}
	blocked := g.Blocked()
	want := map[string]string{"b": "a", "c": "a"}
	if !reflect.DeepEqual(blocked, want) {
		t.Fatalf("Blocked() = %v, want %v", blocked, want)
	}

	g.MarkFailed("b")
	g.MarkFailed("c")

	// Soft dependencies only need to finish.
	if got := g.GetReady(); !reflect.DeepEqual(got, []string{"d"}) {
		t.Errorf("GetReady() after failures = %v, want [d]", got)
	}
	if got := g.Pending(); !reflect.DeepEqual(got, []string{"d"}) {
		t.Errorf("Pending() = %v, want [d]", got)
	}
}

func TestMark_UnknownNodeIgnored(t *testing.T) {
	g := New()
	if err := g.Build([]Node{{ID: "a"}}); err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	var logged int
	g.SetDebugLog(func(string, ...interface{}) { logged++ })

	g.MarkComplete("ghost")

	if got := g.Pending(); !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("Pending() = %v, want [a]", got)
	}
	if logged == 0 {
		t.Error("expected debug log for unknown node")
	}
}
