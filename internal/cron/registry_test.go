package cron

import (
	"context"
	"testing"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryKeepsOrder(t *testing.T) {
	jobA := &stubJob{name: "a"}
	jobB := &stubJob{name: "b"}
	registry, err := NewRegistry(jobA, nil, jobB)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	jobs := registry.Jobs()
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0] != jobA || jobs[1] != jobB {
		t.Fatalf("jobs returned out of order")
	}
	jobs[0] = nil
	if registry.Jobs()[0] == nil {
		t.Fatalf("internal slice leaked")
	}
}

func TestRegistryRejectsDuplicateNames(t *testing.T) {
	if _, err := NewRegistry(&stubJob{name: "retention"}, &stubJob{name: "retention"}); err == nil {
		t.Fatal("expected duplicate name error")
	}
	var registry Registry
	if err := registry.Register(&stubJob{}); err == nil {
		t.Fatal("expected empty name error")
	}
}

func TestRegistrySelect(t *testing.T) {
	registry, err := NewRegistry(&stubJob{name: "a"}, &stubJob{name: "b"}, &stubJob{name: "c"})
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}

	all, err := registry.Select()
	if err != nil || len(all.Jobs()) != 3 {
		t.Fatalf("expected full registry, got %v %v", all, err)
	}

	selected, err := registry.Select("c", "a")
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	jobs := selected.Jobs()
	if len(jobs) != 2 || jobs[0].Name() != "a" || jobs[1].Name() != "c" {
		t.Fatalf("unexpected selection %v", jobs)
	}

	if _, err := registry.Select("missing"); err == nil {
		t.Fatal("expected unknown job error")
	}
}
