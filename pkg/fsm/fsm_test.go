package fsm_test

import (
	"testing"

	"github.com/cassiomorais/marketsettle/pkg/fsm"
)

type phase string

const (
	created  phase = "created"
	running  phase = "running"
	done     phase = "done"
	failed   phase = "failed"
)

var table = fsm.Table[phase]{
	created: {running},
	running: {done, failed},
	done:    {},
	failed:  {},
}

func TestCanTransition(t *testing.T) {
	if !table.CanTransition(created, running) {
		t.Error("expected created -> running to be allowed")
	}
	if table.CanTransition(created, done) {
		t.Error("expected created -> done to be rejected")
	}
	if table.CanTransition(done, running) {
		t.Error("expected transitions out of a terminal state to be rejected")
	}
}

func TestIsTerminal(t *testing.T) {
	if table.IsTerminal(running) {
		t.Error("running should not be terminal")
	}
	if !table.IsTerminal(done) || !table.IsTerminal(failed) {
		t.Error("done and failed should be terminal")
	}
	// Unknown states have no outgoing transitions.
	if !table.IsTerminal(phase("unknown")) {
		t.Error("unknown state should be terminal")
	}
}

func TestTransitionError(t *testing.T) {
	if err := table.Transition(created, running); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := table.Transition(done, running)
	if err == nil {
		t.Fatal("expected error")
	}
	if got := err.Error(); got != "cannot transition from done to running" {
		t.Errorf("unexpected message: %q", got)
	}
}
