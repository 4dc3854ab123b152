package sim

import "testing"

func mustPush(t *testing.T, buffer *CommandBuffer, cmd Command) {
	t.Helper()
	if status, _ := buffer.Push(cmd); status != PushAccepted {
		t.Fatalf("expected push to succeed for %+v, got status %d", cmd, status)
	}
}

func TestCommandBufferDrainOrder(t *testing.T) {
	buffer := NewCommandBuffer(3, 0, nil)
	cmds := []Command{
		{ActorID: "a", Type: CommandPlant},
		{ActorID: "b", Type: CommandPlant},
		{ActorID: "c", Type: CommandSnapshotRequest},
	}
	for _, cmd := range cmds {
		mustPush(t, buffer, cmd)
	}
	if status, _ := buffer.Push(Command{ActorID: "overflow"}); status != PushQueueFull {
		t.Fatalf("expected queue-full status, got %d", status)
	}
	drained := buffer.Drain()
	if len(drained) != len(cmds) {
		t.Fatalf("expected %d commands, got %d", len(cmds), len(drained))
	}
	for i, cmd := range drained {
		if cmd.ActorID != cmds[i].ActorID {
			t.Fatalf("expected drain order %v, got %v", cmds[i].ActorID, cmd.ActorID)
		}
	}
	// The ring must accept a fresh batch after a drain.
	for _, cmd := range []Command{{ActorID: "d"}, {ActorID: "e"}} {
		mustPush(t, buffer, cmd)
	}
	next := buffer.Drain()
	if len(next) != 2 || next[0].ActorID != "d" || next[1].ActorID != "e" {
		t.Fatalf("unexpected second batch: %+v", next)
	}
}

func TestCommandBufferQueueFull(t *testing.T) {
	buffer := NewCommandBuffer(1, 0, nil)
	mustPush(t, buffer, Command{ActorID: "one"})
	status, drops := buffer.Push(Command{ActorID: "two"})
	if status != PushQueueFull {
		t.Fatalf("expected queue-full status, got %d", status)
	}
	if drops != 1 {
		t.Fatalf("expected first drop for actor, got %d", drops)
	}
	drained := buffer.Drain()
	if len(drained) != 1 || drained[0].ActorID != "one" {
		t.Fatalf("unexpected drained commands: %+v", drained)
	}
}

func TestCommandBufferPerActorAllowance(t *testing.T) {
	buffer := NewCommandBuffer(8, 2, nil)
	mustPush(t, buffer, Command{ActorID: "greedy", Type: CommandPlant})
	mustPush(t, buffer, Command{ActorID: "greedy", Type: CommandPlant})

	status, drops := buffer.Push(Command{ActorID: "greedy", Type: CommandPlant})
	if status != PushActorSaturated {
		t.Fatalf("expected actor-saturated status, got %d", status)
	}
	if drops != 1 {
		t.Fatalf("expected drop count 1, got %d", drops)
	}

	// Other actors are unaffected by the saturated one.
	mustPush(t, buffer, Command{ActorID: "patient", Type: CommandPlant})

	if drained := buffer.Drain(); len(drained) != 3 {
		t.Fatalf("expected 3 staged commands, got %d", len(drained))
	}

	// A drain restores the allowance but keeps the cumulative drop count.
	mustPush(t, buffer, Command{ActorID: "greedy", Type: CommandPlant})
	mustPush(t, buffer, Command{ActorID: "greedy", Type: CommandPlant})
	if status, drops := buffer.Push(Command{ActorID: "greedy", Type: CommandPlant}); status != PushActorSaturated || drops != 2 {
		t.Fatalf("expected second saturation with drop count 2, got status %d drops %d", status, drops)
	}
}

func TestCommandBufferDrainEmpty(t *testing.T) {
	buffer := NewCommandBuffer(4, 0, nil)
	if drained := buffer.Drain(); len(drained) != 0 {
		t.Fatalf("expected empty drain, got %d", len(drained))
	}
}
