// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/gqlpilot/internal/session"
)

// snapshotPump coalesces session notifications. Only the newest snapshot
// waits in the slot, so a burst of deltas costs one render.
type snapshotPump struct {
	slot chan session.Snapshot
}

func newSnapshotPump() *snapshotPump {
	return &snapshotPump{slot: make(chan session.Snapshot, 1)}
}

// push replaces any waiting snapshot with snap. It never blocks.
func (p *snapshotPump) push(snap session.Snapshot) {
	for {
		select {
		case p.slot <- snap:
			return
		default:
		}
		select {
		case old := <-p.slot:
			if old.Version > snap.Version {
				snap = old
			}
		default:
		}
	}
}

// next waits for the next snapshot.
func (p *snapshotPump) next() tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg{snap: <-p.slot}
	}
}

// signal is a one-slot wakeup for ghost text changes.
type signal chan struct{}

func (s signal) notify() {
	select {
	case s <- struct{}{}:
	default:
	}
}

func (s signal) wait() tea.Cmd {
	return func() tea.Msg {
		<-s
		return ghostMsg{}
	}
}
