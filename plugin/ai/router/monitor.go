package router

import (
	"sync/atomic"

	"github.com/hrygo/synapse/store"
)

// StaticMonitor is a NetworkMonitor whose state is set explicitly.
type StaticMonitor struct {
	state atomic.Int32
}

var _ store.NetworkMonitor = (*StaticMonitor)(nil)

// NewStaticMonitor creates a monitor reporting state.
func NewStaticMonitor(state store.NetworkState) *StaticMonitor {
	m := &StaticMonitor{}
	m.Set(state)
	return m
}

// Set changes the reported state.
func (m *StaticMonitor) Set(state store.NetworkState) {
	m.state.Store(int32(state))
}

func (m *StaticMonitor) CurrentState() store.NetworkState {
	return store.NetworkState(m.state.Load())
}
