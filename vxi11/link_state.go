package vxi11

import "sync/atomic"

// LinkState is the lifecycle state of a client's device link.
type LinkState uint32

const (
	UnopenedState LinkState = iota
	LinkedState
	ClosedState
)

func (s LinkState) String() string {
	switch s {
	case UnopenedState:
		return "Unopened"
	case LinkedState:
		return "Linked"
	case ClosedState:
		return "Closed"
	default:
		return "Unknown"
	}
}

type atomicLinkState struct {
	state atomic.Uint32
}

func (st *atomicLinkState) Get() LinkState {
	return LinkState(st.state.Load())
}

func (st *atomicLinkState) IsLinked() bool {
	return st.Get() == LinkedState
}

// ToLinked moves Unopened to Linked.
func (st *atomicLinkState) ToLinked() bool {
	return st.state.CompareAndSwap(uint32(UnopenedState), uint32(LinkedState))
}

// ToClosed moves any state to Closed and reports whether this call did the transition.
func (st *atomicLinkState) ToClosed() bool {
	for {
		cur := st.state.Load()
		if LinkState(cur) == ClosedState {
			return false
		}
		if st.state.CompareAndSwap(cur, uint32(ClosedState)) {
			return true
		}
	}
}
