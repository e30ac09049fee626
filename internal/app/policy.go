package app

import "github.com/dkeye/Huddle/internal/core"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	MarkSlow
	KickMember
	DropFrame
)

// Policy decides what to do with a receiver whose send buffer is full.
type Policy interface {
	OnBackPressure(sid core.SessionID) BackpressureAction
}

type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(sid core.SessionID) BackpressureAction {
	return KickMember
}
