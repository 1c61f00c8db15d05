// Package propsync mirrors property state to an external peer, such as a
// browser page, and applies the peer's edits back.
//
// Each synchronized property runs a small state machine:
//
//	Idle ──local change──▶ PushingOut ──push returned──▶ AwaitingEcho
//	  ▲                        │                              │
//	  └──────echo received─────┴──────────echo received───────┘
//
// A value arriving from the peer while a property is PushingOut or
// AwaitingEcho is the echo of our own push: it is consumed and never
// applied. A value arriving while Idle is applied to the property, which
// pushes it back out once and settles when that echo returns. One local
// change therefore costs exactly one round trip however eagerly the peer
// echoes.
//
// The peer speaks JSON commands:
//
//	{"command":"subscribe","path":"proc.prop","id":"widget-1"}
//	{"command":"unsubscribe","path":"proc.prop","id":"widget-1"}
//	{"command":"property.set","path":"proc.prop","value":1.5}
//	{"command":"property.get","path":"proc.prop"}
//
// Outbound updates are {"command":"property.update","path":...,"id":...,"value":...}.
// Subscriptions are dropped in OnWillRemoveProperty, before the property
// is detached from its owner.
package propsync
