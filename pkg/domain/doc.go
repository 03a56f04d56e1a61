/*
Package domain contains the core types shared by the tour machines and the controller
that drives them.

It is kept pure: no I/O, no persistence, no rendering. Adapters and the runtime exchange
these values, and the persisted form of each of them is plain JSON.

# Key Entities

  - StateValue: where a machine currently is ("idle", "active.select").
  - Event: a named input sent to a machine, optionally carrying a feature list.
  - Action: a side-effecting instruction emitted by a transition (render, routeTransition...).
  - LifecycleHooks: callbacks for observing transitions and executed actions.
*/
package domain
