/*
Package session hosts many tours side by side.

Each session owns a runtime.Controller whose keys live under their own namespace of
a shared storage backend. Calls for one session are serialised with a reference-counted
in-process lock and, when configured, a distributed lock so replicas sharing the
backend do not interleave batches. Deferred navigation is drained after every call.
*/
package session
