/*
Package wizard runs guided onboarding tours as a pair of hierarchical state machines.

A tutorial machine tracks where the user is in the tour (idle, choosing features,
touring, paused, dismissed, complete). When the user picks the features they want to
learn, each one is walked through its own feature machine, one after the other. Every
state change is persisted so a reload resumes exactly where the user left off.

# Concept

Machine tables are data: states, guarded transitions and actions (render a component
into a slot, navigate to a route, pause, resume). The library interprets the tables,
executes the actions against a Storage and a Router supplied by the host, and exposes a
Snapshot of everything a UI needs to draw the tour panel. Navigation requested by a
batch of actions is deferred until the batch is applied, and only the last one runs.

# Key Features

  - Hierarchical tables with relative and absolute ("#") targets and guards on the
    event's component state.
  - Versioned persistence envelopes with lenient reads.
  - Pause and resume across page loads, dismiss, restart.
  - Storage adapters for memory, files, Redis and MySQL, plus encryption and
    redaction middlewares.
  - A session manager with distributed locking, an HTTP API and Prometheus metrics.

# Usage

	ctx := context.Background()
	g, err := wizard.New(ctx)
	if err != nil {
		log.Fatal(err)
	}

	g.Send(ctx, domain.NewEvent(domain.EventAuth), nil)
	snap, _ := g.Send(ctx, domain.Event{Name: domain.EventContinue, Features: []string{"secrets"}}, nil)
	fmt.Println(snap.CurrentFeature, snap.FeatureState)

For many concurrent tours use pkg/session, and cmd/wizard for the terminal and HTTP hosts.
*/
package wizard
