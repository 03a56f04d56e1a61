package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/wizard/internal/presentation/graph"
	"github.com/aretw0/wizard/internal/presentation/tui"
	"github.com/aretw0/wizard/internal/runtime"
	"github.com/aretw0/wizard/pkg/adapters/router"
	"github.com/aretw0/wizard/pkg/domain"
	"github.com/aretw0/wizard/pkg/machines"
)

// RunOptions configures an interactive tour.
type RunOptions struct {
	SessionID string
	// Fresh discards whatever the session has persisted before starting.
	Fresh bool
	// Style is a glamour style name. Empty detects the terminal.
	Style string
	// JSON prints snapshots as JSON instead of rendered markdown.
	JSON bool
	In   io.Reader
	Out  io.Writer
}

const helpText = `Commands:
  t, tutorial EVENT [json]   send EVENT to the tutorial machine
  f, feature EVENT [json]    send EVENT to the feature machine
  select a,b,...             send CONTINUE with the chosen features
  features a,b,...           replace the feature list
  complete                   finish the current feature
  restart                    run the tour again
  state                      print the snapshot as JSON
  graph [feature]            print the machine as a Mermaid flowchart
  help                       show this help
  quit                       leave (the session is kept)`

type commandKind int

const (
	cmdTutorial commandKind = iota
	cmdFeature
	cmdSelect
	cmdFeatures
	cmdComplete
	cmdRestart
	cmdState
	cmdGraph
	cmdHelp
	cmdQuit
)

type command struct {
	kind     commandKind
	event    domain.Event
	ext      any
	features []string
	feature  bool
}

// parseCommand reads one REPL line. Event names are upper-cased.
func parseCommand(line string) (command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return command{}, errors.New("empty command")
	}
	rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), fields[0]))

	switch strings.ToLower(fields[0]) {
	case "t", "tutorial", "f", "feature":
		kind := cmdTutorial
		if strings.HasPrefix(strings.ToLower(fields[0]), "f") {
			kind = cmdFeature
		}
		if len(fields) < 2 {
			return command{}, fmt.Errorf("%s needs an event name", fields[0])
		}
		cmd := command{kind: kind, event: domain.NewEvent(domain.EventName(strings.ToUpper(fields[1])))}
		if raw := strings.TrimSpace(strings.TrimPrefix(rest, fields[1])); raw != "" {
			if err := json.Unmarshal([]byte(raw), &cmd.ext); err != nil {
				return command{}, fmt.Errorf("invalid component state: %w", err)
			}
		}
		return cmd, nil
	case "select", "features":
		if rest == "" {
			return command{}, fmt.Errorf("%s needs a comma separated list", fields[0])
		}
		var names []string
		for _, n := range strings.Split(rest, ",") {
			if n = strings.TrimSpace(n); n != "" {
				names = append(names, n)
			}
		}
		if strings.EqualFold(fields[0], "select") {
			return command{kind: cmdSelect, event: domain.Event{Name: domain.EventContinue, Features: names}}, nil
		}
		return command{kind: cmdFeatures, features: names}, nil
	case "complete":
		return command{kind: cmdComplete}, nil
	case "restart":
		return command{kind: cmdRestart}, nil
	case "state":
		return command{kind: cmdState}, nil
	case "graph":
		return command{kind: cmdGraph, feature: strings.EqualFold(rest, "feature")}, nil
	case "help", "?":
		return command{kind: cmdHelp}, nil
	case "quit", "exit", "q":
		return command{kind: cmdQuit}, nil
	}
	return command{}, fmt.Errorf("unknown command %q (try help)", fields[0])
}

type navigationHistory interface {
	History() []router.Navigation
}

type repl struct {
	env    *Environment
	opts   RunOptions
	render func(string) (string, error)
	seen   int
}

// Run hosts one session and drives it from opts.In until quit, EOF or ctx is done.
func Run(ctx context.Context, env *Environment, opts RunOptions) error {
	if opts.SessionID == "" {
		return errors.New("session id is required")
	}
	if opts.Fresh {
		if err := env.Sessions.Delete(ctx, opts.SessionID); err != nil {
			return fmt.Errorf("reset session: %w", err)
		}
	}

	r := &repl{env: env, opts: opts}
	if !opts.JSON {
		render, err := tui.NewRenderer(opts.Style)
		if err != nil {
			return err
		}
		r.render = render
	}

	snap, err := env.Sessions.Open(ctx, opts.SessionID)
	if err != nil {
		return err
	}
	printSystemMessage(opts.Out, "Session '%s' at %s.", opts.SessionID, tui.StateLabel(snap.CurrentState.String()))
	r.show(snap)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(opts.In)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		fmt.Fprint(opts.Out, "> ")
		var line string
		select {
		case <-ctx.Done():
			return nil
		case l, ok := <-lines:
			if !ok {
				return nil
			}
			line = l
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		cmd, err := parseCommand(line)
		if err != nil {
			printSystemMessage(opts.Out, "%v", err)
			continue
		}
		if cmd.kind == cmdQuit {
			return nil
		}
		if err := r.dispatch(ctx, cmd); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			printSystemMessage(opts.Out, "error: %v", err)
		}
	}
}

func (r *repl) dispatch(ctx context.Context, cmd command) error {
	id := r.opts.SessionID
	sessions := r.env.Sessions
	var (
		snap runtime.Snapshot
		err  error
	)
	switch cmd.kind {
	case cmdHelp:
		fmt.Fprintln(r.opts.Out, helpText)
		return nil
	case cmdState:
		snap, err = sessions.Snapshot(ctx, id)
		if err != nil {
			return err
		}
		return r.printJSON(snap)
	case cmdGraph:
		return r.printGraph(ctx, cmd.feature)
	case cmdTutorial, cmdSelect:
		snap, err = sessions.SendTutorial(ctx, id, cmd.event, cmd.ext)
	case cmdFeature:
		snap, err = sessions.SendFeature(ctx, id, cmd.event, cmd.ext)
	case cmdFeatures:
		snap, err = sessions.SaveFeatures(ctx, id, cmd.features)
	case cmdComplete:
		snap, err = sessions.CompleteFeature(ctx, id)
	case cmdRestart:
		snap, err = sessions.Restart(ctx, id)
	}
	r.show(snap)
	return err
}

// show prints new navigations and the tour panel.
func (r *repl) show(snap runtime.Snapshot) {
	if rt, ok := r.env.Sessions.Router(r.opts.SessionID); ok {
		if h, ok := rt.(navigationHistory); ok {
			navs := h.History()
			if r.seen > len(navs) {
				r.seen = 0
			}
			for _, n := range navs[r.seen:] {
				printSystemMessage(r.opts.Out, "navigate %s", n.URL)
			}
			r.seen = len(navs)
		}
	}

	if r.opts.JSON {
		_ = r.printJSON(snap)
		return
	}
	md := tui.SlotMarkdown(snap, r.env.Machines)
	if strings.TrimSpace(md) == "" {
		return
	}
	out, err := r.render(md)
	if err != nil {
		fmt.Fprintln(r.opts.Out, md)
		return
	}
	fmt.Fprint(r.opts.Out, out)
}

func (r *repl) printJSON(snap runtime.Snapshot) error {
	enc := json.NewEncoder(r.opts.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}

func (r *repl) printGraph(ctx context.Context, feature bool) error {
	snap, err := r.env.Sessions.Snapshot(ctx, r.opts.SessionID)
	if err != nil {
		return err
	}
	key := machines.TutorialKey
	overlay := &graph.GraphOverlay{CurrentState: snap.CurrentState.String()}
	if feature {
		if snap.CurrentFeature == "" {
			return domain.ErrNoFeatureMachine
		}
		key = snap.CurrentFeature
		overlay = &graph.GraphOverlay{
			VisitedStates: snap.FeatureStateHistory,
			CurrentState:  snap.FeatureState.String(),
		}
	}
	def, ok := r.env.Machines.Table(key)
	if !ok {
		return fmt.Errorf("unknown machine %q", key)
	}
	fmt.Fprintln(r.opts.Out, graph.GenerateMermaid(def, overlay))
	return nil
}
