// Package wiring turns a validated config.Document into a running
// driver.Driver: it opens the connections a document names, compiles
// its classifier/keyer/rule set, and assembles the Processor and
// Driver loop around them. This is the one place allowed to depend on
// every concrete transport and the config package at once — the
// driver package's own Processor and RuleSet compile without any
// transport library, per spec.md §9's "Processor must compile without
// any transport library."
package wiring

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/randalmurphal/combiner/internal/classify"
	"github.com/randalmurphal/combiner/internal/config"
	"github.com/randalmurphal/combiner/internal/driver"
	"github.com/randalmurphal/combiner/internal/expiry"
	"github.com/randalmurphal/combiner/internal/observability"
	"github.com/randalmurphal/combiner/internal/predicate"
	"github.com/randalmurphal/combiner/internal/registry"
	"github.com/randalmurphal/combiner/internal/store"
	"github.com/randalmurphal/combiner/internal/template"
	"github.com/randalmurphal/combiner/internal/transport"
)

// System is a fully wired, running correlation engine: a Driver plus
// every resource Close must release in reverse order of acquisition.
type System struct {
	Driver *driver.Driver

	closers []func() error
}

// Close releases every opened connection, store, and queue, in
// reverse order of acquisition, returning the first error
// encountered (if any) after attempting every close.
func (s *System) Close() error {
	var first error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Options configures the Build step.
type Options struct {
	Logger       *slog.Logger
	Metrics      observability.Recorder
	Spans        observability.SpanManager
	StorePath    string // sqlite file path; empty uses an in-memory store
	ExpiryFile   string // defaults to "./combiner-expiry.cbor"
	MergeBuffer  int    // Merger channel buffer; defaults to 64
}

// Build constructs a System from a validated Document. Connections
// named by an event's "from" are opened as Receivers; connections
// named by a trigger action's "target" are opened as Submitters; a
// connection referenced by both is opened once and serves both roles
// (the rabbitmq and file adapters support this; stdout has no
// receiver side and must never be used as an event source).
func Build(doc *config.Document, opts Options) (*System, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = observability.NoopMetrics{}
	}
	if opts.Spans == nil {
		opts.Spans = observability.NoopSpanManager{}
	}
	if opts.ExpiryFile == "" {
		opts.ExpiryFile = "./combiner-expiry.cbor"
	}
	if opts.MergeBuffer <= 0 {
		opts.MergeBuffer = 64
	}

	sys := &System{}

	st, err := openStore(opts.StorePath)
	if err != nil {
		return nil, err
	}
	sys.closers = append(sys.closers, st.Close)

	expiryQ, err := expiry.Open(opts.ExpiryFile)
	if err != nil {
		sys.Close()
		return nil, fmt.Errorf("wiring: open expiry queue: %w", err)
	}
	sys.closers = append(sys.closers, expiryQ.Close)

	classifier, keyer := buildClassifierAndKeyer(doc)

	engine := predicate.NewGojaEngine()
	rules, err := buildRules(doc, engine)
	if err != nil {
		sys.Close()
		return nil, err
	}

	receivers, submitters, connClosers, err := openConnections(doc, classifier.Sources())
	if err != nil {
		sys.Close()
		return nil, err
	}
	sys.closers = append(sys.closers, connClosers...)

	submitterRegistry := registry.New[string, transport.Submitter]()
	for name, sub := range submitters {
		submitterRegistry.Register(name, sub)
	}

	processor := driver.NewProcessor(classifier, keyer, st, rules, engine,
		driver.WithLogger(opts.Logger), driver.WithMetrics(opts.Metrics), driver.WithSpans(opts.Spans))

	ctx := context.Background()
	merger := transport.NewMerger(ctx, receiverList(receivers), opts.MergeBuffer, opts.Logger)
	sys.closers = append(sys.closers, func() error { merger.Close(); return nil })

	deadLetter := transport.NewDeadLetter(opts.Logger)

	sys.Driver = driver.New(processor, merger, expiryQ, submitterRegistry, deadLetter,
		driver.WithDriverLogger(opts.Logger), driver.WithDriverMetrics(opts.Metrics))

	return sys, nil
}

func openStore(path string) (store.Store, error) {
	if path == "" {
		return store.NewMemoryStore(), nil
	}
	st, err := store.NewSQLiteStore(path)
	if err != nil {
		return nil, fmt.Errorf("wiring: open event store: %w", err)
	}
	return st, nil
}

func buildClassifierAndKeyer(doc *config.Document) (*classify.Classifier, *classify.Keyer) {
	var defs []classify.TypeDefinition
	for eventType, def := range doc.Events {
		defs = append(defs, classify.TypeDefinition{
			SourceName: def.From,
			Pattern:    convertPattern(def.Pattern),
			EventType:  eventType,
		})
	}

	paths := make(map[string]string, len(doc.Correlation))
	for eventType, entry := range doc.Correlation {
		paths[eventType] = entry.Key
	}

	return classify.New(defs), classify.NewKeyer(paths)
}

func convertPattern(p config.Pattern) classify.Pattern {
	if p.All {
		return classify.All()
	}
	rules := make([]classify.FieldMatch, 0, len(p.Rules))
	for path, matcher := range p.Rules {
		var m classify.Matcher
		if matcher.IsRegex {
			compiled, err := classify.CompileRegex(matcher.Regex)
			if err != nil {
				// Validate already rejects an invalid regex before Build
				// is ever called; a failure here means Validate was
				// skipped.
				continue
			}
			m = compiled
		} else {
			m = classify.Exact(matcher.Exact)
		}
		rules = append(rules, classify.FieldMatch{Path: path, Matcher: m})
	}
	return classify.MatchRules(rules...)
}

func buildRules(doc *config.Document, engine predicate.Engine) ([]driver.Rule, error) {
	var rules []driver.Rule
	for name, spec := range doc.Triggers {
		tmpl, err := template.Compile(spec.Action.Payload)
		if err != nil {
			return nil, fmt.Errorf("wiring: trigger %q: compile action template: %w", name, err)
		}

		rule := driver.Rule{
			Name:        name,
			Requirement: convertRequirement(spec.Requires),
			Action:      driver.ActionSpec{Target: spec.Action.Target, Template: tmpl},
		}

		if spec.FilterAndExtract != "" {
			handle, err := engine.Store(spec.FilterAndExtract)
			if err != nil {
				return nil, fmt.Errorf("wiring: trigger %q: compile predicate: %w", name, err)
			}
			rule.PredicateHandle = handle
			rule.HasPredicate = true
		}

		if spec.Timing != nil {
			timing, err := convertTiming(*spec.Timing)
			if err != nil {
				return nil, fmt.Errorf("wiring: trigger %q: timing: %w", name, err)
			}
			rule.Timing = &timing
		}

		rules = append(rules, rule)
	}
	return rules, nil
}

func convertRequirement(r config.RequirementSpec) driver.Requirement {
	switch {
	case len(r.Exact) > 0:
		return driver.Exactly(r.Exact)
	case len(r.AtLeast) > 0:
		return driver.AtLeast(r.AtLeast)
	default:
		return driver.NoRequirement()
	}
}

func convertTiming(t config.TimingSpec) (driver.TimingConfig, error) {
	from, err := durationOrZero(t.From)
	if err != nil {
		return driver.TimingConfig{}, err
	}
	checkEvery, hasCheckEvery, err := optionalDuration(t.CheckEvery)
	if err != nil {
		return driver.TimingConfig{}, err
	}
	until, hasUntil, err := optionalDuration(t.Until)
	if err != nil {
		return driver.TimingConfig{}, err
	}
	return driver.NewTimingConfig(from, checkEvery, until, hasCheckEvery, hasUntil), nil
}

func durationOrZero(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return config.ParseDuration(s)
}

func optionalDuration(s string) (time.Duration, bool, error) {
	if s == "" {
		return 0, false, nil
	}
	d, err := config.ParseDuration(s)
	return d, true, err
}

func receiverList(receivers map[string]transport.Receiver) []transport.Receiver {
	out := make([]transport.Receiver, 0, len(receivers))
	for _, r := range receivers {
		out = append(out, r)
	}
	return out
}

// openConnections opens exactly one connection object per named
// config.Connection, regardless of whether it is needed as a Receiver,
// a Submitter, or both (the file and rabbitmq adapters implement
// both), so each connection is closed exactly once.
func openConnections(doc *config.Document, sources []string) (map[string]transport.Receiver, map[string]transport.Submitter, []func() error, error) {
	needReceiver := make(map[string]bool, len(sources))
	for _, s := range sources {
		needReceiver[s] = true
	}
	needSubmitter := make(map[string]bool)
	for _, trig := range doc.Triggers {
		needSubmitter[trig.Action.Target] = true
	}

	receivers := make(map[string]transport.Receiver)
	submitters := make(map[string]transport.Submitter)
	var closers []func() error

	for name, conn := range doc.Connections {
		wantReceiver := needReceiver[name]
		wantSubmitter := needSubmitter[name]
		if !wantReceiver && !wantSubmitter {
			continue
		}

		switch conn.Type {
		case "stdout":
			if wantReceiver {
				return nil, nil, nil, fmt.Errorf("wiring: connection %q: stdout cannot be an event source", name)
			}
			sub := transport.NewStdoutSubmitter(name, os.Stdout)
			submitters[name] = sub
			closers = append(closers, sub.Close)

		case "file":
			path := conn.Settings.String("path", "")
			if path == "" {
				return nil, nil, nil, fmt.Errorf("wiring: connection %q: file requires a \"path\" setting", name)
			}
			fq, err := transport.OpenFileQueue(name, path)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("wiring: connection %q: %w", name, err)
			}
			if wantReceiver {
				receivers[name] = fq
			}
			if wantSubmitter {
				submitters[name] = fq
			}
			closers = append(closers, fq.Close)

		case "rabbitmq":
			cfg := transport.RabbitMQConfig{
				Host:     conn.Settings.String("host", "localhost"),
				Port:     conn.Settings.Int("port", 5672),
				Username: conn.Settings.String("username", ""),
				Password: conn.Settings.String("password", ""),
				VHost:    conn.Settings.String("vhost", ""),
				Queue:    conn.Settings.String("queue", ""),
			}
			rc, err := transport.DialRabbitMQ(name, cfg)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("wiring: connection %q: %w", name, err)
			}
			if wantReceiver {
				receivers[name] = rc
			}
			if wantSubmitter {
				submitters[name] = rc
			}
			closers = append(closers, rc.Close)

		default:
			return nil, nil, nil, fmt.Errorf("wiring: connection %q: unknown type %q", name, conn.Type)
		}
	}

	return receivers, submitters, closers, nil
}
