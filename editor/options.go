package editor

import (
	"log/slog"
	"strings"
	"time"

	history "github.com/goliatone/go-history"
	"github.com/goliatone/go-history/layer"
	"github.com/goliatone/go-history/pkg/activity"
	"github.com/goliatone/go-history/pkg/state"
	"github.com/goliatone/go-history/rules"
)

// Option configures a Session.
type Option func(*options)

type options struct {
	documentID  string
	actorID     string
	tenantID    string
	maxHistory  int
	rules       *rules.RuleSet
	classifier  history.Classifier[layer.Document]
	logger      *slog.Logger
	hooks       activity.Hooks
	persist     state.Store[layer.Document]
	autosave    bool
	saveTimeout time.Duration
	manual      bool
	now         func() time.Time
	storeOpts   []layer.StoreOption
	historyOpts []history.Option[layer.Document]
	closers     []func() error
}

func defaultOptions() options {
	return options{
		maxHistory: history.DefaultMaxHistory,
		logger:     slog.Default(),
		now:        time.Now,
	}
}

// WithDocumentID names the document for persistence and activity events.
func WithDocumentID(id string) Option {
	return func(o *options) { o.documentID = strings.TrimSpace(id) }
}

// WithActor tags activity events with the editing user.
func WithActor(actorID string) Option {
	return func(o *options) { o.actorID = strings.TrimSpace(actorID) }
}

// WithTenant tags activity events with the owning workspace.
func WithTenant(tenantID string) Option {
	return func(o *options) { o.tenantID = strings.TrimSpace(tenantID) }
}

// WithMaxHistory bounds the history length.
func WithMaxHistory(n int) Option {
	return func(o *options) { o.maxHistory = n }
}

// WithRules adds expression rules ahead of the built-in classification.
func WithRules(set *rules.RuleSet) Option {
	return func(o *options) { o.rules = set }
}

// WithClassifier replaces the layer classifier entirely. WithRules is ignored
// when a classifier is set.
func WithClassifier(classifier history.Classifier[layer.Document]) Option {
	return func(o *options) { o.classifier = classifier }
}

// WithLogger routes history transitions, rule failures and save outcomes.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithActivityHooks receives history and save events.
func WithActivityHooks(hooks ...activity.ActivityHook) Option {
	return func(o *options) { o.hooks = append(o.hooks, hooks...) }
}

// WithPersistence sets the snapshot store used by Save and autosave.
func WithPersistence(store state.Store[layer.Document]) Option {
	return func(o *options) { o.persist = store }
}

// WithAutosave writes the live document in the background after every
// effective change. It needs WithPersistence and a document id.
func WithAutosave(timeout time.Duration) Option {
	return func(o *options) {
		o.autosave = true
		o.saveTimeout = timeout
	}
}

// WithManualCommit stops the session from committing on every store change.
// Callers then invoke Commit once per finished gesture.
func WithManualCommit() Option {
	return func(o *options) { o.manual = true }
}

// WithClock overrides timestamps for entries, records and events.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithStoreOptions forwards options to the layer store.
func WithStoreOptions(opts ...layer.StoreOption) Option {
	return func(o *options) { o.storeOpts = append(o.storeOpts, opts...) }
}

// WithHistoryOptions forwards options to the history ledger. They are applied
// after the session's own, so they win.
func WithHistoryOptions(opts ...history.Option[layer.Document]) Option {
	return func(o *options) { o.historyOpts = append(o.historyOpts, opts...) }
}

func withCloser(fn func() error) Option {
	return func(o *options) { o.closers = append(o.closers, fn) }
}
