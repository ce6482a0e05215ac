package history

import (
	"reflect"
	"strings"
	"time"

	"github.com/goliatone/go-history/pkg/activity"
	"github.com/google/uuid"
)

// DefaultMaxHistory bounds the number of retained entries.
const DefaultMaxHistory = 50

// Option configures a History.
type Option[T any] func(*config[T])

type config[T any] struct {
	maxHistory     int
	classifier     Classifier[T]
	equal          func(a, b T) bool
	target         Target[T]
	asyncTarget    AsyncTarget[T]
	logger         Logger
	hooks          activity.Hooks
	activityConfig activity.Config
	activitySet    bool
	now            func() time.Time
	newID          func() string
	documentID     string
	actorID        string
	tenantID       string
}

func defaultConfig[T any]() config[T] {
	return config[T]{
		maxHistory: DefaultMaxHistory,
		classifier: ClassifierFunc[T](func(T, T) Action {
			return Action{Type: ActionUpdate, Description: "updated"}
		}),
		equal:  func(a, b T) bool { return reflect.DeepEqual(a, b) },
		logger: noopLogger{},
		now:    time.Now,
		newID:  func() string { return uuid.Must(uuid.NewV7()).String() },
	}
}

func applyOptions[T any](opts []Option[T]) config[T] {
	cfg := defaultConfig[T]()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.maxHistory < 1 {
		cfg.maxHistory = 1
	}
	return cfg
}

// WithMaxHistory bounds the ledger length. Values below 1 are clamped to 1.
func WithMaxHistory[T any](n int) Option[T] {
	return func(cfg *config[T]) {
		cfg.maxHistory = n
	}
}

// WithClassifier sets the classifier used to label commits.
func WithClassifier[T any](classifier Classifier[T]) Option[T] {
	return func(cfg *config[T]) {
		if classifier != nil {
			cfg.classifier = classifier
		}
	}
}

// WithEqual replaces the structural equality check used by the idempotence
// guard. The default is reflect.DeepEqual.
func WithEqual[T any](equal func(a, b T) bool) Option[T] {
	return func(cfg *config[T]) {
		if equal != nil {
			cfg.equal = equal
		}
	}
}

// WithTarget wires the synchronous restore target.
func WithTarget[T any](target Target[T]) Option[T] {
	return func(cfg *config[T]) {
		cfg.target = target
		cfg.asyncTarget = nil
	}
}

// WithAsyncTarget wires a restore target whose writes complete later.
func WithAsyncTarget[T any](target AsyncTarget[T]) Option[T] {
	return func(cfg *config[T]) {
		cfg.asyncTarget = target
		cfg.target = nil
	}
}

// WithLogger attaches a transition logger. Nil installs the noop logger.
func WithLogger[T any](logger Logger) Option[T] {
	return func(cfg *config[T]) {
		if logger == nil {
			cfg.logger = noopLogger{}
			return
		}
		cfg.logger = logger
	}
}

// WithActivityHooks emits lifecycle events to hooks. Nil entries are dropped.
func WithActivityHooks[T any](hooks activity.Hooks) Option[T] {
	normalized := hooks.Clone()
	return func(cfg *config[T]) {
		cfg.hooks = normalized
	}
}

// WithActivityConfig overrides the activity defaults. Without it, emission is
// enabled whenever hooks are configured.
func WithActivityConfig[T any](ac activity.Config) Option[T] {
	return func(cfg *config[T]) {
		cfg.activityConfig = ac
		cfg.activitySet = true
	}
}

// WithClock overrides the timestamp source for new entries.
func WithClock[T any](now func() time.Time) Option[T] {
	return func(cfg *config[T]) {
		if now != nil {
			cfg.now = now
		}
	}
}

// WithIDGenerator overrides the entry id generator (UUIDv7 by default).
func WithIDGenerator[T any](newID func() string) Option[T] {
	return func(cfg *config[T]) {
		if newID != nil {
			cfg.newID = newID
		}
	}
}

// WithDocumentID tags activity events with the edited document.
func WithDocumentID[T any](id string) Option[T] {
	return func(cfg *config[T]) {
		cfg.documentID = strings.TrimSpace(id)
	}
}

// WithActor tags activity events with the editing user.
func WithActor[T any](actorID string) Option[T] {
	return func(cfg *config[T]) {
		cfg.actorID = strings.TrimSpace(actorID)
	}
}

// WithTenant tags activity events with the workspace owning the document.
func WithTenant[T any](tenantID string) Option[T] {
	return func(cfg *config[T]) {
		cfg.tenantID = strings.TrimSpace(tenantID)
	}
}
