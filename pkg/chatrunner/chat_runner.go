package chatrunner

import (
	"context"
	"os"
	"path/filepath"

	"github.com/go-go-golems/docchat/pkg/client"
	"github.com/go-go-golems/docchat/pkg/config"
	"github.com/go-go-golems/docchat/pkg/engine"
	"github.com/go-go-golems/docchat/pkg/eventbus"
	"github.com/go-go-golems/docchat/pkg/events"
	"github.com/go-go-golems/docchat/pkg/persistence/chatstore"
	"github.com/go-go-golems/docchat/pkg/redisstream"
	"github.com/go-go-golems/docchat/pkg/session"
	"github.com/go-go-golems/docchat/pkg/speech"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Runner owns everything one chat run needs: the backend client, the
// engine, the event bus feeding the conversation cache, and the speaker.
type Runner struct {
	Settings *config.Settings
	Client   *client.Client
	Session  *session.State
	Engine   *engine.Engine
	Store    chatstore.ConversationStore

	router *eventbus.Router
	topic  string
}

type options struct {
	views         []events.View
	engineOptions []engine.Option
}

type Option func(*options)

// WithView adds a view receiving every engine event.
func WithView(v events.View) Option {
	return func(o *options) { o.views = append(o.views, v) }
}

// WithEngineOptions passes extra options to the engine, after the ones
// derived from settings.
func WithEngineOptions(opts ...engine.Option) Option {
	return func(o *options) { o.engineOptions = append(o.engineOptions, opts...) }
}

// NewClient creates the backend client and restores the saved login, if
// one exists for the configured server.
func NewClient(s *config.Settings) (*client.Client, error) {
	c, err := client.New(s.Server.URL, client.WithTimeout(s.Server.Timeout))
	if err != nil {
		return nil, err
	}
	saved, err := client.LoadSessionFile(s.Session.File)
	if err != nil {
		log.Warn().Err(err).Str("component", "chatrunner").Msg("ignoring unreadable session file")
		return c, nil
	}
	if saved != nil && !c.Restore(*saved) {
		log.Debug().
			Str("component", "chatrunner").
			Str("saved_server", saved.Server).
			Str("server", c.BaseURL()).
			Msg("saved session belongs to another server")
	}
	return c, nil
}

// OpenStore opens the SQLite conversation cache, or an in-memory one when
// the cache is disabled.
func OpenStore(s config.CacheSettings) (chatstore.ConversationStore, error) {
	if !s.Enabled {
		return chatstore.NewInMemoryConversationStore(), nil
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o700); err != nil {
		return nil, errors.Wrap(err, "create cache dir")
	}
	dsn, err := chatstore.SQLiteConversationDSNForFile(s.Path)
	if err != nil {
		return nil, err
	}
	return chatstore.NewSQLiteConversationStore(dsn)
}

// NewSpeaker returns nil when speech is disabled or no synthesizer exists.
func NewSpeaker(s config.SpeechSettings) engine.Speaker {
	if !s.Enabled {
		return nil
	}
	sp, err := speech.Detect(s.Command, s.Lang)
	if err != nil {
		log.Debug().Err(err).Str("component", "chatrunner").Msg("read aloud disabled")
		return nil
	}
	return sp
}

func New(s *config.Settings, opts ...Option) (*Runner, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	c, err := NewClient(s)
	if err != nil {
		return nil, err
	}
	store, err := OpenStore(s.Cache)
	if err != nil {
		return nil, err
	}

	topic := eventbus.TopicTranscript
	if s.Redis.Enabled {
		topic = s.Redis.Stream
		ctx, cancel := context.WithTimeout(context.Background(), s.Server.Timeout)
		err := redisstream.EnsureGroupAtTail(ctx, s.Redis.Addr, topic, s.Redis.Group)
		cancel()
		if err != nil {
			_ = store.Close()
			return nil, err
		}
	}
	router, err := redisstream.BuildRouter(redisstream.Settings{
		Enabled:  s.Redis.Enabled,
		Addr:     s.Redis.Addr,
		Group:    s.Redis.Group,
		Consumer: s.Redis.Consumer,
	}, zerolog.GlobalLevel() <= zerolog.DebugLevel)
	if err != nil {
		_ = store.Close()
		return nil, errors.Wrap(err, "create event bus")
	}
	router.AddHandler("chatstore-persist", topic, chatstore.PersistFunc(store))

	st := session.NewState()
	engineOpts := []engine.Option{
		engine.WithSession(st),
		engine.WithSink(eventbus.NewSink(router.Publisher, topic)),
		engine.WithRevealInterval(s.Reveal.Interval),
		engine.WithNoticeTTL(s.Notice.TTL),
		engine.WithAutoSpeak(s.Speech.AutoSpeak),
	}
	if len(o.views) > 0 {
		engineOpts = append(engineOpts, engine.WithView(events.Views(o.views)))
	}
	if sp := NewSpeaker(s.Speech); sp != nil {
		engineOpts = append(engineOpts, engine.WithSpeaker(sp))
	}
	engineOpts = append(engineOpts, o.engineOptions...)

	return &Runner{
		Settings: s,
		Client:   c,
		Session:  st,
		Engine:   engine.New(c, engineOpts...),
		Store:    store,
		router:   router,
		topic:    topic,
	}, nil
}

// Run starts the event bus and the engine, then calls fn. Everything is
// stopped once fn returns or ctx is canceled.
func (r *Runner) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	eg, childCtx := errgroup.WithContext(ctx)
	childCtx, cancel := context.WithCancel(childCtx)
	defer cancel()

	eg.Go(func() error {
		defer cancel()
		if err := r.router.Run(childCtx); err != nil && !errors.Is(err, context.Canceled) {
			return errors.Wrap(err, "event bus")
		}
		return nil
	})

	eg.Go(func() error {
		defer cancel()
		select {
		case <-r.router.Running():
		case <-childCtx.Done():
			return nil
		}
		return r.Engine.Run(childCtx)
	})

	eg.Go(func() error {
		defer cancel()
		select {
		case <-r.router.Running():
		case <-childCtx.Done():
			return nil
		}
		log.Debug().Str("component", "chatrunner").Str("topic", r.topic).Msg("event bus running")
		err := fn(childCtx)
		if errors.Is(err, context.Canceled) && ctx.Err() == nil {
			return nil
		}
		return err
	})

	err := eg.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// SaveLogin persists the client's cookies for later runs.
func (r *Runner) SaveLogin(username string) error {
	return client.SaveSessionFile(r.Settings.Session.File, r.Client.Save(username))
}

func (r *Runner) Close() error {
	var errs []error
	if err := r.router.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := r.Store.Close(); err != nil {
		errs = append(errs, errors.Wrap(err, "close conversation store"))
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}
