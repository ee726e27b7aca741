package eventbus

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/go-go-golems/docchat/pkg/events"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// TopicTranscript carries every engine event.
const TopicTranscript = "transcript"

// Router bundles a publisher, a subscriber and the watermill router that
// dispatches subscribed messages to handlers. Without explicit pub/sub it
// runs on an in-process go channel.
type Router struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber

	router  *message.Router
	logger  watermill.LoggerAdapter
	verbose bool
	shared  bool
}

type Option func(*Router)

func WithPublisher(p message.Publisher) Option {
	return func(r *Router) { r.Publisher = p }
}

func WithSubscriber(s message.Subscriber) Option {
	return func(r *Router) { r.Subscriber = s }
}

func WithLogger(l watermill.LoggerAdapter) Option {
	return func(r *Router) { r.logger = l }
}

// WithVerbose logs every message passing through the router at debug level.
func WithVerbose(v bool) Option {
	return func(r *Router) { r.verbose = v }
}

func NewRouter(opts ...Option) (*Router, error) {
	r := &Router{}
	for _, o := range opts {
		o(r)
	}
	if r.logger == nil {
		r.logger = NewZerologAdapter(log.Logger)
	}
	if r.Publisher == nil || r.Subscriber == nil {
		goPubSub := gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: 256,
			// Publish returns once every subscriber acked
			BlockPublishUntilSubscriberAck: true,
		}, r.logger)
		r.shared = r.Publisher == nil && r.Subscriber == nil
		if r.Publisher == nil {
			r.Publisher = goPubSub
		}
		if r.Subscriber == nil {
			r.Subscriber = goPubSub
		}
	}

	router, err := message.NewRouter(message.RouterConfig{}, r.logger)
	if err != nil {
		return nil, errors.Wrap(err, "create watermill router")
	}
	r.router = router
	return r, nil
}

// AddHandler subscribes fn to topic. It must be called before Run.
func (r *Router) AddHandler(name, topic string, fn message.NoPublishHandlerFunc) {
	handler := fn
	if r.verbose {
		handler = func(msg *message.Message) error {
			log.Debug().
				Str("component", "eventbus").
				Str("handler", name).
				Str("uuid", msg.UUID).
				Str("event_type", msg.Metadata.Get(metadataEventType)).
				Msg("dispatching message")
			return fn(msg)
		}
	}
	r.router.AddNoPublisherHandler(name, topic, r.Subscriber, handler)
}

func (r *Router) Run(ctx context.Context) error {
	return r.router.Run(ctx)
}

// Running is closed once every handler is subscribed.
func (r *Router) Running() chan struct{} {
	return r.router.Running()
}

func (r *Router) Close() error {
	var errs []error
	if err := r.router.Close(); err != nil {
		errs = append(errs, errors.Wrap(err, "close router"))
	}
	if err := r.Publisher.Close(); err != nil {
		errs = append(errs, errors.Wrap(err, "close publisher"))
	}
	if !r.shared {
		if err := r.Subscriber.Close(); err != nil {
			errs = append(errs, errors.Wrap(err, "close subscriber"))
		}
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

const metadataEventType = "event_type"

// Sink publishes engine events as JSON onto a topic.
type Sink struct {
	publisher message.Publisher
	topic     string
}

var _ events.Sink = &Sink{}

func NewSink(p message.Publisher, topic string) *Sink {
	return &Sink{publisher: p, topic: topic}
}

func (s *Sink) Publish(ctx context.Context, ev events.Event) error {
	payload, err := events.ToJSON(ev)
	if err != nil {
		return err
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set(metadataEventType, string(ev.Type()))
	if md := ev.Metadata(); md.ChatID != "" {
		msg.Metadata.Set("chat_id", md.ChatID)
	}
	msg.SetContext(ctx)
	if err := s.publisher.Publish(s.topic, msg); err != nil {
		return errors.Wrapf(err, "publish %s to %s", ev.Type(), s.topic)
	}
	return nil
}
