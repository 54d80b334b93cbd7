package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/thalibox/marketplace-backend/pkg/config"
	"github.com/thalibox/marketplace-backend/pkg/logger"
)

type resourceKind string

const (
	kindTopic        resourceKind = "topics"
	kindSubscription resourceKind = "subscriptions"
)

// Client wraps the Pub/Sub v2 client with the marketplace topic and
// subscription names. Which resources get verified depends on the role the
// process plays: the outbox publisher only needs the domain topic, the
// analytics worker only its subscription.
type Client struct {
	client    *pubsub.Client
	projectID string
	cfg       config.PubSubConfig
	checks    []resourceCheck
}

type resourceCheck struct {
	kind resourceKind
	name string
}

// Option selects which resources NewClient and Ping verify.
type Option func(*Client)

// WithTopicCheck verifies the domain topic exists.
func WithTopicCheck() Option {
	return func(c *Client) {
		c.checks = append(c.checks, resourceCheck{kind: kindTopic, name: c.cfg.DomainTopic})
	}
}

// WithSubscriptionCheck verifies the analytics subscription exists.
func WithSubscriptionCheck() Option {
	return func(c *Client) {
		c.checks = append(c.checks, resourceCheck{kind: kindSubscription, name: c.cfg.AnalyticsSubscription})
	}
}

var (
	errProjectIDRequired    = errors.New("gcp project id is required")
	errClientNotInitialized = errors.New("pubsub client not initialized")
)

// NewClient dials Pub/Sub with the configured credentials and runs the
// resource checks selected by opts.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger, opts ...Option) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}

	c := &Client{projectID: projectID, cfg: cfg}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.validateChecks(); err != nil {
		return nil, err
	}

	psClient, err := pubsub.NewClient(ctx, projectID, gcp.ClientOptions()...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	c.client = psClient

	if err := c.Ping(ctx); err != nil {
		_ = psClient.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"project": projectID,
			"checked": c.checkedNames(),
		}), "pubsub client initialized")
	}
	return c, nil
}

func (c *Client) validateChecks() error {
	for _, chk := range c.checks {
		if strings.TrimSpace(chk.name) == "" {
			return fmt.Errorf("pubsub %s name is required", strings.TrimSuffix(string(chk.kind), "s"))
		}
	}
	return nil
}

func (c *Client) checkedNames() []string {
	out := make([]string, 0, len(c.checks))
	for _, chk := range c.checks {
		out = append(out, resourceName(c.projectID, chk.kind, chk.name))
	}
	return out
}

// Ping re-runs the configured resource checks.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errClientNotInitialized
	}
	for _, chk := range c.checks {
		if err := c.exists(ctx, chk); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) exists(ctx context.Context, chk resourceCheck) error {
	full := resourceName(c.projectID, chk.kind, chk.name)
	var err error
	switch chk.kind {
	case kindTopic:
		_, err = c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: full})
	case kindSubscription:
		_, err = c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: full})
	default:
		return fmt.Errorf("unknown pubsub resource kind %q", chk.kind)
	}
	if err == nil {
		return nil
	}
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("%s does not exist", full)
	}
	return fmt.Errorf("checking %s: %w", full, err)
}

// Subscription returns a subscriber for an ID or full resource name.
func (c *Client) Subscription(name string) *pubsub.Subscriber {
	if c == nil || c.client == nil {
		return nil
	}
	full := resourceName(c.projectID, kindSubscription, name)
	if full == "" {
		return nil
	}
	return c.client.Subscriber(full)
}

// AnalyticsSubscription feeds the analytics worker.
func (c *Client) AnalyticsSubscription() *pubsub.Subscriber {
	if c == nil {
		return nil
	}
	return c.Subscription(c.cfg.AnalyticsSubscription)
}

// Publisher returns a publisher for an ID or full resource name.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	full := resourceName(c.projectID, kindTopic, name)
	if full == "" {
		return nil
	}
	return c.client.Publisher(full)
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// resourceName expands a short ID into projects/<p>/<kind>/<id>. Names that
// are already fully qualified for the same kind pass through untouched.
func resourceName(projectID string, kind resourceKind, name string) string {
	n := strings.TrimSpace(name)
	if n == "" {
		return ""
	}
	if strings.HasPrefix(n, "projects/") && strings.Contains(n, "/"+string(kind)+"/") {
		return n
	}
	p := strings.TrimSpace(projectID)
	if p == "" {
		return ""
	}
	return "projects/" + p + "/" + string(kind) + "/" + n
}
