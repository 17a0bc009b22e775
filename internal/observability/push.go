package observability

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// PushJob is the Pushgateway job name for batch runs.
const PushJob = "twdata"

// Push sends everything in the default registry to a Pushgateway.
// An empty url is a no-op.
func Push(ctx context.Context, url, instance string) error {
	return pushFrom(ctx, url, instance, prometheus.DefaultGatherer)
}

func pushFrom(ctx context.Context, url, instance string, g prometheus.Gatherer) error {
	if url == "" {
		return nil
	}
	p := push.New(url, PushJob).Gatherer(g)
	if instance != "" {
		p = p.Grouping("instance", instance)
	}
	if err := p.PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}
