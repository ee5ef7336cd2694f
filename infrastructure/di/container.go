package di

import (
	"context"
	"errors"
	"net/http"

	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"go.uber.org/zap"

	"github.com/artgluhovskiy/vertex-sub001/application/services"
	"github.com/artgluhovskiy/vertex-sub001/infrastructure/config"
	"github.com/artgluhovskiy/vertex-sub001/infrastructure/messaging/inprocess"
	"github.com/artgluhovskiy/vertex-sub001/infrastructure/scheduler"
	"github.com/artgluhovskiy/vertex-sub001/infrastructure/search"
	"github.com/artgluhovskiy/vertex-sub001/interfaces/http/rest"
	"github.com/artgluhovskiy/vertex-sub001/pkg/observability"
)

// Container holds all application dependencies
type Container struct {
	Config     *config.Config
	Logger     *zap.Logger
	Metrics    *observability.Collector
	CloudWatch *observability.CloudWatchReporter
	Tracer     *observability.TracerProvider
	PubSub     *gochannel.GoChannel
	Subscriber *inprocess.IndexingSubscriber
	Scheduler  *scheduler.Scheduler
	FullText   *search.FullTextIndex

	Indexing *services.IndexingService
	Notes    *services.NoteService
	Search   *services.SearchService
	Graph    *services.GraphService
	Links    *services.LinkService
	Sync     *services.SyncService
}

// HTTPHandler builds the REST router over the container's services.
func (c *Container) HTTPHandler() http.Handler {
	opts := rest.Options{
		EnableCORS:     c.Config.EnableCORS,
		AllowedOrigins: c.Config.CORSAllowedOrigins,
	}
	if c.Config.EnableMetrics {
		opts.Metrics = c.Metrics.Handler()
		opts.Observer = c.Metrics
	}
	return rest.NewRouter(rest.Services{
		Notes:    c.Notes,
		Links:    c.Links,
		Search:   c.Search,
		Graph:    c.Graph,
		Sync:     c.Sync,
		Indexing: c.Indexing,
	}, opts, c.Logger).Setup()
}

// Start launches the background workers: the indexing subscriber when
// indexing is asynchronous, and the maintenance scheduler outside Lambda.
func (c *Container) Start(ctx context.Context) error {
	if c.Config.AsyncIndexing {
		if err := c.Subscriber.Start(ctx); err != nil {
			return err
		}
	}
	if !c.Config.IsLambda {
		c.Scheduler.Start()
	}
	return nil
}

// Shutdown stops the workers, persists the full-text index and flushes
// telemetry. It keeps going after individual failures.
func (c *Container) Shutdown(ctx context.Context) error {
	var errs []error

	if !c.Config.IsLambda {
		if err := c.Scheduler.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	// Closing the channel ends the subscriber loop.
	if err := c.PubSub.Close(); err != nil {
		errs = append(errs, err)
	}
	c.Subscriber.Wait()

	if c.Config.IndexSnapshotPath != "" {
		if err := c.FullText.SaveFile(c.Config.IndexSnapshotPath); err != nil {
			errs = append(errs, err)
		} else {
			c.Logger.Info("Full-text snapshot saved", zap.String("path", c.Config.IndexSnapshotPath))
		}
	}

	if c.CloudWatch != nil {
		if err := c.CloudWatch.Flush(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := c.Tracer.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}
