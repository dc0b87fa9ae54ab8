package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	httpadapter "github.com/mmembroidery/tryon-studio/internal/adapters/http"
	"github.com/mmembroidery/tryon-studio/internal/config"
	"github.com/mmembroidery/tryon-studio/internal/core/ports"
	"github.com/mmembroidery/tryon-studio/internal/core/usecase"
	"github.com/mmembroidery/tryon-studio/internal/infrastructure/catalog/yamlcatalog"
	"github.com/mmembroidery/tryon-studio/internal/infrastructure/composer/httpapi"
	"github.com/mmembroidery/tryon-studio/internal/infrastructure/content"
	"github.com/mmembroidery/tryon-studio/internal/infrastructure/imageenc"
	"github.com/mmembroidery/tryon-studio/internal/infrastructure/orders"
	"github.com/mmembroidery/tryon-studio/internal/infrastructure/queue/nats"
	"github.com/mmembroidery/tryon-studio/internal/infrastructure/resilience"
	"github.com/mmembroidery/tryon-studio/internal/infrastructure/session/memory"
	"github.com/mmembroidery/tryon-studio/internal/observability/metrics"
)

type App struct {
	Config config.Config

	Handler  http.Handler
	Studio   ports.Studio
	Sessions *memory.Store
	Metrics  *metrics.StudioMetrics

	closeFn func()
}

func New(_ context.Context, cfg config.Config) (*App, error) {
	studioMetrics := metrics.NewStudioMetrics("web")

	catalog, err := yamlcatalog.Default(cfg.PublicBaseURL)
	if err != nil {
		return nil, fmt.Errorf("load design catalog: %w", err)
	}
	page, err := content.LoadPage()
	if err != nil {
		return nil, fmt.Errorf("render page copy: %w", err)
	}

	sessions := memory.New(cfg.SessionTTL)
	studioMetrics.RegisterGaugeFunc("studio", "active_sessions", "Number of live studio sessions.", func() float64 {
		return float64(sessions.Len())
	})

	composerExecutor := resilience.NewExecutor(composerResilience(cfg), resilience.WithStateObserver(studioMetrics.ObserveBreakerState))
	composer := httpapi.New(cfg.ComposerBaseURL, cfg.ComposerTimeout, httpapi.WithExecutor(composerExecutor))

	submitter, closeSubmitter, err := newOrderSubmitter(cfg)
	if err != nil {
		return nil, err
	}

	studio := usecase.NewStudioUseCase(
		sessions,
		catalog,
		imageenc.New(cfg.UploadMaxBytes, cfg.PhotoMaxDimension),
		composer,
		submitter,
		usecase.WithSanitizer(content.NewTextSanitizer()),
		usecase.WithMetrics(studioMetrics),
	)

	router, err := httpadapter.NewRouter(studio, catalog, httpadapter.PageCopy{
		Hero:    page.Hero,
		About:   page.About,
		Contact: page.Contact,
	}, httpadapter.RouterConfig{
		PublicDir:        cfg.PublicDir,
		CookieSecure:     cfg.SessionCookieSecure || cfg.IsProduction(),
		UploadMaxBytes:   cfg.UploadMaxBytes,
		RateLimitRPS:     cfg.APIRateLimitRPS,
		RateLimitBurst:   cfg.APIRateLimitBurst,
		MaxInFlight:      cfg.APIBackpressureMaxInFlight,
		BackpressureWait: cfg.APIBackpressureWaitDuration,
	}, httpadapter.WithMetrics(studioMetrics))
	if err != nil {
		closeSubmitter()
		return nil, fmt.Errorf("init router: %w", err)
	}

	return &App{
		Config:   cfg,
		Handler:  router.Handler(),
		Studio:   studio,
		Sessions: sessions,
		Metrics:  studioMetrics,
		closeFn:  closeSubmitter,
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

// ConnectOrderQueue opens the NATS connection that carries custom orders.
func ConnectOrderQueue(cfg config.Config, clientName string) (*nats.OrderQueue, error) {
	queue, err := nats.Connect(cfg.NATSURL, cfg.NATSOrderSubject, nats.Options{
		ClientName: clientName,
		ResilienceExecutor: resilience.NewExecutor(resilience.Config{
			MaxAttempts: 3,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("init order queue: %w", err)
	}
	return queue, nil
}

func newOrderSubmitter(cfg config.Config) (ports.OrderSubmitter, func(), error) {
	switch cfg.OrderSubmitter {
	case config.OrderSubmitterNATS:
		queue, err := ConnectOrderQueue(cfg, "tryon-web")
		if err != nil {
			return nil, nil, err
		}
		return queue, queue.Close, nil
	case config.OrderSubmitterStub, "":
		return orders.NewAckSubmitter(slog.Default()), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown order submitter %q", cfg.OrderSubmitter)
	}
}

func composerResilience(cfg config.Config) resilience.Config {
	rc := resilience.DefaultConfig()
	rc.MaxAttempts = cfg.ComposerRetryMaxAttempts
	rc.BreakerEnabled = cfg.ComposerBreakerEnabled
	if cfg.ComposerBreakerMinRequests > 0 {
		rc.BreakerMinRequests = uint32(cfg.ComposerBreakerMinRequests)
	}
	rc.BreakerFailureRatio = cfg.ComposerBreakerFailureRate
	rc.BreakerOpenTimeout = cfg.ComposerBreakerOpenTimeout
	return rc
}
