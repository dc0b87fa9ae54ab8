package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmembroidery/tryon-studio/internal/core/domain"
	"github.com/mmembroidery/tryon-studio/internal/infrastructure/resilience"
)

const processImagePath = "/api/process-image"

// Client talks to the remote try-on composition service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Option func(*Client)

func WithExecutor(executor *resilience.Executor) Option {
	return func(c *Client) { c.executor = executor }
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type processImageRequest struct {
	UserImage   string `json:"userImage"`
	DesignImage string `json:"designImage"`
}

type processImageResponse struct {
	ProcessedImage string `json:"processedImage"`
}

// Compose sends one composition request and returns the processed image reference.
func (c *Client) Compose(ctx context.Context, userImage, designImage string) (string, error) {
	req := processImageRequest{UserImage: userImage, DesignImage: designImage}

	var resp processImageResponse
	call := func(ctx context.Context) error {
		resp = processImageResponse{}
		return c.postJSON(ctx, processImagePath, req, &resp, "process-image")
	}

	var err error
	if c.executor == nil {
		err = call(ctx)
	} else {
		err = c.executor.Do(ctx, "composer.process_image", call, classifyComposerError)
	}
	if err != nil {
		return "", wrapTemporaryIfNeeded("compose preview", err)
	}

	image := strings.TrimSpace(resp.ProcessedImage)
	if image == "" {
		return "", fmt.Errorf("composer process-image: %w", errMissingProcessedImage)
	}
	return image, nil
}

var errMissingProcessedImage = domain.WrapError(domain.ErrCompositionFailed, "decode process-image response", fmt.Errorf("processedImage field is empty"))
