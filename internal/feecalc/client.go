package feecalc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/flightbase/fbo-management/internal"
)

// FeeRequest describes a completed fuel order for pricing. All
// arithmetic happens in the remote fee service; this package only
// moves the numbers.
type FeeRequest struct {
	OrderID         int64  `json:"order_id"`
	FuelType        string `json:"fuel_type"`
	QuantityGallons int64  `json:"quantity_gallons"`
	TailNumber      string `json:"tail_number"`
}

func (r *FeeRequest) Validate() error {
	if r.OrderID <= 0 {
		return fmt.Errorf("order_id is required")
	}
	if r.FuelType == "" {
		return fmt.Errorf("fuel_type is required")
	}
	if r.QuantityGallons <= 0 {
		return fmt.Errorf("quantity_gallons must be positive")
	}
	return nil
}

type LineItem struct {
	Code        string `json:"code"`
	Description string `json:"description"`
	Quantity    int64  `json:"quantity"`
	AmountCents int64  `json:"amount_cents"`
}

type FeeQuote struct {
	OrderID    int64      `json:"order_id"`
	TotalCents int64      `json:"total_cents"`
	Currency   string     `json:"currency"`
	LineItems  []LineItem `json:"line_items"`
}

// ResultHandler receives quotes produced by the background workers.
// The fuel order service registers one to persist receipts.
type ResultHandler func(ctx context.Context, quote *FeeQuote, err error)

type FeeJob struct {
	Request FeeRequest
}

type Worker struct {
	ID         int
	WorkerPool chan chan FeeJob
	JobChannel chan FeeJob
	Logger     *slog.Logger
}

func NewWorker(id int, workerPool chan chan FeeJob, logger *slog.Logger) *Worker {
	return &Worker{
		ID:         id,
		WorkerPool: workerPool,
		JobChannel: make(chan FeeJob),
		Logger:     logger,
	}
}

func (w *Worker) Start(ctx context.Context, wg *sync.WaitGroup, processFunc func(FeeJob)) {
	wg.Add(1)
	go func() {
		defer wg.Done()

		for {
			w.WorkerPool <- w.JobChannel

			select {
			case job := <-w.JobChannel:
				w.Logger.Debug("worker processing fee job", "worker_id", w.ID, "order_id", job.Request.OrderID)
				processFunc(job)
			case <-ctx.Done():
				w.Logger.Debug("worker shutting down", "worker_id", w.ID)
				return
			}
		}
	}()
}

// Client talks to the external fee service. Synchronous quoting is
// available via QuoteFees; EnqueueQuote hands the request to a worker
// pool and delivers the quote through the registered ResultHandler.
type Client struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	logger     *slog.Logger
	httpClient *http.Client

	jobQueue   chan FeeJob
	workerPool chan chan FeeJob
	maxWorkers int
	onResult   ResultHandler
	resultMu   sync.RWMutex
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	once       sync.Once
}

type Config struct {
	BaseURL      string
	APIKey       string
	Timeout      time.Duration
	MaxWorkers   int
	JobQueueSize int
}

func NewClient(config Config, logger *slog.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	maxWorkers := config.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 5
	}

	jobQueueSize := config.JobQueueSize
	if jobQueueSize <= 0 {
		jobQueueSize = 100
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	client := &Client{
		baseURL:    config.BaseURL,
		apiKey:     config.APIKey,
		timeout:    timeout,
		logger:     logger,
		httpClient: &http.Client{Timeout: timeout},

		maxWorkers: maxWorkers,
		jobQueue:   make(chan FeeJob, jobQueueSize),
		workerPool: make(chan chan FeeJob, maxWorkers),
		ctx:        ctx,
		cancel:     cancel,
	}

	client.startWorkerPool()

	return client
}

func (c *Client) startWorkerPool() {
	c.once.Do(func() {
		for i := 0; i < c.maxWorkers; i++ {
			worker := NewWorker(i, c.workerPool, c.logger)
			worker.Start(c.ctx, &c.wg, c.processFeeJob)
		}

		c.wg.Add(1)
		go c.dispatch()

		c.logger.Info("fee service worker pool started",
			"max_workers", c.maxWorkers,
			"queue_size", cap(c.jobQueue))
	})
}

func (c *Client) dispatch() {
	defer c.wg.Done()

	for {
		select {
		case job := <-c.jobQueue:
			select {
			case jobChannel := <-c.workerPool:
				select {
				case jobChannel <- job:
				case <-c.ctx.Done():
					c.logger.Info("dispatcher shutting down")
					return
				}
			case <-c.ctx.Done():
				c.logger.Info("dispatcher shutting down")
				return
			}
		case <-c.ctx.Done():
			c.logger.Info("dispatcher shutting down")
			return
		}
	}
}

func (c *Client) Shutdown() {
	c.logger.Info("shutting down fee service client")
	c.cancel()
	c.wg.Wait()
	c.logger.Info("fee service client shutdown complete")
}

// OnResult registers the handler invoked with each asynchronous quote.
func (c *Client) OnResult(handler ResultHandler) {
	c.resultMu.Lock()
	defer c.resultMu.Unlock()
	c.onResult = handler
}

// EnqueueQuote queues a fee request for background processing. A full
// queue is reported to the caller rather than blocking a request path.
func (c *Client) EnqueueQuote(req FeeRequest) error {
	if err := req.Validate(); err != nil {
		return internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}

	select {
	case c.jobQueue <- FeeJob{Request: req}:
		c.logger.Info("fee quote queued",
			"order_id", req.OrderID,
			"queue_length", len(c.jobQueue))
		return nil
	default:
		c.logger.Warn("fee job queue full, rejecting quote",
			"order_id", req.OrderID,
			"queue_capacity", cap(c.jobQueue))
		return internal.NewExternalAPIError("fee queue full, please try again later", internal.ErrCodeFeeServiceFailure)
	}
}

func (c *Client) processFeeJob(job FeeJob) {
	ctx, cancel := context.WithTimeout(c.ctx, c.timeout)
	defer cancel()

	quote, err := c.QuoteFees(ctx, &job.Request)
	if err != nil {
		c.logger.Error("fee quote failed", "order_id", job.Request.OrderID, "error", err)
	}

	c.resultMu.RLock()
	handler := c.onResult
	c.resultMu.RUnlock()

	if handler == nil {
		c.logger.Warn("fee quote completed with no result handler registered", "order_id", job.Request.OrderID)
		return
	}
	handler(ctx, quote, err)
}

// QuoteFees calls the fee service synchronously and returns its line
// items verbatim.
func (c *Client) QuoteFees(ctx context.Context, req *FeeRequest) (*FeeQuote, error) {
	if err := req.Validate(); err != nil {
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}

	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal fee request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/quotes", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, internal.NewExternalAPIError(fmt.Sprintf("fee service request failed: %v", err), internal.ErrCodeFeeServiceFailure)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, internal.NewExternalAPIError(fmt.Sprintf("fee service returned status %d", resp.StatusCode), internal.ErrCodeFeeServiceFailure)
	}

	var apiResponse struct {
		Data FeeQuote `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		return nil, fmt.Errorf("failed to decode fee service response: %w", err)
	}

	if apiResponse.Data.OrderID == 0 {
		apiResponse.Data.OrderID = req.OrderID
	}

	c.logger.Info("fee quote received",
		"order_id", apiResponse.Data.OrderID,
		"total_cents", apiResponse.Data.TotalCents,
		"line_items", len(apiResponse.Data.LineItems))

	return &apiResponse.Data, nil
}
