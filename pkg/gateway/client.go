package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

// Caller executes a built provider request and returns the raw response body.
type Caller interface {
	Do(ctx context.Context, req *Request) ([]byte, error)
}

// Client interface implementation
var _ Caller = (*Client)(nil)

type Client struct {
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	timeout    time.Duration
	logger     zerolog.Logger
}

func (c *Client) LoggerComponent() string {
	return "Gateway.Client"
}

type ClientOption func(*Client)

func WithLogger(l zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func NewClient(timeout time.Duration, opts ...ClientOption) *Client {
	c := &Client{
		httpClient: http.DefaultClient,
		timeout:    timeout,
		logger:     log.Logger,
	}

	for _, o := range opts {
		o(c)
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "gateway",
		Timeout: 30 * time.Second,
	})

	c.logger = c.logger.With().Str("component", c.LoggerComponent()).Logger()

	return c
}

type RemoteError struct {
	ResponseBody string
	StatusCode   int
}

func NewRemoteError(responseBody string, statusCode int) *RemoteError {
	return &RemoteError{ResponseBody: responseBody, StatusCode: statusCode}
}

func (e *RemoteError) Error() string {
	return e.ResponseBody
}

// Do executes the request with a bounded timeout behind a circuit breaker. A
// response status >= 400 is returned as *RemoteError.
func (c *Client) Do(ctx context.Context, req *Request) ([]byte, error) {
	l := c.logger.With().
		Str("http_method", req.Method).
		Str("url", req.URL).
		Logger()
	ctx = l.WithContext(ctx)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := c.breaker.Execute(func() (interface{}, error) {
		return c.roundTrip(ctx, req)
	})
	if err != nil {
		l.Error().Err(err).Msg("Gateway request failed")
		return nil, err
	}

	return body.([]byte), nil
}

func (c *Client) roundTrip(ctx context.Context, req *Request) ([]byte, error) {
	l := zerolog.Ctx(ctx)

	var bodyReader *bytes.Reader
	if req.Body != nil {
		rawJSON, err := json.Marshal(req.Body)
		if err != nil {
			return nil, errors.Wrap(err, "json encode")
		}
		bodyReader = bytes.NewReader(rawJSON)
	} else {
		bodyReader = bytes.NewReader(nil)
	}

	httpReq, err := http.NewRequest(req.Method, req.URL, bodyReader)
	if err != nil {
		return nil, errors.Wrap(err, "new request")
	}
	httpReq = httpReq.WithContext(ctx)

	httpReq.Header.Add("Content-Type", "application/json")
	httpReq.Header.Add("Accept", "application/json")
	for k, vv := range req.Header {
		for _, v := range vv {
			httpReq.Header.Set(k, v)
		}
	}

	l.Debug().Msg("Doing request")

	res, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "do request")
	}
	defer func() {
		_ = res.Body.Close()
	}()

	resBody, err := ioutil.ReadAll(res.Body)
	if err != nil {
		return nil, errors.Wrap(err, "body read")
	}

	if res.StatusCode >= 400 {
		l.Error().
			Int("http_status", res.StatusCode).
			Str("http_body", string(resBody)).
			Msg("Gateway responded with error")
		return nil, NewRemoteError(string(resBody), res.StatusCode)
	}

	return resBody, nil
}
