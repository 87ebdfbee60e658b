// A toy PagFast-shaped payment provider for local testing. It accepts
// transactions and transfers, advances their status randomly on each read, and
// can push a signed webhook to a callback URL when a transaction settles.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"scratchpay/internal/app/logger"
	mw "scratchpay/internal/app/middleware"
	"scratchpay/pkg/gateway"
)

type record struct {
	ID        string `json:"id"`
	Reference string `json:"reference"`
	Status    string `json:"status"`
}

type server struct {
	mu         sync.Mutex
	txns       map[string]*record
	webhookURL string
	secretKey  string
	logger     logger.Logger
}

func main() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-stop
		cancel()
	}()

	l := logger.New(true, true)

	s := &server{
		txns:       make(map[string]*record),
		webhookURL: os.Getenv("PROVIDER_WEBHOOK_URL"),
		secretKey:  os.Getenv("PROVIDER_SECRET_KEY"),
		logger:     l,
	}

	if err := runServer(ctx, "127.0.0.1:8090", l, s); err != nil {
		l.Fatal().Err(err).Msg("Server run failed")
	}
}

func runServer(ctx context.Context, listenAddr string, l logger.Logger, s *server) (err error) {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(mw.Log(l))
	r.Post("/v1/transactions", s.create)
	r.Post("/v1/transfers", s.create)
	r.Get("/v1/transactions/{id}", s.status)

	srv := &http.Server{
		Addr:    listenAddr,
		Handler: r,
	}

	go func() {
		l.Info().Str("listen_address", listenAddr).Msg("Provider listening")
		if err = srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			l.Fatal().Err(err).Msg("")
		}
	}()

	<-ctx.Done()

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err = srv.Shutdown(ctxShutdown); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	return
}

func (s *server) create(w http.ResponseWriter, r *http.Request) {
	in := struct {
		Reference string `json:"reference"`
	}{}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rec := &record{
		ID:        uuid.New().String(),
		Reference: in.Reference,
		Status:    "waiting_payment",
	}

	s.mu.Lock()
	s.txns[rec.ID] = rec
	s.mu.Unlock()

	out := struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Pix    struct {
			QRCodeURL string `json:"qr_code_url"`
			Code      string `json:"code"`
		} `json:"pix"`
	}{
		ID:     rec.ID,
		Status: rec.Status,
	}
	out.Pix.QRCodeURL = "https://provider.local/qr/" + rec.ID
	out.Pix.Code = "00020126" + rec.ID

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func (s *server) status(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	rec, ok := s.txns[id]
	if ok {
		s.advance(rec)
	}
	s.mu.Unlock()

	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rec)
}

// advance moves the record one random step through the provider lifecycle.
func (s *server) advance(rec *record) {
	if rec.Status == "paid" || rec.Status == "refused" {
		return
	}

	switch {
	case rand.Float32() < 0.3:
		rec.Status = "processing"
	case rand.Float32() < 0.3:
		rec.Status = "paid"
		go s.notify(*rec)
	case rand.Float32() < 0.1:
		rec.Status = "refused"
		go s.notify(*rec)
	}
}

// notify pushes a signed webhook if a callback URL is configured.
func (s *server) notify(rec record) {
	if s.webhookURL == "" {
		return
	}

	payload, err := json.Marshal(struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}{rec.ID, rec.Status})
	if err != nil {
		return
	}

	req, err := http.NewRequest(http.MethodPost, s.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Signature", gateway.Sign(s.secretKey, payload))

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		s.logger.Error().Err(err).Msg("Webhook delivery failed")
		return
	}
	_ = res.Body.Close()

	s.logger.Info().
		Str("id", rec.ID).
		Str("status", rec.Status).
		Int("http_status", res.StatusCode).
		Msg("Webhook delivered")
}
