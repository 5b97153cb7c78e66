// Package server exposes the devnode ledger and relayer over HTTP, plus a
// websocket feed of inbox events.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"phantom_link/internal/cryptographic/keystream"
	"phantom_link/internal/fault"
	"phantom_link/internal/model"
	"phantom_link/internal/service/ledger"
	"phantom_link/internal/utils/log"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

type (
	Ledger interface {
		Execute(ctx context.Context, call *model.SignedCall) (*model.Receipt, error)
		MessageCount(ctx context.Context, owner common.Address) (uint64, error)
		GetMessage(ctx context.Context, owner common.Address, index uint64) (*model.StoredMessage, error)
		Events(ctx context.Context) (<-chan *model.InboxEvent, error)
	}

	Relayer interface {
		Config() model.RelayerConfig
		EncryptInput(ctx context.Context, req *model.EncryptInputRequest) (*model.EncryptedInput, error)
		UserDecrypt(ctx context.Context, req *model.UserDecryptRequest) (*model.UserDecryptResponse, error)
	}

	HttpServer struct {
		ledger  Ledger
		relayer Relayer
		hub     *Hub
	}
)

func NewHttpServer(l Ledger, r Relayer) *HttpServer {
	return &HttpServer{
		ledger:  l,
		relayer: r,
		hub:     NewHub(),
	}
}

func (s *HttpServer) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(requestLogger)

	r.HandleFunc("/relayer/config", s.GetRelayerConfig()).Methods(http.MethodGet)
	r.HandleFunc("/relayer/inputs", s.EncryptInput()).Methods(http.MethodPost)
	r.HandleFunc("/relayer/user-decrypt", s.UserDecrypt()).Methods(http.MethodPost)

	r.HandleFunc("/ledger/send", s.Execute(ledger.MethodSendMessage)).Methods(http.MethodPost)
	r.HandleFunc("/ledger/allow", s.Execute(ledger.MethodAllowMessageKey)).Methods(http.MethodPost)
	r.HandleFunc("/ledger/inbox/{owner}/count", s.MessageCount()).Methods(http.MethodGet)
	r.HandleFunc("/ledger/inbox/{owner}/{index:[0-9]+}", s.GetMessage()).Methods(http.MethodGet)

	r.HandleFunc("/ws", s.HandleWS()).Methods(http.MethodGet)
	return r
}

// Start subscribes the websocket hub to ledger events. It returns once the
// subscription is in place; the hub runs until ctx is done.
func (s *HttpServer) Start(ctx context.Context) error {
	events, err := s.ledger.Events(ctx)
	if err != nil {
		return fmt.Errorf("subscribe to inbox events: %w", err)
	}
	go s.hub.Run(events)
	return nil
}

// Run serves on addr until ctx is cancelled.
func (s *HttpServer) Run(ctx context.Context, addr string) error {
	if err := s.Start(ctx); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()
	log.Info("devnode listening", zap.String("addr", addr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.hub.Close()
		return srv.Shutdown(shutdownCtx)
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *HttpServer) GetRelayerConfig() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.relayer.Config())
	}
}

func (s *HttpServer) EncryptInput() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req model.EncryptInputRequest
		if err := readJSON(w, r, &req); err != nil {
			writeError(w, err)
			return
		}

		out, err := s.relayer.EncryptInput(r.Context(), &req)
		if err != nil {
			log.Error("encrypt input failed", zap.Error(err))
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func (s *HttpServer) UserDecrypt() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req model.UserDecryptRequest
		if err := readJSON(w, r, &req); err != nil {
			writeError(w, err)
			return
		}

		out, err := s.relayer.UserDecrypt(r.Context(), &req)
		if err != nil {
			log.Info("user decrypt refused", zap.String("user", req.UserAddress.Hex()), zap.Error(err))
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// Execute handles a signed state-changing call. The route fixes the method
// so a signature for one call cannot be replayed against another route.
func (s *HttpServer) Execute(method string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var call model.SignedCall
		if err := readJSON(w, r, &call); err != nil {
			writeError(w, err)
			return
		}
		if call.Method != method {
			writeError(w, &fault.DecodeError{What: fmt.Sprintf("%s call on the %s route", call.Method, method)})
			return
		}

		rcpt, err := s.ledger.Execute(r.Context(), &call)
		if err != nil {
			log.Info("call reverted",
				zap.String("method", method),
				zap.String("from", call.From.Hex()),
				zap.Error(err))
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rcpt)
	}
}

func (s *HttpServer) MessageCount() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, err := keystream.ParseAddress(mux.Vars(r)["owner"])
		if err != nil {
			writeError(w, err)
			return
		}

		n, err := s.ledger.MessageCount(r.Context(), owner)
		if err != nil {
			log.Error("message count failed", zap.Error(err))
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, &model.CountResponse{Count: n})
	}
}

func (s *HttpServer) GetMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		owner, err := keystream.ParseAddress(vars["owner"])
		if err != nil {
			writeError(w, err)
			return
		}
		index, err := strconv.ParseUint(vars["index"], 10, 64)
		if err != nil {
			writeError(w, &fault.DecodeError{What: "index", Err: err})
			return
		}

		msg, err := s.ledger.GetMessage(r.Context(), owner, index)
		if err != nil {
			writeError(w, err)
			return
		}
		msg.Index = index
		writeJSON(w, http.StatusOK, msg)
	}
}

func (s *HttpServer) HandleWS() http.HandlerFunc {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		owner, err := keystream.ParseAddress(r.URL.Query().Get("owner"))
		if err != nil {
			writeError(w, err)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Error("websocket upgrade failed", zap.Error(err))
			return
		}

		s.hub.Register(owner, conn)
		go s.hub.readLoop(owner, conn)
	}
}

func readJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return &fault.DecodeError{What: "request body", Err: err}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("write response failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, err error) {
	kind := fault.KindOf(err)
	body := &model.ErrorBody{Error: err.Error(), Kind: kind}
	switch kind {
	case fault.KindSubmissionRejected, fault.KindAuthorizationDenied:
		body.Error = fault.Reason(err)
	case "":
		body.Error = "internal error"
	}
	writeJSON(w, StatusOf(kind), body)
}

// StatusOf maps a taxonomy kind to its HTTP status code.
func StatusOf(kind fault.Kind) int {
	switch kind {
	case fault.KindInvalidAddress, fault.KindDecode:
		return http.StatusBadRequest
	case fault.KindSubmissionRejected:
		return http.StatusUnprocessableEntity
	case fault.KindAuthorizationDenied:
		return http.StatusForbidden
	case fault.KindTransportUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
