package transport

import (
	"io"
	"net/http"

	"github.com/oriys/offchain/internal/domain"
	"github.com/oriys/offchain/internal/logging"
	"github.com/oriys/offchain/internal/protocol"
	"github.com/oriys/offchain/internal/registry"
	"github.com/oriys/offchain/internal/signer"
)

// Server exposes one VASP's channels to its counterparties over HTTP.
// Routing is by sender address only: the registry opens a channel to any
// previously unseen peer the first time it is addressed.
type Server struct {
	self     domain.Address
	registry *registry.Registry
	codec    *protocol.Codec
	signer   signer.Signer
	keys     KeyDirectory
	events   *logging.Logger
}

// NewServer returns a Server answering on behalf of self.
func NewServer(self domain.Address, reg *registry.Registry, codec *protocol.Codec, s signer.Signer, keys KeyDirectory, events *logging.Logger) *Server {
	return &Server{self: self, registry: reg, codec: codec, signer: s, keys: keys, events: events}
}

// Handler returns the http.Handler routing POST /v1/channel/request and
// POST /v1/channel/response.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/channel/request", s.handleRequest)
	mux.HandleFunc("POST /v1/channel/response", s.handleResponse)
	return mux
}

func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body: "+err.Error(), http.StatusBadRequest)
		return
	}
	from, body, err := openEnvelope(s.signer, s.keys, data)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	req, err := s.codec.DecodeRequest(body)
	if err != nil {
		s.writeResponse(w, &domain.Response{
			Status: domain.StatusFailure,
			Error:  &domain.ProtocolError{Code: domain.ErrCodeParsing, Message: err.Error()},
		})
		return
	}

	ch, err := s.registry.GetChannel(from)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	resp, err := ch.HandleRequest(r.Context(), req, false)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeResponse(w, resp)
}

func (s *Server) handleResponse(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body: "+err.Error(), http.StatusBadRequest)
		return
	}
	from, body, err := openEnvelope(s.signer, s.keys, data)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	resp, err := s.codec.DecodeResponse(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ch, err := s.registry.GetChannel(from)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := ch.HandleResponse(r.Context(), resp); err != nil {
		if s.events != nil {
			s.events.Log(&logging.ChannelEvent{Peer: from.String(), Kind: "response", OK: false, Error: err.Error()})
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeResponse(w http.ResponseWriter, resp *domain.Response) {
	body, err := s.codec.EncodeResponse(resp)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	sealed, err := sealEnvelope(s.self, s.signer, body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(sealed)
}
