package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/veritasnet/atlas/pkg/events"
	"github.com/veritasnet/atlas/pkg/metrics"
	"github.com/veritasnet/atlas/pkg/security"
	"github.com/veritasnet/atlas/pkg/storage"
	"github.com/veritasnet/atlas/pkg/types"
)

// maxPublishSize bounds inbound publish bodies. Matches the template
// maxMessageSize so no valid node info is ever cut off.
const maxPublishSize = 10485760

// getNetworkMap serves the latest signed map exactly as stored. The
// Cache-Control header tells participants how long to poll-cache it.
func (s *Server) getNetworkMap(w http.ResponseWriter, r *http.Request) {
	data, err := s.stores.NetworkMap.Get(storage.KeyLatestNetworkMap)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Cache-Control", fmt.Sprintf("max-age=%d", int(s.opts.CacheTimeout.Seconds())))
	w.Write(data)
}

// publishNodeInfo accepts a signed node info and registers it through the
// processor. The response is deferred until the registration has actually
// been applied or rejected.
func (s *Server) publishNodeInfo(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxPublishSize+1))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	if len(body) > maxPublishSize {
		http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
		return
	}

	signed, err := types.DecodeSignedNodeInfo(body)
	if err != nil {
		metrics.PublishRejectionsTotal.WithLabelValues("malformed").Inc()
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.processor.AddNode(signed).Wait(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// ackParameters records a participant's acknowledgement of a parameters
// update: a parameters hash signed by one of the node's identity keys.
func (s *Server) ackParameters(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxPublishSize))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	blob, err := types.DecodeSignedBlob(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := security.VerifyDetached(blob.PublicKey, blob.Raw, blob.Signature); err != nil {
		s.writeError(w, err)
		return
	}
	hash, err := types.ParseHash(string(blob.Raw))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	signer := types.HashBytes(blob.PublicKey)
	s.logger.Info().Str("parameters_hash", string(hash)).
		Str("signer", string(signer)).Msg("parameters update acknowledged")
	s.broker.Publish(events.New(events.EventParametersAcked, "parameters update acknowledged", map[string]string{
		"parameters_hash": string(hash),
		"signer":          string(signer),
	}))
	w.WriteHeader(http.StatusOK)
}

// getNodeInfo serves a stored signed node info by content address.
func (s *Server) getNodeInfo(w http.ResponseWriter, r *http.Request) {
	s.serveBlob(w, s.stores.NodeInfos, chi.URLParam(r, "hash"))
}

// getNetworkParameters serves stored signed parameters by content address.
// Both current and superseded parameters remain addressable.
func (s *Server) getNetworkParameters(w http.ResponseWriter, r *http.Request) {
	s.serveBlob(w, s.stores.NetworkParameters, chi.URLParam(r, "hash"))
}

func (s *Server) serveBlob(w http.ResponseWriter, store storage.BlobStore, rawHash string) {
	hash, err := types.ParseHash(rawHash)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	data, err := store.Get(string(hash))
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(data)
}

// writeJSON is the admin API response helper.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response")
	}
}
