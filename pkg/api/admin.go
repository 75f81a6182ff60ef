package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/veritasnet/atlas/pkg/params"
	"github.com/veritasnet/atlas/pkg/security"
	"github.com/veritasnet/atlas/pkg/types"
)

// parametersView is the admin representation of the active parameters.
type parametersView struct {
	Hash          types.Hash              `json:"hash"`
	Parameters    types.NetworkParameters `json:"parameters"`
	PendingUpdate *types.ParametersUpdate `json:"pendingUpdate,omitempty"`
}

// notaryView lists a notary with the name hash admin deletes address it by.
type notaryView struct {
	NameHash   types.Hash `json:"nameHash"`
	Name       string     `json:"name"`
	Validating bool       `json:"validating"`
}

// nodeView summarizes a registered node for the admin listing.
type nodeView struct {
	Hash            types.Hash `json:"hash"`
	Names           []string   `json:"names"`
	Addresses       []string   `json:"addresses"`
	PlatformVersion int        `json:"platformVersion"`
}

func (s *Server) adminGetParameters(w http.ResponseWriter, r *http.Request) {
	current, hash, err := s.processor.CurrentParameters()
	if err != nil {
		s.writeError(w, err)
		return
	}
	pending, err := s.processor.PendingUpdate()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, parametersView{
		Hash:          hash,
		Parameters:    *current,
		PendingUpdate: pending,
	})
}

func (s *Server) adminListNotaries(w http.ResponseWriter, r *http.Request) {
	current, _, err := s.processor.CurrentParameters()
	if err != nil {
		s.writeError(w, err)
		return
	}
	views := make([]notaryView, 0, len(current.Notaries))
	for _, n := range current.Notaries {
		views = append(views, notaryView{
			NameHash:   n.Identity.NameHash(),
			Name:       n.Identity.Name,
			Validating: n.Validating,
		})
	}
	s.writeJSON(w, http.StatusOK, views)
}

// adminPostNotary registers the first legal identity of a signed node info as
// a notary. The node info signature is verified before the identity is
// trusted.
func (s *Server) adminPostNotary(validating bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxPublishSize))
		if err != nil {
			http.Error(w, "failed to read body", http.StatusBadRequest)
			return
		}
		signed, err := types.DecodeSignedNodeInfo(body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		ni, err := security.VerifyNodeInfo(signed)
		if err != nil {
			s.writeError(w, err)
			return
		}

		notary := types.NotaryInfo{
			Identity:   ni.LegalIdentities[0],
			Validating: validating,
		}
		change := params.AddNotary{Notary: notary}
		desc := fmt.Sprintf("add notary %s", notary.Identity.Name)
		if err := s.processor.UpdateParameters(params.ApplyChange(change), desc).Wait(r.Context()); err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, notaryView{
			NameHash:   notary.Identity.NameHash(),
			Name:       notary.Identity.Name,
			Validating: notary.Validating,
		})
	}
}

func (s *Server) adminDeleteNotary(w http.ResponseWriter, r *http.Request) {
	nameHash, err := types.ParseHash(chi.URLParam(r, "nameHash"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	change := params.RemoveNotary{NameHash: nameHash}
	desc := fmt.Sprintf("remove notary %s", nameHash)
	if err := s.processor.UpdateParameters(params.ApplyChange(change), desc).Wait(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// adminGetWhitelist renders the whitelist as one "fqn:hash" line per approved
// implementation, the same format POST and PUT accept.
func (s *Server) adminGetWhitelist(w http.ResponseWriter, r *http.Request) {
	current, _, err := s.processor.CurrentParameters()
	if err != nil {
		s.writeError(w, err)
		return
	}

	fqns := make([]string, 0, len(current.Whitelist))
	for fqn := range current.Whitelist {
		fqns = append(fqns, fqn)
	}
	sort.Strings(fqns)

	var b strings.Builder
	for _, fqn := range fqns {
		for _, h := range current.Whitelist[fqn] {
			fmt.Fprintf(&b, "%s:%s\n", fqn, h)
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, b.String())
}

func (s *Server) adminAppendWhitelist(w http.ResponseWriter, r *http.Request) {
	entries, err := readWhitelist(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	change := params.AppendWhitelist{Entries: entries}
	if err := s.processor.UpdateParameters(params.ApplyChange(change), "append whitelist").Wait(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) adminReplaceWhitelist(w http.ResponseWriter, r *http.Request) {
	entries, err := readWhitelist(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	change := params.ReplaceWhitelist{Entries: entries}
	if err := s.processor.UpdateParameters(params.ApplyChange(change), "replace whitelist").Wait(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) adminClearWhitelist(w http.ResponseWriter, r *http.Request) {
	change := params.ClearWhitelist{}
	if err := s.processor.UpdateParameters(params.ApplyChange(change), "clear whitelist").Wait(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// readWhitelist parses a text body of "fqn:sha256hex" lines. The contract
// name may itself contain colons, so the hash is split off the last one.
func readWhitelist(r *http.Request) (map[string][]types.Hash, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxPublishSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	entries := make(map[string][]types.Hash)
	for _, line := range strings.Split(string(body), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		sep := strings.LastIndex(line, ":")
		if sep <= 0 {
			return nil, fmt.Errorf("malformed whitelist entry %q", line)
		}
		fqn := line[:sep]
		hash, err := types.ParseHash(line[sep+1:])
		if err != nil {
			return nil, fmt.Errorf("malformed whitelist entry %q: %w", line, err)
		}
		entries[fqn] = append(entries[fqn], hash)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("empty whitelist body")
	}
	return entries, nil
}

func (s *Server) adminListNodes(w http.ResponseWriter, r *http.Request) {
	stored, err := s.stores.NodeInfos.GetAll()
	if err != nil {
		s.writeError(w, err)
		return
	}

	views := make([]nodeView, 0, len(stored))
	for key, data := range stored {
		signed, err := types.DecodeSignedNodeInfo(data)
		if err != nil {
			s.logger.Warn().Str("key", key).Err(err).Msg("skipping undecodable stored node info")
			continue
		}
		var info types.NodeInfo
		if err := json.Unmarshal(signed.Raw, &info); err != nil {
			s.logger.Warn().Str("key", key).Err(err).Msg("skipping undecodable stored node info")
			continue
		}
		names := make([]string, 0, len(info.LegalIdentities))
		for _, id := range info.LegalIdentities {
			names = append(names, id.Name)
		}
		views = append(views, nodeView{
			Hash:            types.Hash(key),
			Names:           names,
			Addresses:       info.Addresses,
			PlatformVersion: info.PlatformVersion,
		})
	}
	sort.Slice(views, func(i, j int) bool { return views[i].Hash < views[j].Hash })
	s.writeJSON(w, http.StatusOK, views)
}

func (s *Server) adminDeleteNode(w http.ResponseWriter, r *http.Request) {
	hash, err := types.ParseHash(chi.URLParam(r, "hash"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.processor.DeleteNode(hash).Wait(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
