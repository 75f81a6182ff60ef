package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/veritasnet/atlas/pkg/events"
	"github.com/veritasnet/atlas/pkg/log"
	"github.com/veritasnet/atlas/pkg/params"
	"github.com/veritasnet/atlas/pkg/security"
	"github.com/veritasnet/atlas/pkg/storage"
	"github.com/veritasnet/atlas/pkg/types"
	"github.com/veritasnet/atlas/pkg/watcher"
)

var (
	// ErrNameConflict rejects a publish whose identity name is already
	// registered with a different owning key.
	ErrNameConflict = errors.New("identity name conflict")
	// ErrStopped is returned for work submitted after shutdown.
	ErrStopped = errors.New("processor stopped")
)

// Config holds the processor's timing and notary watch settings.
type Config struct {
	// NotaryDir is the watched notary certificate directory; empty disables
	// the watcher.
	NotaryDir string
	// NotaryPattern selects certificate files in NotaryDir.
	NotaryPattern string
	// WatchInterval is the directory rescan period.
	WatchInterval time.Duration
	// ParamUpdateDelay is the default activation delay for parameter
	// updates. Zero or negative means activate immediately.
	ParamUpdateDelay time.Duration
	// NetworkMapDelay debounces map rebuilds. Zero means rebuild inline.
	NetworkMapDelay time.Duration
}

// Stores groups the five collections the processor owns. Before Start only
// the boot migration may touch them; afterwards all writes go through the
// worker.
type Stores struct {
	NetworkParameters storage.BlobStore
	NetworkMap        storage.BlobStore
	NodeInfos         storage.BlobStore
	ParametersUpdates storage.TextStore
	Texts             storage.TextStore
}

type task struct {
	name   string
	fn     func() error
	future *Future
}

// Processor is the single-writer core of the network map service. Every
// state mutation runs on one worker goroutine: node registrations, parameter
// updates, map rebuilds, and timer-driven activations all serialize through
// its task queue, so no two mutations ever interleave. Public methods return
// a Future for the enqueued work.
type Processor struct {
	cfg       Config
	stores    Stores
	authority *security.Authority
	broker    *events.Broker
	logger    zerolog.Logger
	now       func() time.Time

	tasks    chan *task
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	notary   *watcher.DirWatcher

	// Worker-goroutine state: touched only from tasks.
	rebuildTimer    *time.Timer
	activationTimer *time.Timer
}

// New creates a processor. The authority key must be generated or loaded
// before Start.
func New(cfg Config, stores Stores, authority *security.Authority, broker *events.Broker) (*Processor, error) {
	switch {
	case stores.NetworkParameters == nil, stores.NetworkMap == nil,
		stores.NodeInfos == nil, stores.ParametersUpdates == nil, stores.Texts == nil:
		return nil, errors.New("processor: all stores must be set")
	case authority == nil:
		return nil, errors.New("processor: signing authority is not set")
	case broker == nil:
		return nil, errors.New("processor: event broker is not set")
	}

	return &Processor{
		cfg:       cfg,
		stores:    stores,
		authority: authority,
		broker:    broker,
		logger:    log.WithComponent("processor"),
		now:       time.Now,
		tasks:     make(chan *task, 64),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}, nil
}

// Start captures the signing key, establishes initial parameters and map,
// and installs the notary directory watcher. A failure to establish the
// initial state is fatal and returned.
func (p *Processor) Start() error {
	if !p.authority.IsInitialized() {
		return security.ErrNotInitialized
	}

	go p.run()

	if err := p.submit("create-network-parameters", p.createNetworkParameters).Wait(context.Background()); err != nil {
		return fmt.Errorf("failed to establish network parameters: %w", err)
	}
	if err := p.submit("create-network-map", p.createNetworkMap).Wait(context.Background()); err != nil {
		return fmt.Errorf("failed to build initial network map: %w", err)
	}

	if p.cfg.NotaryDir != "" {
		p.notary = watcher.New(p.cfg.NotaryDir, p.cfg.NotaryPattern, p.cfg.WatchInterval, p.notaryDirChanged)
		p.notary.Start()
	}

	p.logger.Info().Msg("network map processor started")
	return nil
}

// Stop halts the watcher, drains nothing, and stops the worker. Pending
// futures fail with ErrStopped. Safe to call more than once.
func (p *Processor) Stop() {
	p.stopOnce.Do(func() {
		if p.notary != nil {
			p.notary.Stop()
		}
		close(p.quit)
	})
	<-p.done
}

func (p *Processor) run() {
	defer close(p.done)
	defer p.stopTimers()

	for {
		select {
		case t := <-p.tasks:
			p.execute(t)
		case <-p.quit:
			return
		}
	}
}

func (p *Processor) execute(t *task) {
	err := t.fn()
	if err != nil {
		// The task's future fails but the worker stays healthy.
		p.logger.Error().Err(err).Str("task", t.name).Msg("task failed")
	}
	t.future.complete(err)
}

func (p *Processor) submit(name string, fn func() error) *Future {
	f := newFuture()
	select {
	case p.tasks <- &task{name: name, fn: fn, future: f}:
		return f
	case <-p.quit:
		return failedFuture(ErrStopped)
	}
}

func (p *Processor) stopTimers() {
	if p.rebuildTimer != nil {
		p.rebuildTimer.Stop()
		p.rebuildTimer = nil
	}
	if p.activationTimer != nil {
		p.activationTimer.Stop()
		p.activationTimer = nil
	}
}

// AddNode verifies and stores a published node info, then schedules a map
// rebuild. Identity names already registered with a different owning key
// reject the publish with ErrNameConflict.
func (p *Processor) AddNode(signed *types.SignedNodeInfo) *Future {
	return p.submit("add-node", func() error {
		return p.addNode(signed)
	})
}

func (p *Processor) addNode(signed *types.SignedNodeInfo) error {
	ni, err := security.VerifyNodeInfo(signed)
	if err != nil {
		return err
	}

	key := string(signed.Hash())

	// Flatten the registered identities. Serialized execution makes this
	// read-modify-write race-free.
	stored, err := p.stores.NodeInfos.GetAll()
	if err != nil {
		return fmt.Errorf("failed to enumerate node infos: %w", err)
	}
	owners := make(map[string]types.Hash)
	for k, data := range stored {
		if k == key {
			continue // re-publish of the identical payload
		}
		sni, err := types.DecodeSignedNodeInfo(data)
		if err != nil {
			p.logger.Warn().Str("key", k).Err(err).Msg("skipping undecodable stored node info")
			continue
		}
		var info types.NodeInfo
		if err := json.Unmarshal(sni.Raw, &info); err != nil {
			p.logger.Warn().Str("key", k).Err(err).Msg("skipping undecodable stored node info")
			continue
		}
		for _, id := range info.LegalIdentities {
			owners[id.Name] = types.HashBytes(id.PublicKey)
		}
	}

	var conflicts []string
	for _, id := range ni.LegalIdentities {
		if owner, ok := owners[id.Name]; ok && owner != types.HashBytes(id.PublicKey) {
			conflicts = append(conflicts, id.Name)
		}
	}
	if len(conflicts) > 0 {
		sort.Strings(conflicts)
		return fmt.Errorf("%w: already registered with a different key: %s",
			ErrNameConflict, strings.Join(conflicts, ", "))
	}

	data, err := signed.Encode()
	if err != nil {
		return err
	}
	if err := p.stores.NodeInfos.Put(key, data); err != nil {
		return fmt.Errorf("failed to store node info: %w", err)
	}

	p.broker.Publish(events.New(events.EventNodePublished, "node info published", map[string]string{
		"node_hash": key,
	}))
	return p.scheduleNetworkMapRebuild()
}

// DeleteNode removes a stored node info by hash and schedules a rebuild.
func (p *Processor) DeleteNode(hash types.Hash) *Future {
	return p.submit("delete-node", func() error {
		if err := p.stores.NodeInfos.Delete(string(hash)); err != nil {
			return fmt.Errorf("failed to delete node info: %w", err)
		}
		p.broker.Publish(events.New(events.EventNodeDeleted, "node info deleted", map[string]string{
			"node_hash": string(hash),
		}))
		return p.scheduleNetworkMapRebuild()
	})
}

// UpdateParameters applies a transform to the current parameters with the
// default activation delay.
func (p *Processor) UpdateParameters(transform params.Transform, description string) *Future {
	return p.submit("update-network-parameters", func() error {
		return p.updateParameters(transform, description, time.Time{})
	})
}

// UpdateParametersAt applies a transform with an explicit activation time.
// An activation at or before now takes effect immediately.
func (p *Processor) UpdateParametersAt(transform params.Transform, description string, activation time.Time) *Future {
	return p.submit("update-network-parameters", func() error {
		return p.updateParameters(transform, description, activation)
	})
}

func (p *Processor) updateParameters(transform params.Transform, description string, activation time.Time) error {
	now := p.now()
	if activation.IsZero() {
		activation = now.Add(p.cfg.ParamUpdateDelay)
	}

	current, _, err := p.currentParameters()
	if err != nil {
		return err
	}

	next := transform(*current, now)
	raw, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("failed to marshal parameters: %w", err)
	}
	signed, err := p.authority.Sign(raw)
	if err != nil {
		return err
	}
	encoded, err := signed.Encode()
	if err != nil {
		return err
	}
	hash := signed.Hash()
	if err := p.stores.NetworkParameters.Put(string(hash), encoded); err != nil {
		return fmt.Errorf("failed to store parameters: %w", err)
	}

	p.broker.Publish(events.New(events.EventParametersUpdated, description, map[string]string{
		"parameters_hash": string(hash),
		"epoch":           strconv.Itoa(next.Epoch),
		"deadline":        activation.Format(time.RFC3339),
	}))

	if !activation.After(now) {
		// Immediate activation: flip the pointer and rebuild in place. Any
		// previously scheduled update is superseded; leaving it behind would
		// let its timer later move the pointer to parameters derived from an
		// older epoch.
		if err := p.stores.Texts.Put(storage.KeyCurrentParameters, string(hash)); err != nil {
			return fmt.Errorf("failed to advance current parameters: %w", err)
		}
		if err := p.stores.ParametersUpdates.Delete(storage.KeyNextParametersUpdate); err != nil {
			return fmt.Errorf("failed to clear superseded update: %w", err)
		}
		p.logger.Info().Str("hash", string(hash)).Int("epoch", next.Epoch).
			Str("description", description).Msg("parameters updated and activated")
		return p.createNetworkMap()
	}

	update := types.ParametersUpdate{
		NewParametersHash: hash,
		Description:       description,
		UpdateDeadline:    activation,
	}
	data, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("failed to marshal pending update: %w", err)
	}
	if err := p.stores.ParametersUpdates.Put(storage.KeyNextParametersUpdate, string(data)); err != nil {
		return fmt.Errorf("failed to store pending update: %w", err)
	}

	p.logger.Info().Str("hash", string(hash)).Int("epoch", next.Epoch).
		Time("deadline", activation).Str("description", description).
		Msg("parameters update scheduled")
	return p.scheduleNetworkMapRebuild()
}

// scheduleNetworkMapRebuild debounces rebuilds: rapid publishes coalesce
// into a single signed map. Worker-goroutine only.
func (p *Processor) scheduleNetworkMapRebuild() error {
	if p.rebuildTimer != nil {
		p.rebuildTimer.Stop()
		p.rebuildTimer = nil
	}
	if p.cfg.NetworkMapDelay <= 0 {
		return p.createNetworkMap()
	}

	delay := p.cfg.NetworkMapDelay
	if delay < time.Millisecond {
		delay = time.Millisecond
	}
	p.rebuildTimer = time.AfterFunc(delay, func() {
		p.submit("rebuild-network-map", p.createNetworkMap)
	})
	return nil
}

// createNetworkParameters stores the template parameters on first boot.
// Subsequent boots find the current-parameters pointer and do nothing.
func (p *Processor) createNetworkParameters() error {
	_, err := p.stores.Texts.Get(storage.KeyCurrentParameters)
	if err == nil {
		return nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("failed to read current parameters pointer: %w", err)
	}

	template := params.Template(p.now())
	raw, err := json.Marshal(template)
	if err != nil {
		return fmt.Errorf("failed to marshal template parameters: %w", err)
	}
	signed, err := p.authority.Sign(raw)
	if err != nil {
		return err
	}
	encoded, err := signed.Encode()
	if err != nil {
		return err
	}
	hash := signed.Hash()
	if err := p.stores.NetworkParameters.Put(string(hash), encoded); err != nil {
		return fmt.Errorf("failed to store template parameters: %w", err)
	}
	if err := p.stores.Texts.Put(storage.KeyCurrentParameters, string(hash)); err != nil {
		return fmt.Errorf("failed to set current parameters pointer: %w", err)
	}

	p.logger.Info().Str("hash", string(hash)).Msg("initial network parameters created")
	return nil
}

// createNetworkMap signs and stores a fresh map from the processor's view of
// state, then arms the activation timer if an update is pending.
// Worker-goroutine only.
func (p *Processor) createNetworkMap() error {
	keys, err := p.stores.NodeInfos.GetKeys()
	if err != nil {
		return fmt.Errorf("failed to list node infos: %w", err)
	}
	hashes := make([]types.Hash, len(keys))
	for i, k := range keys {
		hashes[i] = types.Hash(k)
	}

	pending, err := p.pendingUpdate()
	if err != nil {
		return err
	}

	current, err := p.stores.Texts.Get(storage.KeyCurrentParameters)
	if err != nil {
		return fmt.Errorf("failed to read current parameters pointer: %w", err)
	}

	nm := types.NetworkMap{
		NodeInfoHashes:       hashes,
		NetworkParameterHash: types.Hash(current),
		ParametersUpdate:     pending,
	}
	raw, err := json.Marshal(nm)
	if err != nil {
		return fmt.Errorf("failed to marshal network map: %w", err)
	}
	signed, err := p.authority.Sign(raw)
	if err != nil {
		return err
	}
	encoded, err := signed.Encode()
	if err != nil {
		return err
	}
	if err := p.stores.NetworkMap.Put(storage.KeyLatestNetworkMap, encoded); err != nil {
		return fmt.Errorf("failed to store network map: %w", err)
	}

	p.logger.Info().Int("nodes", len(hashes)).Str("parameters", current).
		Bool("pending_update", pending != nil).Msg("network map rebuilt")

	meta := map[string]string{
		"node_count":      strconv.Itoa(len(hashes)),
		"parameters_hash": current,
	}
	if pending != nil {
		meta["pending_hash"] = string(pending.NewParametersHash)
	}
	p.broker.Publish(events.New(events.EventMapRebuilt, "network map rebuilt", meta))

	p.armActivationTimer(pending)
	return nil
}

// armActivationTimer replaces any previously armed activation timer. With no
// pending update, none is armed.
func (p *Processor) armActivationTimer(pending *types.ParametersUpdate) {
	if p.activationTimer != nil {
		p.activationTimer.Stop()
		p.activationTimer = nil
	}
	if pending == nil {
		return
	}

	delay := time.Until(pending.UpdateDeadline)
	if delay < time.Millisecond {
		delay = time.Millisecond
	}
	p.activationTimer = time.AfterFunc(delay, func() {
		p.submit("activate-parameters", p.activatePendingUpdate)
	})
}

// activatePendingUpdate advances current-parameters to whatever the pending
// pointer holds when the timer fires. A stale timer whose update was
// replaced applies the newer one; a timer with no pending update is a no-op.
func (p *Processor) activatePendingUpdate() error {
	pending, err := p.pendingUpdate()
	if err != nil {
		return err
	}
	if pending == nil {
		return nil
	}

	if err := p.stores.Texts.Put(storage.KeyCurrentParameters, string(pending.NewParametersHash)); err != nil {
		return fmt.Errorf("failed to advance current parameters: %w", err)
	}
	if err := p.stores.ParametersUpdates.Delete(storage.KeyNextParametersUpdate); err != nil {
		return fmt.Errorf("failed to clear pending update: %w", err)
	}

	p.logger.Info().Str("hash", string(pending.NewParametersHash)).
		Str("description", pending.Description).Msg("parameters update activated")
	p.broker.Publish(events.New(events.EventParametersActivated, pending.Description, map[string]string{
		"parameters_hash": string(pending.NewParametersHash),
	}))

	return p.createNetworkMap()
}

func (p *Processor) pendingUpdate() (*types.ParametersUpdate, error) {
	data, err := p.stores.ParametersUpdates.GetOrDefault(storage.KeyNextParametersUpdate, "")
	if err != nil {
		return nil, fmt.Errorf("failed to read pending update: %w", err)
	}
	if data == "" {
		return nil, nil
	}
	var update types.ParametersUpdate
	if err := json.Unmarshal([]byte(data), &update); err != nil {
		return nil, fmt.Errorf("corrupt pending update: %w", err)
	}
	return &update, nil
}

func (p *Processor) currentParameters() (*types.NetworkParameters, types.Hash, error) {
	hash, err := p.stores.Texts.Get(storage.KeyCurrentParameters)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read current parameters pointer: %w", err)
	}
	data, err := p.stores.NetworkParameters.Get(hash)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read current parameters: %w", err)
	}
	signed, err := types.DecodeSignedBlob(data)
	if err != nil {
		return nil, "", err
	}
	payload, err := p.authority.Verify(signed)
	if err != nil {
		return nil, "", fmt.Errorf("stored parameters failed verification: %w", err)
	}
	var np types.NetworkParameters
	if err := json.Unmarshal(payload, &np); err != nil {
		return nil, "", fmt.Errorf("corrupt stored parameters: %w", err)
	}
	return &np, types.Hash(hash), nil
}

// CurrentParameters returns the active parameters and their hash. Read-only;
// safe from any goroutine.
func (p *Processor) CurrentParameters() (*types.NetworkParameters, types.Hash, error) {
	return p.currentParameters()
}

// PendingUpdate returns the scheduled update, or nil. Read-only.
func (p *Processor) PendingUpdate() (*types.ParametersUpdate, error) {
	return p.pendingUpdate()
}

// notaryDirChanged runs on the watcher goroutine; the actual mutation is
// enqueued and waited on, so it cannot overtake an in-flight admin update.
func (p *Processor) notaryDirChanged() {
	notaries, err := security.LoadNotariesFromDir(p.cfg.NotaryDir, p.cfg.NotaryPattern)
	if err != nil {
		p.logger.Error().Err(err).Msg("failed to load notary certificates")
		return
	}

	// The first scan always fires; don't burn an epoch when the derived set
	// matches the current parameters.
	if current, _, err := p.currentParameters(); err == nil && sameNotaries(current.Notaries, notaries) {
		p.logger.Debug().Msg("notary certificates rescanned, set unchanged")
		return
	}

	fut := p.UpdateParameters(params.SetNotaries(notaries), "notaries changed")
	if err := fut.Wait(context.Background()); err != nil {
		if !errors.Is(err, ErrStopped) {
			p.logger.Error().Err(err).Msg("notary update failed")
		}
		return
	}

	p.broker.Publish(events.New(events.EventNotariesChanged, "notary set changed", map[string]string{
		"notary_count": strconv.Itoa(len(notaries)),
	}))
}

func sameNotaries(a, b []types.NotaryInfo) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]types.NotaryInfo, len(a))
	for _, n := range a {
		seen[n.Identity.Name] = n
	}
	for _, n := range b {
		have, ok := seen[n.Identity.Name]
		if !ok || have.Validating != n.Validating ||
			types.HashBytes(have.Identity.PublicKey) != types.HashBytes(n.Identity.PublicKey) {
			return false
		}
	}
	return true
}
