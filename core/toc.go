package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

const defaultSubmitTimeout = 10 * time.Second

// ConsensusEnabled carries the proposal-channel sender and the
// first-peer flag NewToC needs when consensus is active. A nil
// *ConsensusEnabled means the ToC applies every operation locally,
// bypassing Raft entirely (single-peer / test mode).
type ConsensusEnabled struct {
	ProposalCh chan<- []byte
	FirstPeer  bool
}

// ToC is C8: the per-peer Table of Contents, composing C1-C7 and exposing
// the data-plane and control-plane API.
type ToC struct {
	log *logrus.Logger

	storageCfg *StorageConfig

	registry    *Registry
	aliases     *AliasStore
	wal         *MetaWAL
	raftState   *RaftPersistentState
	pipeline    *Pipeline
	correlation *CorrelationMap

	searchExec *Executor
	mgmtExec   *Executor

	proposalCh chan<- []byte
}

// NewToC performs the synchronous construction sequence of §4.8: create
// collections/, load every existing collection via the management
// executor, open the alias store, the metadata WAL, and persistent raft
// state.
func NewToC(cfg *StorageConfig, searchExec *Executor, consensus *ConsensusEnabled, log *logrus.Logger) (*ToC, error) {
	if log == nil {
		log = logrus.New()
	}

	collectionsDir := filepath.Join(cfg.StoragePath, "collections")
	if err := os.MkdirAll(collectionsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create collections dir: %w", err)
	}

	pipeline := NewPipeline(log, cfg.Optimizers.MaxOptimizationThreads, cfg.Optimizers.FlushInterval())

	t := &ToC{
		log:         log,
		storageCfg:  cfg,
		registry:    NewRegistry(),
		pipeline:    pipeline,
		correlation: NewCorrelationMap(),
		searchExec:  searchExec,
		mgmtExec:    NewExecutor(1),
	}

	entries, err := os.ReadDir(collectionsDir)
	if err != nil {
		return nil, fmt.Errorf("list collections dir: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		_, err := t.mgmtExec.Submit(func() (interface{}, error) {
			col, err := LoadCollection(filepath.Join(collectionsDir, name), name, pipeline)
			if err != nil {
				return nil, err
			}
			return nil, t.registry.Insert(name, col)
		})
		if err != nil {
			return nil, fmt.Errorf("load collection %s: %w", name, err)
		}
	}

	aliasStore, err := OpenAliasStore(filepath.Join(cfg.StoragePath, "aliases"))
	if err != nil {
		return nil, err
	}
	t.aliases = aliasStore

	wal, err := OpenMetaWAL(filepath.Join(cfg.StoragePath, "collections_meta_wal"))
	if err != nil {
		return nil, err
	}
	t.wal = wal

	var firstPeer *bool
	if consensus != nil {
		fp := consensus.FirstPeer
		firstPeer = &fp
	}
	raftState, err := LoadOrInit(filepath.Join(cfg.StoragePath, "raft_state"), firstPeer)
	if err != nil {
		return nil, err
	}
	t.raftState = raftState

	if consensus != nil {
		t.proposalCh = consensus.ProposalCh
	}

	pipeline.Start(context.Background())
	return t, nil
}

// Resolve looks up name in the alias store; if present, substitutes the
// collection name it points at; then validates the real name is
// registered, failing with CollectionNotFound otherwise.
func (t *ToC) Resolve(name string) (string, error) {
	t.registry.RLock()
	defer t.registry.RUnlock()
	real := name
	if target, ok := t.aliases.Resolve(name); ok {
		real = target
	}
	if _, ok := t.registry.GetLocked(real); !ok {
		return "", errCollectionNotFound(real)
	}
	return real, nil
}

// GetCollection resolves name and returns its handle.
func (t *ToC) GetCollection(name string) (*Collection, error) {
	real, err := t.Resolve(name)
	if err != nil {
		return nil, err
	}
	col, _ := t.registry.Get(real)
	return col, nil
}

// AllCollections lists every registered collection name.
func (t *ToC) AllCollections() []string {
	return t.registry.Names()
}

// AllCollectionsSync is a synchronous variant for non-async callers,
// supplementing the original's all_collections_sync for symmetry with the
// synchronous Raft-storage callbacks (§E.3).
func (t *ToC) AllCollectionsSync() []string {
	return t.AllCollections()
}

// CollectionAliases lists every alias pointing at name.
func (t *ToC) CollectionAliases(name string) []string {
	return t.aliases.AliasesForCollection(name)
}

// ThisPeerID returns this peer's frozen identity.
func (t *ToC) ThisPeerID() uint64 { return t.raftState.ThisPeerID() }

// PeerAddressByID returns a copy of the peer address map.
func (t *ToC) PeerAddressByID() map[uint64]string { return t.raftState.PeerAddressByID() }

// AddPeer records a peer's URI directly (bypassing consensus; used when
// this peer is itself applying an already-committed AddPeer entry).
func (t *ToC) AddPeer(id uint64, uri string) error {
	return t.raftState.InsertPeer(id, uri)
}

// Submit is the control-plane entry point (§4.8). If consensus is not
// wired, op is applied locally. Otherwise it is proposed to Raft and the
// caller blocks (up to waitTimeout, defaulting to 10s when nil) for the
// correlation waiter to resolve.
func (t *ToC) Submit(op *ConsensusOperation, waitTimeout *time.Duration) (bool, error) {
	if t.proposalCh == nil {
		return t.performMeta(op)
	}

	data, err := op.Encode()
	if err != nil {
		return false, errService("encode consensus operation", err)
	}
	fp, err := op.Fingerprint()
	if err != nil {
		return false, errService("fingerprint consensus operation", err)
	}

	waiter := t.correlation.Register(fp)

	select {
	case t.proposalCh <- data:
	default:
		t.correlation.Take(fp)
		return false, errService("propose operation: proposal channel full", nil)
	}

	timeout := defaultSubmitTimeout
	if waitTimeout != nil {
		timeout = *waitTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case result, ok := <-waiter:
		if !ok {
			return false, errService("submit: correlation channel closed", nil)
		}
		if result.err != nil {
			return false, result.err
		}
		applied, _ := result.value.(bool)
		return applied, nil
	case <-timer.C:
		return false, errService("submit: timeout waiting for consensus commit", nil)
	}
}

// ApplyNormalEntry decodes a Normal entry's payload, removes its
// correlation-map entry if any, executes it on the management executor,
// and delivers the outcome to the waiter (a delivery failure is logged,
// not fatal).
func (t *ToC) ApplyNormalEntry(data []byte) (bool, error) {
	op, err := DecodeConsensusOperation(data)
	if err != nil {
		return false, err
	}
	fp, fpErr := op.Fingerprint()

	value, applyErr := t.mgmtExec.Submit(func() (interface{}, error) {
		return t.performMeta(op)
	})
	applied, _ := value.(bool)

	if fpErr == nil {
		if !t.correlation.Resolve(fp, applied, applyErr) && t.log != nil {
			t.log.WithField("kind", op.Kind).Debug("apply_normal_entry: no waiter registered for operation")
		}
	}
	return applied, applyErr
}

// performMeta dispatches a decoded ConsensusOperation to the matching
// collection/alias mutation. AddPeer is handled directly against C2;
// everything else goes through the registry/alias store per §4.8.
func (t *ToC) performMeta(op *ConsensusOperation) (bool, error) {
	switch op.Kind {
	case OpCollectionCreate:
		return t.createCollection(op.Create)
	case OpCollectionUpdate:
		return t.updateCollection(op.Update)
	case OpCollectionDelete:
		return t.deleteCollection(op.Delete)
	case OpChangeAliases:
		return t.changeAliases(op.Aliases)
	case OpAddPeer:
		if op.AddPeer == nil {
			return false, errBadInput("add_peer operation missing payload")
		}
		if err := t.raftState.InsertPeer(op.AddPeer.PeerID, op.AddPeer.URI); err != nil {
			return false, err
		}
		return true, nil
	default:
		return false, errBadInput("unknown consensus operation kind")
	}
}

func (t *ToC) createCollection(op *CreateCollectionOp) (bool, error) {
	if op == nil {
		return false, errBadInput("create operation missing payload")
	}
	if op.Params.ShardNumber == 0 {
		return false, errBadInput("shard_number must be >= 1")
	}
	if _, exists := t.registry.Get(op.Name); exists {
		return false, errCollectionAlreadyExists(op.Name)
	}

	wal := op.WAL.Update(t.storageCfg.WAL)
	hnsw := op.Hnsw.Update(t.storageCfg.HnswIndex)
	optimizers := op.Optimizers.Update(t.storageCfg.Optimizers)

	dir := filepath.Join(t.storageCfg.StoragePath, "collections", op.Name)
	col, err := NewCollection(dir, op.Name, op.Params, wal, optimizers, hnsw, t.pipeline)
	if err != nil {
		return false, err
	}

	// Double-check under the registry's write lock: Insert re-validates
	// not-exists itself, closing the race window with a concurrent create.
	if err := t.registry.Insert(op.Name, col); err != nil {
		return false, err
	}
	return true, nil
}

func (t *ToC) updateCollection(op *UpdateCollectionOp) (bool, error) {
	if op == nil {
		return false, errBadInput("update operation missing payload")
	}
	col, ok := t.registry.Get(op.Name)
	if !ok {
		return false, errCollectionNotFound(op.Name)
	}
	if err := col.UpdateOptimizers(op.Optimizers); err != nil {
		return false, err
	}
	return true, nil
}

func (t *ToC) deleteCollection(op *DeleteCollectionOp) (bool, error) {
	if op == nil {
		return false, errBadInput("delete operation missing payload")
	}
	col, ok := t.registry.Remove(op.Name)
	if !ok {
		return false, nil
	}
	if err := col.PreDrop(context.Background()); err != nil {
		return false, err
	}
	if err := t.aliases.DeleteAliasesForCollection(op.Name); err != nil {
		return false, err
	}
	if err := os.RemoveAll(col.Dir()); err != nil {
		return false, errService("remove collection directory", err)
	}
	return true, nil
}

// changeAliases holds the registry write lock for the whole action
// sequence (§4.8): a multi-action swap must never let a concurrent
// Resolve observe an alias as undefined between two actions that, taken
// together, keep it defined throughout.
func (t *ToC) changeAliases(op *ChangeAliasesOp) (bool, error) {
	if op == nil {
		return false, errBadInput("change_aliases operation missing payload")
	}
	t.registry.Lock()
	defer t.registry.Unlock()
	for _, action := range op.Actions {
		switch action.Kind {
		case AliasActionCreate:
			if _, exists := t.registry.GetLocked(action.Alias); exists {
				return false, errCollectionAlreadyExists(action.Alias)
			}
			if _, exists := t.registry.GetLocked(action.Collection); !exists {
				return false, errCollectionNotFound(action.Collection)
			}
			if err := t.aliases.CreateAlias(action.Alias, action.Collection); err != nil {
				return false, err
			}
		case AliasActionDelete:
			if err := t.aliases.DeleteAlias(action.Alias); err != nil {
				return false, err
			}
		case AliasActionRename:
			if err := t.aliases.RenameAlias(action.Alias, action.NewAlias); err != nil {
				return false, err
			}
		default:
			return false, errBadInput("unknown alias action kind")
		}
	}
	return true, nil
}

// Search/Recommend/Retrieve/Scroll/Update resolve name then delegate to the
// collection, running on the search executor.
func (t *ToC) Search(ctx context.Context, name string, query []float32, limit int) ([]ScoredPoint, error) {
	col, err := t.GetCollection(name)
	if err != nil {
		return nil, err
	}
	value, err := t.searchExec.Submit(func() (interface{}, error) {
		return col.Search(ctx, query, limit)
	})
	if err != nil {
		return nil, err
	}
	return value.([]ScoredPoint), nil
}

func (t *ToC) Recommend(ctx context.Context, name string, positive, negative []uint64, limit int) ([]ScoredPoint, error) {
	col, err := t.GetCollection(name)
	if err != nil {
		return nil, err
	}
	value, err := t.searchExec.Submit(func() (interface{}, error) {
		return col.Recommend(ctx, positive, negative, limit)
	})
	if err != nil {
		return nil, err
	}
	return value.([]ScoredPoint), nil
}

func (t *ToC) Retrieve(ctx context.Context, name string, ids []uint64) ([]Point, error) {
	col, err := t.GetCollection(name)
	if err != nil {
		return nil, err
	}
	value, err := t.searchExec.Submit(func() (interface{}, error) {
		return col.Retrieve(ctx, ids)
	})
	if err != nil {
		return nil, err
	}
	return value.([]Point), nil
}

func (t *ToC) Scroll(ctx context.Context, name string, offset uint64, limit int) ([]Point, uint64, error) {
	col, err := t.GetCollection(name)
	if err != nil {
		return nil, 0, err
	}
	type scrollResult struct {
		points []Point
		next   uint64
	}
	value, err := t.searchExec.Submit(func() (interface{}, error) {
		points, next, err := col.Scroll(ctx, offset, limit)
		return scrollResult{points: points, next: next}, err
	})
	if err != nil {
		return nil, 0, err
	}
	r := value.(scrollResult)
	return r.points, r.next, nil
}

func (t *ToC) Update(ctx context.Context, name string, upsert []Point, deleteIDs []uint64) error {
	col, err := t.GetCollection(name)
	if err != nil {
		return err
	}
	_, err = t.searchExec.Submit(func() (interface{}, error) {
		return nil, col.Update(ctx, upsert, deleteIDs)
	})
	return err
}

// Close drains every collection's pre-drop path (shutdown, §4.8), then
// stops the optimizer pipeline and releases every durable store.
func (t *ToC) Close() error {
	_, err := t.mgmtExec.Submit(func() (interface{}, error) {
		for _, col := range t.registry.Snapshot() {
			if err := col.PreDrop(context.Background()); err != nil && t.log != nil {
				t.log.WithError(err).WithField("collection", col.Name()).Warn("pre_drop failed during shutdown")
			}
		}
		return nil, nil
	})
	if err != nil && t.log != nil {
		t.log.WithError(err).Warn("shutdown: draining collections failed")
	}

	t.pipeline.Stop()
	t.mgmtExec.Close()

	if err := t.wal.Close(); err != nil && t.log != nil {
		t.log.WithError(err).Warn("close wal")
	}
	if err := t.raftState.Close(); err != nil && t.log != nil {
		t.log.WithError(err).Warn("close raft state")
	}
	if err := t.aliases.Close(); err != nil && t.log != nil {
		t.log.WithError(err).Warn("close alias store")
	}
	return nil
}
