package registry

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Sadman-Ilham/opencrvs-core/internal/client/models"
	"github.com/Sadman-Ilham/opencrvs-core/internal/client/repositories/kv"
	"github.com/Sadman-Ilham/opencrvs-core/internal/common"
	"github.com/Sadman-Ilham/opencrvs-core/internal/logging"
	"github.com/Sadman-Ilham/opencrvs-core/internal/timex"
)

// Confirmation is a server-observed status for a declaration. When Adopt
// is set and the id is unknown on this device, the declaration is created
// with the server's status and composition id.
type Confirmation struct {
	ID            string
	Status        models.Status
	CompositionID string
	Event         models.EventType
	Adopt         bool
}

// Registry owns every declaration on the device. All mutations are
// serialized and persisted before they become visible.
type Registry struct {
	mu    sync.RWMutex
	store kv.Store
	decls map[string]models.Declaration

	clock timex.Clock
	newID func() string
	log   logging.Logger
}

type Option func(*Registry)

func WithClock(c timex.Clock) Option { return func(r *Registry) { r.clock = c } }

func WithIDGenerator(f func() string) Option { return func(r *Registry) { r.newID = f } }

func WithLogger(l logging.Logger) Option { return func(r *Registry) { r.log = l } }

func New(store kv.Store, opts ...Option) *Registry {
	r := &Registry{
		store: store,
		decls: make(map[string]models.Declaration),
		clock: timex.SystemClock,
		newID: uuid.NewString,
		log:   logging.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load replaces the in-memory state with the persisted declarations.
func (r *Registry) Load(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids, err := r.readIndex(ctx)
	if err != nil {
		return err
	}

	decls := make(map[string]models.Declaration, len(ids))
	for _, id := range ids {
		raw, err := r.store.Get(ctx, kv.DeclarationKey(id))
		if err != nil {
			return err
		}
		if raw == nil {
			r.log.Warn(ctx, "indexed declaration missing from store", "declaration_id", id)
			continue
		}
		var d models.Declaration
		if err := json.Unmarshal(raw, &d); err != nil {
			return fmt.Errorf("decode declaration %s: %w: %w", id, common.ErrStorageFailure, err)
		}
		decls[d.ID] = d
	}
	r.decls = decls
	r.log.Info(ctx, "declarations loaded", "count", len(decls))
	return nil
}

func (r *Registry) readIndex(ctx context.Context) ([]string, error) {
	raw, err := r.store.Get(ctx, kv.DeclarationIndex)
	if err != nil {
		return nil, err
	}
	if raw != nil {
		var ids []string
		if err := json.Unmarshal(raw, &ids); err != nil {
			return nil, fmt.Errorf("decode declaration index: %w: %w", common.ErrStorageFailure, err)
		}
		return ids, nil
	}

	// No index yet: fall back to the record keys.
	keys, err := r.store.Keys(ctx, kv.DeclarationPrefix)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == kv.DeclarationIndex {
			continue
		}
		ids = append(ids, k[len(kv.DeclarationPrefix):])
	}
	return ids, nil
}

// Create allocates a new DRAFT declaration for event.
func (r *Registry) Create(ctx context.Context, event models.EventType) (models.Declaration, error) {
	if !event.Valid() {
		return models.Declaration{}, fmt.Errorf("unknown event %q: %w", event, common.ErrInvalidStateTransition)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	d := models.NewDeclaration(r.newID(), event, r.clock.Now())
	if _, exists := r.decls[d.ID]; exists {
		return models.Declaration{}, fmt.Errorf("declaration id %s already in use", d.ID)
	}
	if err := r.commit(ctx, []models.Declaration{d}, nil); err != nil {
		return models.Declaration{}, err
	}
	return d.Clone(), nil
}

// Save stores new field data for decl.ID. It is allowed in DRAFT, REJECTED
// and FAILED_NETWORK; the status and identifiers of decl are ignored.
func (r *Registry) Save(ctx context.Context, decl models.Declaration) (models.Declaration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.decls[decl.ID]
	if !ok {
		return models.Declaration{}, fmt.Errorf("save %s: %w", decl.ID, common.ErrNotFound)
	}
	if !cur.Status.Editable() {
		return models.Declaration{}, fmt.Errorf("save %s in %s: %w", decl.ID, cur.Status, common.ErrInvalidStateTransition)
	}
	if decl.Event != "" && decl.Event != cur.Event {
		return models.Declaration{}, fmt.Errorf("save %s: event is immutable: %w", decl.ID, common.ErrInvalidStateTransition)
	}

	next := cur.Clone()
	next.Data = decl.Data.Clone()
	if next.Data == nil {
		next.Data = models.Data{}
	}
	now := r.clock.Now()
	next.SavedOn = now
	next.ModifiedOn = now

	if err := r.commit(ctx, []models.Declaration{next}, nil); err != nil {
		return models.Declaration{}, err
	}
	return next.Clone(), nil
}

// Transition moves id to status to along the local state machine.
func (r *Registry) Transition(ctx context.Context, id string, to models.Status) (models.Declaration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.decls[id]
	if !ok {
		return models.Declaration{}, fmt.Errorf("transition %s: %w", id, common.ErrNotFound)
	}
	if !CanTransition(cur, to) {
		return models.Declaration{}, fmt.Errorf("transition %s from %s to %s: %w", id, cur.Status, to, common.ErrInvalidStateTransition)
	}

	next := cur.Clone()
	next.Status = to
	next.ModifiedOn = r.clock.Now()
	if to.IsProcessing() {
		next.LastAction = to
		next.Acknowledged = false
	}

	if err := r.commit(ctx, []models.Declaration{next}, nil); err != nil {
		return models.Declaration{}, err
	}
	r.log.Debug(ctx, "declaration transitioned", "declaration_id", id, "from", cur.Status, "to", to)
	return next.Clone(), nil
}

// Acknowledge records that the server accepted the current outbound
// operation. compositionID is stored if none was assigned yet.
func (r *Registry) Acknowledge(ctx context.Context, id, compositionID string) (models.Declaration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.decls[id]
	if !ok {
		return models.Declaration{}, fmt.Errorf("acknowledge %s: %w", id, common.ErrNotFound)
	}
	if !cur.Status.IsProcessing() {
		return models.Declaration{}, fmt.Errorf("acknowledge %s in %s: %w", id, cur.Status, common.ErrInvalidStateTransition)
	}

	next := cur.Clone()
	next.Acknowledged = true
	if next.CompositionID == "" {
		next.CompositionID = compositionID
	}
	next.ModifiedOn = r.clock.Now()

	if err := r.commit(ctx, []models.Declaration{next}, nil); err != nil {
		return models.Declaration{}, err
	}
	return next.Clone(), nil
}

// Confirm adopts server-observed statuses. Entries for unknown ids that
// are not marked Adopt and moves that are not forward for the local status
// are skipped. The accepted changes are persisted as one batch; on error
// nothing changes.
func (r *Registry) Confirm(ctx context.Context, confirmations []Confirmation) ([]models.Declaration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var changed []models.Declaration
	seen := make(map[string]bool, len(confirmations))
	now := r.clock.Now()

	for _, c := range confirmations {
		if seen[c.ID] {
			continue
		}
		cur, ok := r.decls[c.ID]
		if !ok {
			if d, ok := adopt(c, now); ok {
				seen[c.ID] = true
				changed = append(changed, d)
			}
			continue
		}

		next := cur.Clone()
		switch {
		case c.Status == cur.Status:
		case c.Status.IsServerConfirmed() && CanConfirm(cur, c.Status):
			next.Status = c.Status
			next.Acknowledged = false
		default:
			continue
		}

		if c.CompositionID != "" {
			if next.CompositionID == "" {
				next.CompositionID = c.CompositionID
			} else if next.CompositionID != c.CompositionID {
				r.log.Warn(ctx, "server reported a different composition id",
					"declaration_id", c.ID, "local", next.CompositionID, "server", c.CompositionID)
			}
		}

		if next.Status == cur.Status && next.CompositionID == cur.CompositionID {
			continue
		}
		next.ModifiedOn = now
		seen[c.ID] = true
		changed = append(changed, next)
	}

	if len(changed) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := r.commit(ctx, changed, nil); err != nil {
		return nil, err
	}

	out := make([]models.Declaration, len(changed))
	for i, d := range changed {
		r.log.Info(ctx, "server status adopted", "declaration_id", d.ID, "status", d.Status, "composition_id", d.CompositionID)
		out[i] = d.Clone()
	}
	return out, nil
}

// adopt builds a declaration known only to the server.
func adopt(c Confirmation, now time.Time) (models.Declaration, bool) {
	if !c.Adopt || c.ID == "" || !c.Event.Valid() || !c.Status.IsServerConfirmed() {
		return models.Declaration{}, false
	}
	d := models.NewDeclaration(c.ID, c.Event, now)
	d.Status = c.Status
	d.CompositionID = c.CompositionID
	return d, true
}

// Discard deletes a DRAFT declaration.
func (r *Registry) Discard(ctx context.Context, id string) error {
	return r.remove(ctx, id, func(d models.Declaration) bool { return d.Status == models.StatusDraft })
}

// Prune deletes a declaration whose terminal status was confirmed by the
// server; the server is the source of truth for it from then on.
func (r *Registry) Prune(ctx context.Context, id string) error {
	return r.remove(ctx, id, func(d models.Declaration) bool { return d.Status.IsTerminal() })
}

func (r *Registry) remove(ctx context.Context, id string, allowed func(models.Declaration) bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.decls[id]
	if !ok {
		return fmt.Errorf("remove %s: %w", id, common.ErrNotFound)
	}
	if !allowed(cur) {
		return fmt.Errorf("remove %s in %s: %w", id, cur.Status, common.ErrInvalidStateTransition)
	}
	return r.commit(ctx, nil, []string{id})
}

// Get returns a copy of one declaration.
func (r *Registry) Get(id string) (models.Declaration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.decls[id]
	if !ok {
		return models.Declaration{}, fmt.Errorf("get %s: %w", id, common.ErrNotFound)
	}
	return d.Clone(), nil
}

// All returns a snapshot of every declaration, most recently modified
// first. It never blocks on I/O.
func (r *Registry) All() []models.Declaration {
	r.mu.RLock()
	out := make([]models.Declaration, 0, len(r.decls))
	for _, d := range r.decls {
		out = append(out, d.Clone())
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b models.Declaration) int {
		if c := b.ModifiedOn.Compare(a.ModifiedOn); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// commit persists puts and deletes in one batch and then applies them to
// memory. Callers hold the write lock.
func (r *Registry) commit(ctx context.Context, puts []models.Declaration, deletes []string) error {
	ids := make(map[string]struct{}, len(r.decls)+len(puts))
	for id := range r.decls {
		ids[id] = struct{}{}
	}
	indexChanged := false
	for _, d := range puts {
		if _, ok := ids[d.ID]; !ok {
			ids[d.ID] = struct{}{}
			indexChanged = true
		}
	}
	for _, id := range deletes {
		delete(ids, id)
		indexChanged = true
	}

	err := r.store.Update(ctx, func(ctx context.Context, b kv.Batch) error {
		for _, d := range puts {
			raw, err := json.Marshal(d)
			if err != nil {
				return fmt.Errorf("encode declaration %s: %w", d.ID, err)
			}
			if err := b.Set(ctx, kv.DeclarationKey(d.ID), raw); err != nil {
				return err
			}
		}
		for _, id := range deletes {
			if err := b.Remove(ctx, kv.DeclarationKey(id)); err != nil {
				return err
			}
		}
		if !indexChanged {
			return nil
		}
		index := make([]string, 0, len(ids))
		for id := range ids {
			index = append(index, id)
		}
		slices.Sort(index)
		raw, err := json.Marshal(index)
		if err != nil {
			return err
		}
		return b.Set(ctx, kv.DeclarationIndex, raw)
	})
	if err != nil {
		return err
	}

	for _, d := range puts {
		r.decls[d.ID] = d
	}
	for _, id := range deletes {
		delete(r.decls, id)
	}
	return nil
}
