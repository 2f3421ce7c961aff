// Package session owns one project's workflow, candidate pool, kept
// sequence and inputs, and serializes every mutation on them.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"swipeshop/internal/catalog"
	"swipeshop/internal/compositor"
	"swipeshop/internal/curation"
	"swipeshop/internal/domain"
	"swipeshop/internal/generation"
	"swipeshop/internal/storage"
	"swipeshop/internal/workflow"
)

// Generator produces candidate cards and refined copy.
type Generator interface {
	Plan(ctx context.Context, req generation.PlanRequest) ([]domain.Card, error)
	Variants(ctx context.Context, req generation.VariantRequest) (*generation.VariantResult, error)
	CustomBlock(prompt string, images []string) (domain.Card, error)
	Refine(ctx context.Context, card domain.Card, style *domain.Style, locale string) (string, error)
}

// Uploader turns raw file bytes into a publicly fetchable reference.
type Uploader interface {
	Upload(ctx context.Context, filename, contentType string, data []byte) (storage.Slot, error)
}

// Composer flattens kept cards into one image.
type Composer interface {
	Compose(ctx context.Context, cards []domain.Card) (*compositor.Export, error)
}

// ArtifactStore keeps exported images.
type ArtifactStore interface {
	Write(ctx context.Context, key string, data []byte) (string, error)
	PublicURL(key string) string
}

// Deps are shared by every session of a manager.
type Deps struct {
	Catalog   *catalog.Catalog
	Generator Generator
	Uploader  Uploader
	Composer  Composer
	Store     ArtifactStore
	Ledger    domain.AssetLedger
	Logger    *zerolog.Logger
	Now       func() time.Time
}

func (d *Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d *Deps) logger() *zerolog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	nop := zerolog.Nop()
	return &nop
}

// Meta carries per-call request information down to the providers.
type Meta struct {
	Locale    string
	RequestID string
}

// Session is one user's project. All methods are safe for concurrent use.
type Session struct {
	id   string
	deps *Deps

	mu              sync.Mutex
	ctrl            *workflow.Controller
	inputs          domain.ProjectInputs
	purposeSelected bool
	// image slots held by uploads still in flight
	reservedImages int
	pool            *curation.Pool
	kept            *curation.Kept
	genSeq          uint64
	generating      int
	refineSeq       map[string]uint64
	createdAt       time.Time
	touchedAt       time.Time
}

// New creates a session running flow. The default purpose and style from
// the catalog are preloaded but the purpose counts as unselected.
func New(id string, flow workflow.Flow, deps *Deps) *Session {
	now := deps.now()
	s := &Session{
		id:        id,
		deps:      deps,
		ctrl:      workflow.NewController(flow),
		pool:      curation.NewPool(),
		kept:      curation.NewKept(),
		refineSeq: make(map[string]uint64),
		createdAt: now,
		touchedAt: now,
	}
	s.resetInputsLocked()
	return s
}

func (s *Session) ID() string { return s.id }

// Snapshot is the read-only view returned to clients.
type Snapshot struct {
	ID              string               `json:"id"`
	Workflow        workflow.Snapshot    `json:"workflow"`
	Inputs          domain.ProjectInputs `json:"inputs"`
	PurposeSelected bool                 `json:"purpose_selected"`
	ImageLimit      int                  `json:"image_limit"`
	Pool            []domain.Card        `json:"pool"`
	Top             *domain.Card         `json:"top,omitempty"`
	Kept            []domain.Card        `json:"kept"`
	Generating      bool                 `json:"generating"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		ID:              s.id,
		Workflow:        s.ctrl.Snapshot(),
		Inputs:          s.inputs.Clone(),
		PurposeSelected: s.purposeSelected,
		ImageLimit:      s.inputs.Purpose.Input.ImageLimit(),
		Pool:            s.pool.Cards(),
		Kept:            s.kept.Cards(),
		Generating:      s.generating > 0,
		CreatedAt:       s.createdAt,
		UpdatedAt:       s.touchedAt,
	}
	if top, ok := s.pool.PeekTop(); ok {
		snap.Top = &top
	}
	return snap
}

// idleSince reports when the session was last touched.
func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touchedAt
}

func (s *Session) touchLocked() { s.touchedAt = s.deps.now() }

func (s *Session) factsLocked() workflow.Facts {
	return workflow.Facts{
		PurposeSelected: s.purposeSelected,
		HasContent:      s.inputs.HasContent(),
		StyleSelected:   s.inputs.Style != nil,
		PoolLen:         s.pool.Len(),
		KeptLen:         s.kept.Len(),
	}
}

// reconcileLocked runs after every pool or kept mutation.
func (s *Session) reconcileLocked() {
	if s.ctrl.Reconcile(s.pool.Len(), s.kept.Len()) {
		s.deps.logger().Debug().Str("session_id", s.id).Str("stage", s.ctrl.CurrentName()).Msg("session: auto-advanced")
	}
}

func (s *Session) resetInputsLocked() {
	style := s.deps.Catalog.DefaultStyle()
	s.inputs = domain.ProjectInputs{Purpose: s.deps.Catalog.DefaultPurpose(), Style: &style}
	s.purposeSelected = false
}

// resetLocked reinitializes workflow, collections and inputs in one step and
// invalidates every in-flight generation and refine.
func (s *Session) resetLocked() {
	s.ctrl.Reset()
	s.pool.Clear()
	s.kept.Clear()
	s.resetInputsLocked()
	s.genSeq++
	s.refineSeq = make(map[string]uint64)
}

func (s *Session) Reset() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
	s.touchLocked()
	return s.snapshotLocked()
}

func (s *Session) lookupPurpose(id string) (domain.Purpose, error) {
	p, err := s.deps.Catalog.Purpose(strings.TrimSpace(id))
	if err != nil {
		return domain.Purpose{}, fmt.Errorf("%w: unknown purpose %q", domain.ErrInvalidInput, id)
	}
	return p, nil
}

// SelectPurpose changes the purpose and trims images beyond its limit.
func (s *Session) SelectPurpose(id string) (Snapshot, error) {
	p, err := s.lookupPurpose(id)
	if err != nil {
		return Snapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inputs.Purpose = p
	s.purposeSelected = true
	if limit := p.Input.ImageLimit(); len(s.inputs.Images) > limit {
		s.inputs.Images = s.inputs.Images[:limit]
	}
	s.touchLocked()
	return s.snapshotLocked(), nil
}

// StartProject discards the current project and opens a new one on the
// input stage with the given purpose.
func (s *Session) StartProject(purposeID string) (Snapshot, error) {
	p, err := s.lookupPurpose(purposeID)
	if err != nil {
		return Snapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
	s.inputs.Purpose = p
	s.purposeSelected = true
	if input := s.ctrl.Flow().StageNumber("input"); input > 0 {
		if err := s.ctrl.AdvanceTo(input, s.factsLocked()); err != nil {
			return Snapshot{}, err
		}
	}
	s.touchLocked()
	return s.snapshotLocked(), nil
}

// AddImages appends image references up to the purpose limit and returns
// how many were accepted. A session still on the purpose stage moves on to
// input. In the deck flow the newest image replaces the current one.
func (s *Session) AddImages(refs []string) (Snapshot, int, error) {
	clean := make([]string, 0, len(refs))
	for _, ref := range refs {
		if ref = strings.TrimSpace(ref); ref != "" {
			clean = append(clean, ref)
		}
	}
	if len(clean) == 0 {
		return Snapshot{}, 0, fmt.Errorf("%w: at least one image reference is required", domain.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.addImagesLocked(clean)
	if err != nil {
		return Snapshot{}, 0, err
	}
	s.touchLocked()
	return s.snapshotLocked(), n, nil
}

// imageRoomLocked is how many more images the inputs accept.
func (s *Session) imageRoomLocked() int {
	if s.ctrl.Flow().Name == workflow.FlowDeck {
		return 1
	}
	return s.inputs.Purpose.Input.ImageLimit() - len(s.inputs.Images) - s.reservedImages
}

func (s *Session) addImagesLocked(refs []string) (int, error) {
	if s.ctrl.Flow().Name == workflow.FlowDeck {
		s.inputs.Images = []string{refs[len(refs)-1]}
		return 1, nil
	}
	room := s.imageRoomLocked()
	if room <= 0 {
		return 0, fmt.Errorf("%w: at most %d images for this purpose", domain.ErrInvalidInput, s.inputs.Purpose.Input.ImageLimit())
	}
	if len(refs) > room {
		refs = refs[:room]
	}
	s.inputs.Images = append(s.inputs.Images, refs...)

	input := s.ctrl.Flow().StageNumber("input")
	if input > 0 && s.ctrl.Current() < input {
		// Uploading implies the purpose the user is looking at.
		s.purposeSelected = true
		if err := s.ctrl.AdvanceTo(input, s.factsLocked()); err != nil {
			return 0, err
		}
	}
	return len(refs), nil
}

func (s *Session) RemoveImage(index int) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.inputs.Images) {
		return Snapshot{}, fmt.Errorf("%w: image %d", domain.ErrNotFound, index)
	}
	s.inputs.Images = append(s.inputs.Images[:index:index], s.inputs.Images[index+1:]...)
	s.touchLocked()
	return s.snapshotLocked(), nil
}

func (s *Session) SetDescription(text string) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inputs.Description = text
	s.touchLocked()
	return s.snapshotLocked()
}

func (s *Session) SelectStyle(id string) (Snapshot, error) {
	style, err := s.deps.Catalog.Style(strings.TrimSpace(id))
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: unknown style %q", domain.ErrInvalidInput, id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inputs.Style = &style
	s.touchLocked()
	return s.snapshotLocked(), nil
}

func (s *Session) GoTo(stage int) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ctrl.GoTo(stage); err != nil {
		return Snapshot{}, err
	}
	s.touchLocked()
	return s.snapshotLocked(), nil
}

func (s *Session) Advance() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ctrl.Advance(s.factsLocked()); err != nil {
		return Snapshot{}, err
	}
	s.touchLocked()
	return s.snapshotLocked(), nil
}

// Decide resolves a pool card by swipe direction.
func (s *Session) Decide(cardID, direction string) (Snapshot, curation.Outcome, error) {
	d, err := curation.ParseDecision(direction)
	if err != nil {
		return Snapshot{}, curation.Outcome{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out, err := curation.Decide(s.pool, s.kept, cardID, d)
	if err != nil {
		return Snapshot{}, out, err
	}
	s.reconcileLocked()
	s.touchLocked()
	return s.snapshotLocked(), out, nil
}

// Toggle flips kept membership of a pool card visible in the grid. Cards
// that only live in the kept sequence are removed with RemoveKept.
func (s *Session) Toggle(cardID string) (Snapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	card, ok := s.pool.Get(cardID)
	if !ok {
		return Snapshot{}, false, fmt.Errorf("%w: card %q is not in the pool", domain.ErrNotFound, cardID)
	}
	kept := curation.Toggle(s.kept, card)
	s.reconcileLocked()
	s.touchLocked()
	return s.snapshotLocked(), kept, nil
}

// AddCustomBlock puts a user-authored card on top of the pool's front.
func (s *Session) AddCustomBlock(prompt string) (Snapshot, domain.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	card, err := s.deps.Generator.CustomBlock(prompt, s.inputs.Images)
	if err != nil {
		return Snapshot{}, domain.Card{}, err
	}
	s.pool.Prepend(card)
	s.reconcileLocked()
	s.touchLocked()
	return s.snapshotLocked(), card, nil
}

// DeleteCard removes a card from both the pool and the kept sequence.
func (s *Session) DeleteCard(cardID string) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pool.RemoveByID(cardID)
	s.kept.RemoveByID(cardID)
	delete(s.refineSeq, cardID)
	s.reconcileLocked()
	s.touchLocked()
	return s.snapshotLocked()
}

func (s *Session) Reorder(ids []string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.kept.Reorder(ids); err != nil {
		return Snapshot{}, err
	}
	s.touchLocked()
	return s.snapshotLocked(), nil
}

// MoveKept swaps the kept card with its neighbour in direction.
func (s *Session) MoveKept(cardID, direction string) (Snapshot, bool, error) {
	dir, err := curation.ParseDirection(direction)
	if err != nil {
		return Snapshot{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.kept.IndexOf(cardID)
	if idx < 0 {
		return Snapshot{}, false, fmt.Errorf("%w: card %q is not kept", domain.ErrNotFound, cardID)
	}
	moved := s.kept.MoveAdjacent(idx, dir)
	s.touchLocked()
	return s.snapshotLocked(), moved, nil
}

func (s *Session) UpdateText(cardID, text string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.kept.UpdateText(cardID, text) {
		return Snapshot{}, fmt.Errorf("%w: card %q is not kept", domain.ErrNotFound, cardID)
	}
	// A manual edit wins over any refine still running.
	s.refineSeq[cardID]++
	s.touchLocked()
	return s.snapshotLocked(), nil
}

func (s *Session) RemoveKept(cardID string) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kept.RemoveByID(cardID)
	delete(s.refineSeq, cardID)
	s.reconcileLocked()
	s.touchLocked()
	return s.snapshotLocked()
}
