package session

import (
	"context"
	"fmt"
	"path"
	"strings"

	"swipeshop/internal/compositor"
	"swipeshop/internal/domain"
	"swipeshop/internal/generation"
	"swipeshop/internal/workflow"
)

// Generate dispatches a generation for the current inputs. The provider call
// runs without the session lock; its result is applied only if no newer
// generation or reset happened meanwhile. Failures leave the pool and the
// kept sequence untouched.
func (s *Session) Generate(ctx context.Context, meta Meta) (Snapshot, error) {
	s.mu.Lock()
	flow := s.ctrl.Flow()
	inputs := s.inputs.Clone()
	if flow.Name == workflow.FlowWizard && !s.purposeSelected {
		s.mu.Unlock()
		return Snapshot{}, fmt.Errorf("%w: select a purpose first", domain.ErrStageIncomplete)
	}
	s.genSeq++
	seq := s.genSeq
	s.generating++
	s.touchLocked()
	s.mu.Unlock()

	cards, err := s.dispatch(ctx, flow, inputs, meta)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.generating--
	log := s.deps.logger()
	if seq != s.genSeq {
		log.Info().Str("session_id", s.id).Uint64("seq", seq).Msg("session: discarded stale generation")
		return Snapshot{}, fmt.Errorf("%w: generation %d", domain.ErrSuperseded, seq)
	}
	if err != nil {
		log.Warn().Err(err).Str("session_id", s.id).Str("request_id", meta.RequestID).Msg("session: generation failed")
		return Snapshot{}, err
	}

	fresh := make([]domain.Card, 0, len(cards))
	for _, c := range cards {
		if !s.kept.Contains(c.ID) {
			fresh = append(fresh, c)
		}
	}
	s.pool.Populate(fresh)

	if curate := flow.CurateStage; curate > 0 {
		var moveErr error
		if s.ctrl.Current() < curate {
			moveErr = s.ctrl.AdvanceTo(curate, s.factsLocked())
		} else if s.ctrl.Current() > curate {
			moveErr = s.ctrl.GoTo(curate)
		}
		if moveErr != nil {
			log.Warn().Err(moveErr).Str("session_id", s.id).Msg("session: could not move to curation")
		}
	}
	s.reconcileLocked()
	s.touchLocked()

	log.Info().
		Str("session_id", s.id).
		Str("request_id", meta.RequestID).
		Str("flow", flow.Name).
		Int("cards", len(fresh)).
		Msg("session: generation applied")
	return s.snapshotLocked(), nil
}

func (s *Session) dispatch(ctx context.Context, flow workflow.Flow, inputs domain.ProjectInputs, meta Meta) ([]domain.Card, error) {
	if flow.Name == workflow.FlowDeck {
		if len(inputs.Images) == 0 {
			return nil, fmt.Errorf("%w: upload a product image first", domain.ErrInvalidInput)
		}
		req := generation.VariantRequest{
			ImageRef:    inputs.Images[0],
			ProductName: strings.TrimSpace(inputs.Description),
			SessionID:   s.id,
			RequestID:   meta.RequestID,
		}
		if inputs.Style != nil {
			req.StylePrompt = inputs.Style.Prompt
		}
		res, err := s.deps.Generator.Variants(ctx, req)
		if err != nil {
			return nil, err
		}
		return res.Cards, nil
	}
	return s.deps.Generator.Plan(ctx, generation.PlanRequest{Inputs: inputs, Locale: meta.Locale, RequestID: meta.RequestID})
}

// File is an uploaded image handed to GenerateFromUpload.
type File struct {
	Filename    string
	ContentType string
	Data        []byte
}

// GenerateFromUpload stores the file, adds its public reference to the
// inputs and then generates. The image slot is held for the duration of the
// upload. The generator is never called when the upload fails.
func (s *Session) GenerateFromUpload(ctx context.Context, meta Meta, file File) (Snapshot, error) {
	if s.deps.Uploader == nil {
		return Snapshot{}, fmt.Errorf("%w: uploads are not configured", domain.ErrUploadFailed)
	}
	s.mu.Lock()
	if s.imageRoomLocked() <= 0 {
		s.mu.Unlock()
		return Snapshot{}, fmt.Errorf("%w: image limit reached for this purpose", domain.ErrInvalidInput)
	}
	s.reservedImages++
	s.mu.Unlock()

	slot, err := s.deps.Uploader.Upload(ctx, file.Filename, file.ContentType, file.Data)

	s.mu.Lock()
	s.reservedImages--
	if err != nil {
		s.mu.Unlock()
		s.deps.logger().Warn().Err(err).Str("session_id", s.id).Str("request_id", meta.RequestID).Msg("session: upload failed")
		return Snapshot{}, err
	}
	_, err = s.addImagesLocked([]string{slot.PublicURL})
	s.touchLocked()
	s.mu.Unlock()
	if err != nil {
		// A purpose change during the upload can shrink the limit.
		s.deps.logger().Warn().Err(err).
			Str("session_id", s.id).
			Str("request_id", meta.RequestID).
			Str("orphaned_key", slot.Key).
			Msg("session: uploaded image no longer fits the inputs")
		return Snapshot{}, err
	}
	return s.Generate(ctx, meta)
}

// Refine rewrites a kept card's copy. Refines on different cards run
// independently; an older refine of the same card is discarded.
func (s *Session) Refine(ctx context.Context, cardID string, meta Meta) (Snapshot, error) {
	s.mu.Lock()
	card, ok := s.kept.Get(cardID)
	if !ok {
		s.mu.Unlock()
		return Snapshot{}, fmt.Errorf("%w: card %q is not kept", domain.ErrNotFound, cardID)
	}
	s.refineSeq[cardID]++
	seq := s.refineSeq[cardID]
	style := s.inputs.Clone().Style
	s.mu.Unlock()

	text, err := s.deps.Generator.Refine(ctx, card, style, meta.Locale)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refineSeq[cardID] != seq {
		return Snapshot{}, fmt.Errorf("%w: refine of %q", domain.ErrSuperseded, cardID)
	}
	if err != nil {
		s.deps.logger().Warn().Err(err).Str("session_id", s.id).Str("card_id", cardID).Msg("session: refine failed")
		return Snapshot{}, err
	}
	if !s.kept.UpdateText(cardID, text) {
		return Snapshot{}, fmt.Errorf("%w: card %q is not kept", domain.ErrNotFound, cardID)
	}
	s.touchLocked()
	return s.snapshotLocked(), nil
}

// ExportResult is a finished export.
type ExportResult struct {
	*compositor.Export
	URL   string        `json:"url,omitempty"`
	Asset *domain.Asset `json:"asset,omitempty"`
}

// Export flattens the kept sequence into one image, stores it and records it
// in the ledger. On the edit stage a successful export advances the flow.
func (s *Session) Export(ctx context.Context, meta Meta) (*ExportResult, Snapshot, error) {
	if s.deps.Composer == nil {
		return nil, Snapshot{}, fmt.Errorf("%w: exports are not configured", domain.ErrNothingToExport)
	}
	s.mu.Lock()
	cards := s.kept.Cards()
	s.mu.Unlock()
	if len(cards) == 0 {
		return nil, Snapshot{}, fmt.Errorf("%w: keep at least one card", domain.ErrNothingToExport)
	}

	exp, err := s.deps.Composer.Compose(ctx, cards)
	if err != nil {
		s.deps.logger().Warn().Err(err).Str("session_id", s.id).Str("request_id", meta.RequestID).Msg("session: export failed")
		return nil, Snapshot{}, err
	}
	res := &ExportResult{Export: exp}
	if err := s.storeExport(ctx, res); err != nil {
		s.deps.logger().Warn().Err(err).Str("session_id", s.id).Msg("session: export not stored")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if edit := s.ctrl.Flow().EditStage; edit > 0 && s.ctrl.Current() == edit {
		if err := s.ctrl.Advance(s.factsLocked()); err != nil {
			s.deps.logger().Debug().Err(err).Str("session_id", s.id).Msg("session: export did not advance")
		}
	}
	s.touchLocked()
	return res, s.snapshotLocked(), nil
}

func (s *Session) storeExport(ctx context.Context, res *ExportResult) error {
	if s.deps.Store == nil {
		return nil
	}
	key, err := s.deps.Store.Write(ctx, path.Join("exports", s.id, res.Filename), res.Data)
	if err != nil {
		return err
	}
	res.URL = s.deps.Store.PublicURL(key)
	asset := domain.Asset{
		ID:          strings.ToLower(domain.NewULID().String()),
		SessionID:   s.id,
		Kind:        domain.AssetKindExport,
		StorageKey:  key,
		PublicURL:   res.URL,
		ContentType: res.ContentType,
		Width:       res.Width,
		Height:      res.Height,
		Bytes:       int64(len(res.Data)),
		CreatedAt:   s.deps.now(),
	}
	res.Asset = &asset
	if s.deps.Ledger == nil {
		return nil
	}
	return s.deps.Ledger.Record(ctx, asset)
}

// Exports lists the artifacts this session has exported.
func (s *Session) Exports(ctx context.Context) ([]domain.Asset, error) {
	if s.deps.Ledger == nil {
		return nil, nil
	}
	return s.deps.Ledger.ListBySession(ctx, s.id, domain.AssetKindExport)
}
