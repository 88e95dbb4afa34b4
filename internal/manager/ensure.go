package manager

import (
	"context"
	"fmt"

	"forecastd/internal/artifact"
	"forecastd/internal/forecast"
	"forecastd/pkg/types"
)

// EnsureLoaded brings up a variant when nothing is resident. It is a no-op
// in every state other than Unloaded, so repeated calls never load twice.
// A persisted last-ready variant takes precedence over defaultVariant.
func (m *Manager) EnsureLoaded(ctx context.Context, defaultVariant string) error {
	m.transMu.Lock()
	defer m.transMu.Unlock()

	if m.State().State != StateUnloaded {
		return nil
	}
	id := defaultVariant
	if id == "" {
		id = m.defaultVariant
	}
	if last := m.loadLastVariant(); last != "" && last != id {
		if _, ok := m.catalog.Lookup(last); ok {
			m.log.Info().Str("variant", last).Msg("restoring last ready variant")
			id = last
		}
	}
	v, ok := m.catalog.Lookup(id)
	if !ok {
		return &InvalidVariantError{ID: id}
	}
	m.emit("ensure_start", v.ID, nil)
	_, err := m.transition(ctx, v)
	return err
}

// transition replaces whatever is resident with v. Caller holds transMu.
func (m *Manager) transition(ctx context.Context, v types.Variant) (SwitchResult, error) {
	m.mu.Lock()
	var prev string
	if m.handle != nil {
		prev = m.handle.Variant.ID
		m.setStateLocked(LifecycleState{State: StateSwitching, From: prev, Variant: v.ID})
	} else {
		m.setStateLocked(LifecycleState{State: StateLoading, Variant: v.ID})
	}
	m.settled = make(chan struct{})
	for m.borrows > 0 {
		m.cond.Wait()
	}
	old := m.handle
	m.handle = nil
	m.mu.Unlock()

	if old != nil {
		m.emit("unload_start", old.Variant.ID, nil)
		if err := m.backend.Unload(old.Predictor); err != nil {
			m.log.Warn().Err(err).Str("variant", old.Variant.ID).Msg("unload previous variant")
		}
		m.emit("unload_done", old.Variant.ID, nil)
	}

	start := m.now()
	m.emit("load_start", v.ID, map[string]any{"from": prev})
	h, err := m.load(ctx, v)
	dur := m.now().Sub(start)

	m.mu.Lock()
	if err != nil {
		m.lastErr = err.Error()
		m.setStateLocked(LifecycleState{State: StateFailed, Variant: v.ID, Reason: err.Error()})
	} else {
		m.handle = h
		m.loadsTotal++
		m.lastErr = ""
		m.setStateLocked(LifecycleState{State: StateReady, Variant: v.ID})
	}
	close(m.settled)
	m.settled = nil
	m.mu.Unlock()

	if err != nil {
		loadDuration.WithLabelValues(v.ID, "error").Observe(dur.Seconds())
		m.log.Error().Err(err).Str("variant", v.ID).Msg("load failed")
		m.emit("load_failed", v.ID, map[string]any{"error": err.Error()})
		return SwitchResult{PreviousVariant: prev}, &LoadFailedError{Variant: v.ID, Err: err}
	}
	loadDuration.WithLabelValues(v.ID, "ok").Observe(dur.Seconds())
	m.log.Info().Str("variant", v.ID).Dur("took", dur).Bool("downloaded", h.Downloads.Any()).Msg("variant ready")
	m.emit("load_ready", v.ID, map[string]any{
		"duration_ms":       dur.Milliseconds(),
		"download_occurred": h.Downloads.Any(),
	})
	m.saveLastVariant(v.ID)
	return SwitchResult{PreviousVariant: prev, Variant: v.ID, DownloadOccurred: h.Downloads.Any()}, nil
}

// load resolves both artifacts and builds a predictor. On error nothing it
// created stays alive.
func (m *Manager) load(ctx context.Context, v types.Variant) (*ModelHandle, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.loadTimeout)
	defer cancel()

	if m.source == nil || m.backend == nil {
		return nil, fmt.Errorf("no artifact source or backend configured")
	}
	tok, tokFetched, err := artifact.Resolve(ctx, m.source, v.TokenizerLocator)
	if err != nil {
		return nil, fmt.Errorf("tokenizer: %w", err)
	}
	mdl, mdlFetched, err := artifact.Resolve(ctx, m.source, v.ModelLocator)
	if err != nil {
		return nil, fmt.Errorf("model: %w", err)
	}
	p, err := m.backend.Load(ctx, forecast.LoadRequest{
		VariantID:     v.ID,
		Tokenizer:     tok,
		Model:         mdl,
		Device:        m.device,
		ContextLength: v.ContextLength,
	})
	if err != nil {
		return nil, fmt.Errorf("backend: %w", err)
	}
	if err := ctx.Err(); err != nil {
		_ = m.backend.Unload(p)
		return nil, err
	}
	return &ModelHandle{
		Variant:   v,
		LoadedAt:  m.now(),
		Downloads: Downloads{Tokenizer: tokFetched, Model: mdlFetched},
		Tokenizer: tok,
		Predictor: p,
	}, nil
}
