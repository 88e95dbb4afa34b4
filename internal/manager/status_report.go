package manager

import (
	"forecastd/pkg/types"
)

// Status builds the lifecycle part of the /model/status response.
func (m *Manager) Status() types.StatusResponse {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	resp := types.StatusResponse{
		State:          string(m.lc.State),
		VariantID:      m.lc.Variant,
		FromVariant:    m.lc.From,
		Reason:         m.lc.Reason,
		Borrows:        m.borrows,
		LoadsTotal:     m.loadsTotal,
		LastError:      m.lastErr,
		UptimeSeconds:  int64(now.Sub(m.startTime).Seconds()),
		ServerTimeUnix: now.Unix(),
	}
	if h := m.handle; h != nil {
		d := h.Downloads.Any()
		resp.DownloadOccurred = &d
		resp.TokenizerDownloaded = h.Downloads.Tokenizer
		resp.ModelDownloaded = h.Downloads.Model
		resp.LoadedAt = h.LoadedAt.Unix()
	}
	return resp
}
