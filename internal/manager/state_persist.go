package manager

import (
	"encoding/json"
	"os"

	"forecastd/internal/common/fsutil"
)

type stateRecord struct {
	LastVariant string `json:"last_variant"`
	SavedAtUnix int64  `json:"saved_at_unix"`
}

func (m *Manager) loadLastVariant() string {
	if m.statePath == "" {
		return ""
	}
	f, err := os.Open(m.statePath)
	if err != nil {
		return ""
	}
	defer f.Close()
	var rec stateRecord
	if err := json.NewDecoder(f).Decode(&rec); err != nil {
		m.log.Warn().Err(err).Str("path", m.statePath).Msg("ignoring unreadable state file")
		return ""
	}
	return rec.LastVariant
}

func (m *Manager) saveLastVariant(id string) {
	if m.statePath == "" {
		return
	}
	b, err := json.MarshalIndent(stateRecord{LastVariant: id, SavedAtUnix: m.now().Unix()}, "", "  ")
	if err != nil {
		return
	}
	if err := fsutil.WriteFileAtomic(m.statePath, b, 0o644); err != nil {
		m.log.Warn().Err(err).Str("path", m.statePath).Msg("persist state")
	}
}

func (m *Manager) clearLastVariant() {
	if m.statePath == "" {
		return
	}
	if err := os.Remove(m.statePath); err != nil && !os.IsNotExist(err) {
		m.log.Warn().Err(err).Str("path", m.statePath).Msg("remove state file")
	}
}
