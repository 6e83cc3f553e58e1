package lsp

import (
	"encoding/json"
	"fmt"

	"tiplens/internal/events"
	"tiplens/internal/settings"
)

// clientSettings mirrors the "tiplens" configuration section. Keys are raw
// so that a null hideBasicTips can be told apart from an explicit answer.
type clientSettings struct {
	Tiplens map[string]json.RawMessage `json:"tiplens"`
}

func (s *Server) handleDidChangeConfiguration(msg *rpcMessage) error {
	var params didChangeConfigurationParams
	if len(msg.Params) > 0 {
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			s.logger.Warn("invalid configuration params", "err", err)
			return nil
		}
	}
	if _, err := s.applySettings(params.Settings); err != nil {
		s.logger.Warn("failed to apply client settings", "err", err)
		s.showMessage(messageError, "tiplens: "+err.Error())
	}
	s.dispatch(events.ConfigChanged{})
	return nil
}

// applySettings merges the client's tiplens section into settings storage.
// Pushed hiddenTips are added to the stored set, never removing dismissals
// made on the server. A null or missing hideBasicTips leaves the stored
// answer alone. It reports whether storage changed.
func (s *Server) applySettings(raw json.RawMessage) (bool, error) {
	if len(raw) == 0 || s.settings == nil {
		return false, nil
	}
	var cs clientSettings
	if err := json.Unmarshal(raw, &cs); err != nil {
		return false, fmt.Errorf("decode settings: %w", err)
	}
	if len(cs.Tiplens) == 0 {
		return false, nil
	}
	var (
		hidden    []string
		hideBasic *bool
	)
	if v, ok := cs.Tiplens["hiddenTips"]; ok {
		if err := json.Unmarshal(v, &hidden); err != nil {
			return false, fmt.Errorf("decode hiddenTips: %w", err)
		}
	}
	if v, ok := cs.Tiplens["hideBasicTips"]; ok {
		if err := json.Unmarshal(v, &hideBasic); err != nil {
			return false, fmt.Errorf("decode hideBasicTips: %w", err)
		}
	}
	if len(hidden) == 0 && hideBasic == nil {
		return false, nil
	}

	current, err := s.settings.Load()
	if err != nil {
		return false, err
	}
	added := addedTips(current.HiddenTips, hidden)
	basicChanged := hideBasic != nil &&
		(current.HideBasicTips == nil || *current.HideBasicTips != *hideBasic)
	if len(added) == 0 && !basicChanged {
		return false, nil
	}
	err = settings.Update(s.settings, func(st *settings.Settings) {
		st.HiddenTips = append(st.HiddenTips, addedTips(st.HiddenTips, added)...)
		if basicChanged {
			st.HideBasicTips = settings.Bool(*hideBasic)
		}
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// addedTips returns the ids of pushed that stored lacks, without duplicates.
func addedTips(stored, pushed []string) []string {
	seen := make(map[string]struct{}, len(stored)+len(pushed))
	for _, id := range stored {
		seen[id] = struct{}{}
	}
	var out []string
	for _, id := range pushed {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
