package lsp

import "encoding/json"

func (s *Server) handleDidChangeConfiguration(msg *rpcMessage) error {
	if len(msg.Params) == 0 {
		return nil
	}
	var params didChangeConfigurationParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return nil
	}
	s.applySettings(params.Settings)
	return nil
}

func (s *Server) applySettings(raw json.RawMessage) {
	if len(raw) == 0 {
		return
	}
	var settings lspSettings
	if err := json.Unmarshal(raw, &settings); err != nil {
		return
	}
	if v := settings.WidgetWrap.Trace; v != nil {
		s.mu.Lock()
		s.traceLSP = *v
		s.mu.Unlock()
	}
	if v := settings.WidgetWrap.Outline.InitialDepth; v != nil {
		s.session.SetInitialDepth(*v)
	}
	if v := settings.WidgetWrap.Outline.Compact; v != nil && *v != s.session.Compact() {
		s.session.SetCompact(*v)
	}
}
