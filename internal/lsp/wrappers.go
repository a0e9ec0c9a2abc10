package lsp

func (s *Server) handleWrappers(msg *rpcMessage) error {
	groups := s.registry.Groups()
	out := make([]wrapperGroup, 0, len(groups))
	for _, g := range groups {
		wg := wrapperGroup{ID: g.ID, Name: g.Name, Wrappers: make([]wrapperItem, 0, len(g.Entries))}
		for _, e := range g.Entries {
			wg.Wrappers = append(wg.Wrappers, wrapperItem{
				ID:      e.ID,
				Title:   e.DisplayName(),
				Kind:    e.Kind.String(),
				Enabled: e.Enabled,
			})
		}
		out = append(out, wg)
	}
	return s.sendResponse(msg.ID, out)
}
