package manager

import "forecastd/pkg/types"

// Variants lists the catalog with local artifact availability. It does not
// mutate state, never downloads and is safe to call at any time.
func (m *Manager) Variants() []types.VariantStatus {
	cur := ""
	if v, ok := m.CurrentVariant(); ok {
		cur = v.ID
	}
	list := m.catalog.List()
	out := make([]types.VariantStatus, 0, len(list))
	for _, v := range list {
		vs := types.VariantStatus{Variant: v, Current: v.ID == cur}
		if m.source != nil {
			_, tokOK := m.source.ResolveLocal(v.TokenizerLocator)
			_, mdlOK := m.source.ResolveLocal(v.ModelLocator)
			vs.LocallyAvailable = tokOK && mdlOK
		}
		out = append(out, vs)
	}
	return out
}
