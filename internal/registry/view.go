package registry

import "seekroute/internal/model"

// View returns read models of the active emergencies (dispatch order) and the
// whole fleet (id order).
func (r *Registry) View() ([]model.EmergencyView, []model.ResourceView) {
	ems := r.Emergencies()
	fleet := r.Resources()
	ev := make([]model.EmergencyView, 0, len(ems))
	for _, e := range ems {
		ev = append(ev, model.EmergencyView{
			ID:            e.ID,
			Location:      e.Location,
			Priority:      e.Priority,
			Requirements:  e.Requirements,
			OffsetMs:      e.ArrivalOffset.Milliseconds(),
			State:         e.State.String(),
			Unsatisfiable: e.Unsatisfiable,
			Resources:     e.Resources,
		})
	}
	rv := make([]model.ResourceView, 0, len(fleet))
	for _, res := range fleet {
		rv = append(rv, model.ResourceView{
			ID:          res.ID,
			Location:    res.Location,
			Capability:  res.Capability,
			Status:      res.Status.String(),
			EmergencyID: res.EmergencyID,
		})
	}
	return ev, rv
}
