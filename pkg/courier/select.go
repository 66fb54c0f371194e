package courier

import "sort"

// SelectCourier picks the cheapest surface courier with a nonzero freight
// charge. When none qualifies it falls back to the first option offered.
//
// TODO: confirm the surface-first tie-break with logistics; express and
// lower-rated couriers are never preferred today.
func SelectCourier(options []CourierOption) (CourierOption, bool) {
	if len(options) == 0 {
		return CourierOption{}, false
	}
	surface := make([]CourierOption, 0, len(options))
	for _, opt := range options {
		if opt.IsSurface && opt.FreightCharge > 0 {
			surface = append(surface, opt)
		}
	}
	if len(surface) == 0 {
		return options[0], true
	}
	sort.SliceStable(surface, func(i, j int) bool {
		return surface[i].Rate < surface[j].Rate
	})
	return surface[0], true
}
