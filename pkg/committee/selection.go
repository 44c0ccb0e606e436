package committee

// Select chooses exactly n providers from pool, maximizing family
// diversity: it never picks two providers from the same family while an
// unused family remains. Pool order is preserved as the
// tie-break so selection is deterministic given a stable COMMITTEE_POOL
// configuration.
func Select(pool []Provider, n int) []Provider {
	if n >= len(pool) {
		return append([]Provider(nil), pool...)
	}

	usedFamily := make(map[string]bool)
	var selected []Provider

	// First pass: one provider per unused family, in pool order.
	for _, p := range pool {
		if len(selected) >= n {
			break
		}
		if usedFamily[p.Family()] {
			continue
		}
		selected = append(selected, p)
		usedFamily[p.Family()] = true
	}

	// Every family has now contributed at most one provider. If more
	// slots remain, fill them from providers not yet selected, in pool
	// order, even if that repeats a family.
	if len(selected) < n {
		chosen := make(map[string]bool, len(selected))
		for _, p := range selected {
			chosen[p.ID()] = true
		}
		for _, p := range pool {
			if len(selected) >= n {
				break
			}
			if chosen[p.ID()] {
				continue
			}
			selected = append(selected, p)
			chosen[p.ID()] = true
		}
	}

	return selected
}
