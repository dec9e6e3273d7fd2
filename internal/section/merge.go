package section

// Merge patches the freshly extracted next into prev in place, index-aligned
// for the positional arrays, so downstream caches keyed on slot identity see
// "this specific style block changed" instead of "styles changed". Surplus
// trailing slots are dropped, shortfalls appended. Returns prev (mutated),
// or next when there is no previous parse.
func Merge(prev, next *Sections) *Sections {
	if prev == nil {
		return next
	}
	prev.Template = mergeSlot(prev.Template, next.Template)
	prev.ScriptSetup = mergeSlot(prev.ScriptSetup, next.ScriptSetup)
	prev.Script = mergeSlot(prev.Script, next.Script)
	prev.Styles = mergeList(prev.Styles, next.Styles)
	prev.Customs = mergeList(prev.Customs, next.Customs)
	return prev
}

func mergeSlot(prev, next *Section) *Section {
	if prev == nil || next == nil {
		return next
	}
	*prev = *next
	return prev
}

func mergeList(prev, next []*Section) []*Section {
	n := len(prev)
	if len(next) < n {
		n = len(next)
	}
	for i := 0; i < n; i++ {
		*prev[i] = *next[i]
	}
	if len(next) > len(prev) {
		return append(prev, next[len(prev):]...)
	}
	return prev[:len(next)]
}
