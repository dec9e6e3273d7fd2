// Package diagnostics aggregates every diagnostic producer over one component
// file into a single incremental stream. Producers run strictly in scheduling
// order on the calling goroutine; cancellation is polled between producers
// only, so one run's cost measurements are valid ordering inputs for the
// next.
package diagnostics

import (
	"context"
	"sort"

	"sfcls/internal/diag"
	"sfcls/internal/engine"
	"sfcls/internal/observ"
	"sfcls/internal/sfc"
	"sfcls/internal/source"
)

type family uint8

const (
	famAlways family = iota
	famScript
	famTemplate
)

// producer is one diagnostic pass. last holds the most recent remapped
// results; lastCostMS is a single wall-time sample used only to order the
// next run.
type producer struct {
	name       string
	family     family
	costSorted bool
	compute    func(ctx context.Context) []diag.Diagnostic

	last       []diag.Diagnostic
	lastCostMS float64
}

// Engine owns the fixed producer set for one file.
type Engine struct {
	file  *sfc.File
	docID source.DocID
	max   int

	script engine.ScriptEngine
	markup engine.MarkupEngine
	style  engine.StyleEngine

	always   []*producer
	scriptP  []*producer
	templP   []*producer
	lastEdit family
}

// NewEngine builds the producer set. docID names the component file in the
// caller's DocSet; every delivered diagnostic carries it. max bounds the
// merged stream (0 means unbounded).
func NewEngine(file *sfc.File, docID source.DocID, script engine.ScriptEngine, markup engine.MarkupEngine, style engine.StyleEngine, max int) *Engine {
	e := &Engine{
		file:     file,
		docID:    docID,
		max:      max,
		script:   script,
		markup:   markup,
		style:    style,
		lastEdit: famScript,
	}

	e.always = []*producer{
		{name: "style", family: famAlways, compute: e.runStyle},
		{name: "template", family: famAlways, compute: e.runTemplateStructural},
		{name: "script-missing", family: famAlways, compute: e.runScriptMissing},
	}
	e.scriptP = e.scriptFamily("script", e.setupDoc)
	e.templP = e.scriptFamily("template-script", e.templateDoc)
	e.templP = append(e.templP, &producer{
		name:    "template-script/unused-teleport",
		family:  famTemplate,
		compute: e.runTemplateUnusedTeleport,
	})
	return e
}

// scriptFamily builds the cost-sorted type-diagnostic trio plus the
// unused-only pass for one script-layer document.
func (e *Engine) scriptFamily(prefix string, doc func() docAndMap) []*producer {
	fam := famScript
	if prefix != "script" {
		fam = famTemplate
	}
	trio := []*producer{}
	for _, kind := range []engine.DiagnosticKind{engine.KindSemantic, engine.KindSyntactic, engine.KindSuggestion} {
		kind := kind
		trio = append(trio, &producer{
			name:       prefix + "/" + kind.String(),
			family:     fam,
			costSorted: true,
			compute: func(ctx context.Context) []diag.Diagnostic {
				return e.runScriptKind(ctx, doc, kind, false)
			},
		})
	}
	trio = append(trio, &producer{
		name:   prefix + "/unused",
		family: fam,
		compute: func(ctx context.Context) []diag.Diagnostic {
			return e.runScriptKind(ctx, doc, engine.KindSuggestion, true)
		},
	})
	return trio
}

// SetDoc re-points the component DocID delivered diagnostics carry. The LSP
// layer registers a fresh document version per edit and keeps one engine per
// open file.
func (e *Engine) SetDoc(id source.DocID) {
	e.docID = id
}

// NoteChange records which section family the latest edit touched; the
// matching producer family runs first on the next Run.
func (e *Engine) NoteChange(scriptChanged, templateScriptChanged bool) {
	switch {
	case scriptChanged:
		e.lastEdit = famScript
	case templateScriptChanged:
		e.lastEdit = famTemplate
	}
}

// Run executes every producer and streams monotonically improving merged
// batches through onBatch. isCancelled is polled before each producer; once
// it reports true the run stops and onBatch is never invoked again. When
// includeSideEffect is false, the family not matching the latest edit is
// still computed and merged, but its producers do not stream individually.
func (e *Engine) Run(ctx context.Context, onBatch func([]diag.Diagnostic), isCancelled func() bool, includeSideEffect bool) error {
	cancelled := func() bool {
		if ctx.Err() != nil {
			return true
		}
		return isCancelled != nil && isCancelled()
	}

	first, second := e.scriptP, e.templP
	if e.lastEdit == famTemplate {
		first, second = second, first
	}
	sortByCost(first)
	sortByCost(second)

	runGroup := func(group []*producer, stream bool) (aborted bool) {
		for _, p := range group {
			if cancelled() {
				return true
			}
			p.lastCostMS = observ.Measure(func() {
				p.last = p.compute(ctx)
			})
			if stream && onBatch != nil {
				onBatch(e.merged())
			}
		}
		return false
	}

	if runGroup(e.always, true) {
		return nil
	}
	if runGroup(first, true) {
		return nil
	}
	if runGroup(second, includeSideEffect) {
		return nil
	}
	if !includeSideEffect && !cancelled() && onBatch != nil {
		onBatch(e.merged())
	}
	return nil
}

// merged unions every producer's most recent results through a dedup
// reporter into a capped bag.
func (e *Engine) merged() []diag.Diagnostic {
	total := 0
	for _, group := range [][]*producer{e.always, e.scriptP, e.templP} {
		for _, p := range group {
			total += len(p.last)
		}
	}
	max := e.max
	if max <= 0 || max > total {
		max = total
	}
	bag := diag.NewBag(max)
	rep := diag.NewDedupReporter(diag.BagReporter{Bag: bag})
	for _, group := range [][]*producer{e.always, e.scriptP, e.templP} {
		for _, p := range group {
			for _, d := range p.last {
				rep.Report(d)
			}
		}
	}
	return bag.Items()
}

// sortByCost orders the cost-sorted prefix of a family ascending by the
// previous run's wall time, so cheap passes surface first.
func sortByCost(group []*producer) {
	n := 0
	for n < len(group) && group[n].costSorted {
		n++
	}
	sort.SliceStable(group[:n], func(i, j int) bool {
		return group[i].lastCostMS < group[j].lastCostMS
	})
}
