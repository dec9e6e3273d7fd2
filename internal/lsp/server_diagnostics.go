package lsp

import (
	"context"
	"sync/atomic"
	"time"

	"sfcls/internal/diag"
)

func (s *Server) scheduleDiagnostics() {
	s.mu.Lock()
	seq := atomic.AddUint64(&s.analysisSeq, 1)
	atomic.StoreUint64(&s.latestSeq, seq)
	if s.diagCancel != nil {
		s.diagCancel()
	}
	if s.debounceTimer != nil {
		s.debounceTimer.Stop()
	}
	s.debounceTimer = time.AfterFunc(s.debounce, func() {
		s.runDiagnostics(seq)
	})
	s.mu.Unlock()
}

func (s *Server) runDiagnostics(seq uint64) {
	if !s.isLatestSeq(seq) {
		return
	}
	s.mu.Lock()
	if s.diagCancel != nil {
		s.diagCancel()
	}
	base := s.baseCtx
	if base == nil {
		base = context.Background()
	}
	ctx, cancel := context.WithCancel(base)
	s.diagCancel = cancel
	docs := make([]*openDoc, 0, len(s.open))
	// Последний редактированный документ обрабатываем первым
	if last, ok := s.open[s.lastTouched]; ok {
		docs = append(docs, last)
	}
	for uri, d := range s.open {
		if uri == s.lastTouched {
			continue
		}
		docs = append(docs, d)
	}
	includeSideEffect := s.includeSideEffect
	trace := s.traceLSP
	s.mu.Unlock()

	if len(docs) == 0 {
		s.clearPublishedDiagnostics()
		return
	}

	stale := func() bool {
		return ctx.Err() != nil || !s.isLatestSeq(seq)
	}

	for _, d := range docs {
		if stale() {
			if trace {
				s.logf("analysis discard: seq=%d uri=%s", seq, d.uri)
			}
			return
		}
		s.runDocDiagnostics(ctx, seq, d, includeSideEffect, trace)
	}
}

// runDocDiagnostics drives one file's producer run, publishing each merged
// batch as it improves. Stale runs stop between producers and never publish
// again.
func (s *Server) runDocDiagnostics(ctx context.Context, seq uint64, d *openDoc, includeSideEffect bool, trace bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if s.script != nil {
		if _, err := d.file.UpdateCrossRefData(ctx); err != nil && trace {
			s.logf("crossref %s: %v", d.uri, err)
		}
	}

	stale := func() bool {
		return ctx.Err() != nil || !s.isLatestSeq(seq)
	}

	published := false
	err := d.eng.Run(ctx, func(batch []diag.Diagnostic) {
		if stale() {
			return
		}
		list := s.toLSPDiagnostics(d, batch)
		if err := s.sendPublish(d.uri, list); err != nil {
			s.logf("failed to publish diagnostics: %v", err)
			return
		}
		published = true
		if trace {
			s.logf("publishDiagnostics: uri=%s version=%d diags=%d", d.uri, d.version, len(list))
		}
	}, stale, includeSideEffect)
	if err != nil {
		s.logf("diagnostics failed for %s: %v", d.uri, err)
	}
	if !published {
		return
	}
	s.mu.Lock()
	s.published[d.uri] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) toLSPDiagnostics(d *openDoc, batch []diag.Diagnostic) []lspDiagnostic {
	out := make([]lspDiagnostic, 0, len(batch))
	for _, dg := range batch {
		doc := d.docs.Get(dg.Primary.Doc)
		if doc == nil {
			continue
		}
		item := lspDiagnostic{
			Range:    rangeForSpan(doc, dg.Primary),
			Severity: lspSeverity(dg.Severity),
			Code:     dg.Code.String(),
			Source:   "sfcls",
			Message:  dg.Message,
		}
		if dg.HasTag(diag.TagUnnecessary) {
			item.Tags = append(item.Tags, 1)
		}
		if dg.HasTag(diag.TagDeprecated) {
			item.Tags = append(item.Tags, 2)
		}
		out = append(out, item)
	}
	return out
}

// lspSeverity converts to the wire encoding (1=error .. 4=hint).
func lspSeverity(sev diag.Severity) int {
	switch sev {
	case diag.SevError:
		return 1
	case diag.SevWarning:
		return 2
	case diag.SevInfo:
		return 3
	default:
		return 4
	}
}

func (s *Server) clearPublishedDiagnostics() {
	s.mu.Lock()
	if len(s.published) == 0 {
		s.mu.Unlock()
		return
	}
	prev := s.published
	s.published = make(map[string]struct{})
	s.mu.Unlock()
	for uri := range prev {
		if err := s.sendPublish(uri, nil); err != nil {
			s.logf("failed to clear diagnostics: %v", err)
		}
	}
}
