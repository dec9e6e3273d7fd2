package lsp

import (
	"context"
	"encoding/json"

	"sfcls/internal/engine"
	"sfcls/internal/sourcemap"
	"sfcls/internal/vdoc"
)

const (
	completionItemKindText     = 1
	completionItemKindMethod   = 2
	completionItemKindFunction = 3
	completionItemKindField    = 5
	completionItemKindVariable = 6
	completionItemKindClass    = 7
	completionItemKindModule   = 9
	completionItemKindProperty = 10
	completionItemKindValue    = 12
	completionItemKindConstant = 21
)

func (s *Server) handleCompletion(msg *rpcMessage) error {
	var params completionParams
	if len(msg.Params) > 0 {
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			return s.sendError(msg.ID, -32602, "invalid params")
		}
	}
	d := s.lookupDoc(params.TextDocument.URI)
	if d == nil || s.script == nil {
		return s.sendResponse(msg.ID, completionList{Items: []completionItem{}})
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	doc := d.docs.Get(d.id)
	offset := offsetForPositionInDoc(doc, params.Position)

	vd, m, vOff, ok := completionTarget(d, offset)
	if !ok {
		return s.sendResponse(msg.ID, completionList{Items: []completionItem{}})
	}

	ctx := s.baseCtx
	if ctx == nil {
		ctx = context.Background()
	}
	list, err := s.script.Complete(ctx, vd, vOff)
	if err != nil {
		s.logf("completion failed for %s: %v", params.TextDocument.URI, err)
		return s.sendResponse(msg.ID, completionList{Items: []completionItem{}})
	}

	items := make([]completionItem, 0, len(list.Items))
	for _, it := range list.Items {
		out := s.toLSPCompletionItem(d, m, it)
		if it.NeedsResolve {
			out.Data = &completionData{URI: d.uri, Doc: vd.URI, Item: it}
		}
		items = append(items, out)
	}
	return s.sendResponse(msg.ID, completionList{IsIncomplete: list.Incomplete, Items: items})
}

// handleCompletionResolve fills in the lazy fields of an item produced by
// handleCompletion. The data payload names the component and the virtual
// document the item came from; items without it are echoed back unchanged.
func (s *Server) handleCompletionResolve(msg *rpcMessage) error {
	var item completionItem
	if len(msg.Params) > 0 {
		if err := json.Unmarshal(msg.Params, &item); err != nil {
			return s.sendError(msg.ID, -32602, "invalid params")
		}
	}
	data := item.Data
	if data == nil || s.script == nil {
		return s.sendResponse(msg.ID, item)
	}
	d := s.lookupDoc(data.URI)
	if d == nil {
		return s.sendResponse(msg.ID, item)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	vd, m := d.virtualByURI(data.Doc)
	if vd == nil || m == nil {
		item.Data = nil
		return s.sendResponse(msg.ID, item)
	}

	ctx := s.baseCtx
	if ctx == nil {
		ctx = context.Background()
	}
	resolved, err := s.script.ResolveCompletion(ctx, vd, data.Item)
	if err != nil {
		s.logf("completion resolve failed for %s: %v", data.URI, err)
		item.Data = nil
		return s.sendResponse(msg.ID, item)
	}
	out := s.toLSPCompletionItem(d, m, resolved)
	return s.sendResponse(msg.ID, out)
}

// completionTarget picks the virtual document that answers completion at a
// component offset. The setup completion overlay wins over the lowered
// template; the CSS class document covers attribute positions in the markup.
func completionTarget(d *openDoc, offset uint32) (*vdoc.Document, *sourcemap.Map, uint32, bool) {
	var candidates []vdoc.Artifact
	if setup := d.file.Setup(); setup != nil {
		candidates = append(candidates, setup.Completion)
	}
	if tmpl := d.file.TemplateScript(); tmpl != nil {
		candidates = append(candidates, tmpl.Script, tmpl.CSS)
	}
	for _, art := range candidates {
		if art.Doc == nil || art.Map == nil {
			continue
		}
		if vOff, _, ok := art.Map.MappedPoint(offset, sourcemap.CapCompletion); ok {
			return art.Doc, art.Map, vOff, true
		}
	}
	return nil, nil, 0, false
}

func (s *Server) toLSPCompletionItem(d *openDoc, m *sourcemap.Map, it engine.CompletionItem) completionItem {
	out := completionItem{
		Label:      it.Label,
		Kind:       completionKindCode(it.Kind),
		Detail:     it.Detail,
		InsertText: it.InsertText,
	}
	doc := d.docs.Get(d.id)
	for _, edit := range it.Edits {
		hits := m.SourceRanges(edit.Range, sourcemap.CapCompletion, true)
		if len(hits) == 0 {
			continue
		}
		mapped := textEdit{
			Range:   rangeForOffsets(doc, hits[0].Range.Start, hits[0].Range.End),
			NewText: edit.NewText,
		}
		if out.TextEdit == nil {
			out.TextEdit = &mapped
			continue
		}
		out.AdditionalTextEdits = append(out.AdditionalTextEdits, mapped)
	}
	return out
}

func completionKindCode(kind string) int {
	switch kind {
	case "function", "method":
		return completionItemKindFunction
	case "field":
		return completionItemKindField
	case "variable", "binding":
		return completionItemKindVariable
	case "class", "component":
		return completionItemKindClass
	case "module":
		return completionItemKindModule
	case "property", "prop":
		return completionItemKindProperty
	case "value":
		return completionItemKindValue
	case "constant":
		return completionItemKindConstant
	default:
		return completionItemKindText
	}
}
