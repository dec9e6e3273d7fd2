// Package diag defines the diagnostic model shared by every producer in the
// component-file pipeline: the embedded-language engines report findings over
// virtual documents, the aggregation engine remaps them to component-file
// coordinates, and the CLI / LSP layers render them.
//
// Diagnostic is the central record:
//
//   - Severity – hint / info / warning / error, matching editor conventions.
//   - Code – compact numeric identifier with a stable string form.
//   - Message – human oriented text; keep it short and actionable.
//   - Primary span – the canonical source.Span pointing at the issue.
//   - Tags – semantic markers such as "unnecessary" used by filtered passes.
//   - Notes – optional secondary spans/messages for additional context.
//   - Fixes – optional structured edits a client may apply.
//
// Package diag performs no formatting or IO. Rendering lives in
// internal/diagfmt; aggregation and remapping live in internal/diagnostics.
package diag
