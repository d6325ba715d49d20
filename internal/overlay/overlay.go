// Package overlay defines the content contract for VoiceTerm's overlay
// panels (help, settings, theme picker, …). Rendering of an overlay's
// pixels is the Output Writer's job (internal/writer.writeOverlayPanel);
// this package only supplies what to draw and how tall it is, since the
// Geometry Reconciler needs the height before the writer ever runs.
package overlay

// Overlay is the boundary every overlay-mode content provider
// implements. Height is queried separately from Lines so the Geometry
// Reconciler can reserve rows without forcing a render.
type Overlay interface {
	// Lines returns the overlay's content, one string per row, including
	// any title or footer rows the provider wants shown; internal/writer
	// adds no border or title of its own and truncates rows wider than
	// cols. Help word-wraps its entries to cols (see hud.WrapLine).
	Lines(cols int) []string
	// Height returns len(Lines(cols)), for Geometry Reconciler calls
	// that only need a row count.
	Height(cols int) int
}
