package logging

import (
	"context"
	"log/slog"
)

// componentLevelHandler applies a per-component minimum level. The component
// is taken from a "component" attribute bound via WithAttrs or carried on the
// record itself.
type componentLevelHandler struct {
	next      slog.Handler
	base      slog.Level
	overrides map[string]slog.Level
	component string
}

func newComponentLevelHandler(next slog.Handler, base slog.Level, overrides map[string]slog.Level) slog.Handler {
	return &componentLevelHandler{next: next, base: base, overrides: overrides}
}

func (h *componentLevelHandler) threshold(component string) slog.Level {
	if lvl, ok := h.overrides[component]; ok {
		return lvl
	}
	return h.base
}

func (h *componentLevelHandler) Enabled(ctx context.Context, level slog.Level) bool {
	min := h.threshold(h.component)
	if h.component == "" {
		// The record may still carry a component attribute; defer to Handle.
		for _, lvl := range h.overrides {
			if lvl < min {
				min = lvl
			}
		}
	}
	if level < min {
		return false
	}
	return h.next.Enabled(ctx, level)
}

func (h *componentLevelHandler) Handle(ctx context.Context, record slog.Record) error {
	component := h.component
	if component == "" {
		record.Attrs(func(attr slog.Attr) bool {
			if attr.Key == FieldComponent {
				component = attr.Value.String()
				return false
			}
			return true
		})
	}
	if record.Level < h.threshold(component) {
		return nil
	}
	return h.next.Handle(ctx, record)
}

func (h *componentLevelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	component := h.component
	for _, attr := range attrs {
		if attr.Key == FieldComponent {
			component = attr.Value.String()
		}
	}
	return &componentLevelHandler{
		next:      h.next.WithAttrs(attrs),
		base:      h.base,
		overrides: h.overrides,
		component: component,
	}
}

func (h *componentLevelHandler) WithGroup(name string) slog.Handler {
	return &componentLevelHandler{
		next:      h.next.WithGroup(name),
		base:      h.base,
		overrides: h.overrides,
		component: h.component,
	}
}
