package xslog

import (
	"context"
	"log/slog"
	"slices"
)

var _ slog.Handler = (*FilterHandler)(nil)

type FilterFunc func(ctx context.Context, record slog.Record) bool

func NewFilterHandler(handler slog.Handler, filter FilterFunc) *FilterHandler {
	return &FilterHandler{handler: handler, filter: filter}
}

type FilterHandler struct {
	handler slog.Handler
	filter  FilterFunc
}

func (f *FilterHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return f.handler.Enabled(ctx, level)
}

func (f *FilterHandler) Handle(ctx context.Context, record slog.Record) error {
	if f.filter != nil {
		if !f.filter(ctx, record) {
			return nil
		}
	}
	return f.handler.Handle(ctx, record)
}

func (f *FilterHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return NewFilterHandler(f.handler.WithAttrs(attrs), f.filter)
}

func (f *FilterHandler) WithGroup(name string) slog.Handler {
	return NewFilterHandler(f.handler.WithGroup(name), f.filter)
}

// DropAttrValues drops records below minLevel that carry a string attribute
// key with one of the given values.
func DropAttrValues(minLevel slog.Level, key string, values ...string) FilterFunc {
	return func(_ context.Context, record slog.Record) bool {
		if record.Level >= minLevel {
			return true
		}
		keep := true
		record.Attrs(func(attr slog.Attr) bool {
			if attr.Key == key && slices.Contains(values, attr.Value.String()) {
				keep = false
				return false
			}
			return true
		})
		return keep
	}
}
