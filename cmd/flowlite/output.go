package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/rendis/flowlite/internal/expressions"
)

// printer writes command results as indented JSON, optionally shaped by a jq
// program.
type printer struct {
	w     io.Writer
	query string
	jq    *expressions.GoJQEngine
}

func newPrinter(w io.Writer, query string) *printer {
	return &printer{w: w, query: query, jq: expressions.NewGoJQEngine()}
}

func (p *printer) print(ctx context.Context, v any) error {
	if p.query == "" {
		return p.encode(v)
	}
	out, err := p.jq.Query(ctx, p.query, v)
	if err != nil {
		return err
	}
	for _, r := range out {
		if s, ok := r.(string); ok {
			fmt.Fprintln(p.w, s)
			continue
		}
		if err := p.encode(r); err != nil {
			return err
		}
	}
	return nil
}

func (p *printer) encode(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
