package mdadapter

import (
	"html"

	"github.com/jgivc/lumy/internal/entity"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/util"
)

// HostLookup returns the accepted host names of a platform.
type HostLookup func(platform entity.Platform) []string

type HostsDirectiveRenderer struct {
	lookup HostLookup
}

func NewHostsDirectiveRenderer(lookup HostLookup) renderer.NodeRenderer {
	return &HostsDirectiveRenderer{lookup: lookup}
}

func (r *HostsDirectiveRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(KindHostsDirective, r.renderHostsDirective)
}

func (r *HostsDirectiveRenderer) renderHostsDirective(w util.BufWriter, source []byte, n ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}

	directive := n.(*HostsDirective)

	hosts := r.lookup(entity.Platform(directive.Platform))
	if len(hosts) < 1 {
		w.WriteString(`<span class="hosts">none</span>`)

		return ast.WalkContinue, nil
	}

	w.WriteString(`<span class="hosts">`)
	for i, host := range hosts {
		if i > 0 {
			w.WriteString(", ")
		}

		w.WriteString("<code>")
		w.WriteString(html.EscapeString(host))
		w.WriteString("</code>")
	}
	w.WriteString("</span>")

	return ast.WalkContinue, nil
}
