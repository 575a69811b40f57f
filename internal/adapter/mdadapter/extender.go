package mdadapter

import (
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/util"
)

type HostsExtension struct {
	lookup HostLookup
}

func NewHostsExtension(lookup HostLookup) goldmark.Extender {
	return &HostsExtension{lookup: lookup}
}

func (e *HostsExtension) Extend(m goldmark.Markdown) {
	m.Parser().AddOptions(
		parser.WithInlineParsers(
			util.Prioritized(NewHostsDirectiveParser(), 500),
		),
	)
	m.Renderer().AddOptions(
		renderer.WithNodeRenderers(
			util.Prioritized(NewHostsDirectiveRenderer(e.lookup), 500),
		),
	)
}
