package mdadapter

import (
	"github.com/yuin/goldmark/ast"
)

var KindHostsDirective = ast.NewNodeKind("HostsDirective")

// HostsDirective is the inline {{ hosts: <platform> }} directive.
type HostsDirective struct {
	ast.BaseInline
	Platform string
}

func (n *HostsDirective) Kind() ast.NodeKind {
	return KindHostsDirective
}

func (n *HostsDirective) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{
		"Platform": n.Platform,
	}, nil)
}
