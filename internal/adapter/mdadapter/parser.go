package mdadapter

import (
	"regexp"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

var hostsDirectiveRegexp = regexp.MustCompile(`^{{\s*hosts:\s*([a-z]+)\s*}}`)

type HostsDirectiveParser struct{}

func NewHostsDirectiveParser() parser.InlineParser {
	return &HostsDirectiveParser{}
}

func (s *HostsDirectiveParser) Trigger() []byte {
	return []byte{'{'}
}

func (s *HostsDirectiveParser) Parse(parent ast.Node, block text.Reader, pc parser.Context) ast.Node {
	line, _ := block.PeekLine()

	matches := hostsDirectiveRegexp.FindSubmatch(line)
	if matches == nil {
		return nil
	}

	block.Advance(len(matches[0]))

	return &HostsDirective{
		Platform: string(matches[1]),
	}
}
