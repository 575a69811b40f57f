package mdadapter

import (
	"bytes"
	"fmt"
	"html/template"
	"log/slog"

	_ "embed"

	"github.com/jgivc/lumy/internal/entity"
	"github.com/spf13/afero"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"go.abhg.dev/goldmark/frontmatter"
)

const defaultTitle = "lumy"

var (
	//go:embed templates/usage.md
	defaultUsageContent []byte

	//go:embed templates/page.html
	defaultPageContent string
)

type Frontmatter struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
}

type PageContext struct {
	ContentHTML template.HTML
	*Frontmatter
}

type mdAdapter struct {
	fs       afero.Fs
	fileName string
	md       goldmark.Markdown
	tpl      *template.Template
	log      *slog.Logger
}

func NewMDAdapter(fileName string, lookup HostLookup, log *slog.Logger) (*mdAdapter, error) {
	return NewMDAdapterWithFS(afero.NewOsFs(), fileName, lookup, log)
}

// NewMDAdapterWithFS renders fileName from fs, or the built in usage page when
// fileName is empty.
func NewMDAdapterWithFS(fs afero.Fs, fileName string, lookup HostLookup, log *slog.Logger) (*mdAdapter, error) {
	tpl, err := template.New("page").Parse(defaultPageContent)
	if err != nil {
		return nil, fmt.Errorf("cannot parse page template: %w", err)
	}

	md := goldmark.New(
		goldmark.WithExtensions(
			&frontmatter.Extender{},
			extension.Table,
			NewHostsExtension(lookup),
		),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
			html.WithXHTML(),
		),
	)

	return &mdAdapter{
		fs:       fs,
		fileName: fileName,
		md:       md,
		tpl:      tpl,
		log:      log.With(slog.String("item", "MDAdapter")),
	}, nil
}

func (a *mdAdapter) Render() (*entity.Page, error) {
	src, err := a.source()
	if err != nil {
		return nil, err
	}

	pc := parser.NewContext()

	var buf bytes.Buffer
	if err := a.md.Convert(src, &buf, parser.WithContext(pc)); err != nil {
		return nil, fmt.Errorf("cannot convert markdown: %w", err)
	}

	fm := &Frontmatter{}
	if data := frontmatter.Get(pc); data != nil {
		if err := data.Decode(fm); err != nil {
			return nil, fmt.Errorf("cannot decode frontmatter: %w", err)
		}
	}

	if fm.Title == "" {
		fm.Title = defaultTitle
	}

	var page bytes.Buffer
	if err := a.tpl.Execute(&page, &PageContext{ContentHTML: template.HTML(buf.String()), Frontmatter: fm}); err != nil {
		return nil, fmt.Errorf("cannot build page: %w", err)
	}

	a.log.Debug("Page rendered", slog.String("title", fm.Title), slog.Int("size", page.Len()))

	return &entity.Page{
		Title:   fm.Title,
		Content: page.String(),
	}, nil
}

func (a *mdAdapter) source() ([]byte, error) {
	if a.fileName == "" {
		return defaultUsageContent, nil
	}

	data, err := afero.ReadFile(a.fs, a.fileName)
	if err != nil {
		return nil, fmt.Errorf("cannot read page source %s: %w", a.fileName, err)
	}

	return data, nil
}
