package page

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jgivc/lumy/internal/entity"
)

const (
	serviceName = "page"
)

type PageRenderer interface {
	Render() (*entity.Page, error)
}

type pageService struct {
	renderer PageRenderer

	mu   sync.Mutex
	page *entity.Page

	log *slog.Logger
}

func NewPageService(renderer PageRenderer, log *slog.Logger) *pageService {
	return &pageService{
		renderer: renderer,
		log:      log.With(slog.String("service", serviceName)),
	}
}

// GetPage renders the page on first use and serves it from memory afterwards.
// A failed render is retried on the next call.
func (p *pageService) GetPage(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.page != nil {
		return p.page.Content, nil
	}

	page, err := p.renderer.Render()
	if err != nil {
		p.log.Error("Cannot render page", slog.Any("error", err))

		return "", fmt.Errorf("cannot render page: %w", err)
	}

	p.page = page

	return page.Content, nil
}
