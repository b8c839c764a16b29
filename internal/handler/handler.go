package handler

import (
	"context"

	"github.com/rs/zerolog"

	"gowa-blast/config"
	"gowa-blast/internal/model"
	"gowa-blast/internal/service"
)

// Sessions is the session manager surface the handlers need.
type Sessions interface {
	Status() model.Snapshot
	Connect(ctx context.Context, req service.ConnectRequest) (model.Snapshot, error)
	Disconnect(ctx context.Context) model.Snapshot
}

// Blasts runs a bulk send and reports per-row results.
type Blasts interface {
	Run(ctx context.Context, rows []model.Row, mode model.Mode, tmpl model.TemplateRef) (model.BlastReport, error)
}

// History lists persisted blast reports.
type History interface {
	ListBlasts(ctx context.Context, limit int) ([]model.BlastReport, error)
}

// Handler carries the wired services behind the HTTP routes.
type Handler struct {
	cfg      *config.Config
	sessions Sessions
	blaster  Blasts
	history  History
	log      zerolog.Logger
}

func New(cfg *config.Config, sessions Sessions, blaster Blasts, history History, log zerolog.Logger) *Handler {
	return &Handler{
		cfg:      cfg,
		sessions: sessions,
		blaster:  blaster,
		history:  history,
		log:      log,
	}
}
