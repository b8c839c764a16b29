package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"gowa-blast/internal/model"
	"gowa-blast/internal/transport"
)

// SessionGate hands out the transport when the session can send.
type SessionGate interface {
	Ready() (transport.Adapter, error)
}

// Recorder persists finished blast reports. Failures are logged and
// never fail the blast itself.
type Recorder interface {
	InsertBlast(ctx context.Context, report model.BlastReport) error
}

// Blaster sends one batch at a time with a fixed pause between sends.
// Serialization is deliberate: WhatsApp bans accounts that burst, so a
// second batch is rejected rather than interleaved.
type Blaster struct {
	gate     SessionGate
	recorder Recorder
	pace     time.Duration
	log      zerolog.Logger

	mu      sync.Mutex
	running bool
}

func NewBlaster(gate SessionGate, recorder Recorder, pace time.Duration, log zerolog.Logger) *Blaster {
	return &Blaster{gate: gate, recorder: recorder, pace: pace, log: log}
}

// Run sends the batch row by row and returns a report mirroring the
// input order. A send failure marks that row and the batch continues;
// only precondition failures reject the whole batch before any send.
func (b *Blaster) Run(ctx context.Context, rows []model.Row, mode model.Mode, tmpl model.TemplateRef) (model.BlastReport, error) {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return model.BlastReport{}, ErrBusy
	}
	b.running = true
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		b.running = false
		b.mu.Unlock()
	}()

	adapter, err := b.gate.Ready()
	if err != nil {
		return model.BlastReport{}, err
	}
	if len(rows) == 0 {
		return model.BlastReport{}, ErrNoRows
	}

	var templates transport.TemplateSender
	if mode == model.ModeTemplate {
		if strings.TrimSpace(tmpl.Name) == "" {
			return model.BlastReport{}, ErrNoTemplate
		}
		sender, ok := adapter.(transport.TemplateSender)
		if !ok {
			return model.BlastReport{}, ErrTemplateUnsupported
		}
		templates = sender
	}

	report := model.BlastReport{
		ID:           uuid.NewString(),
		Mode:         mode,
		TemplateName: tmpl.Name,
		CreatedAt:    time.Now().UTC(),
		Results:      make([]model.BlastResult, 0, len(rows)),
	}
	b.log.Info().Str("blast_id", report.ID).Str("mode", string(mode)).Int("rows", len(rows)).Msg("blast started")

	for _, row := range rows {
		result := model.BlastResult{Recipient: row.Recipient}
		var sendErr error
		if mode == model.ModeTemplate {
			result.Message = tmpl.Describe()
			sendErr = templates.SendTemplate(ctx, row.Recipient, tmpl)
		} else {
			result.Message = row.Message
			sendErr = adapter.SendText(ctx, row.Recipient, row.Message)
		}
		if sendErr != nil {
			result.Error = sendErr.Error()
			report.Failed++
			b.log.Warn().Str("blast_id", report.ID).Str("recipient", row.Recipient).Err(sendErr).Msg("send failed")
		} else {
			result.Success = true
			report.Sent++
		}
		report.Results = append(report.Results, result)

		// Pause after every send, the last one included, so two
		// back-to-back batches cannot burst across the boundary.
		if err := b.pause(ctx); err != nil {
			b.log.Warn().Str("blast_id", report.ID).Err(err).Msg("blast interrupted")
			break
		}
	}
	report.Total = len(report.Results)

	if b.recorder != nil {
		if err := b.recorder.InsertBlast(context.WithoutCancel(ctx), report); err != nil {
			b.log.Warn().Str("blast_id", report.ID).Err(err).Msg("persist blast report failed")
		}
	}

	done := b.log.Info()
	if report.Failed > 0 {
		done = b.log.Warn()
	}
	done.Str("blast_id", report.ID).Int("sent", report.Sent).Int("failed", report.Failed).Msg("blast finished")
	return report, nil
}

func (b *Blaster) pause(ctx context.Context) error {
	if b.pace <= 0 {
		return nil
	}
	timer := time.NewTimer(b.pace)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
