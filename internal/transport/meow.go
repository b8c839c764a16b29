package transport

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"

	"gowa-blast/internal/helper"
	"gowa-blast/internal/model"
)

// MeowConfig carries everything the paired-device variants need.
type MeowConfig struct {
	Container   *sqlstore.Container
	Mode        model.ConnectMode // ConnectQR or ConnectCode
	PhoneNumber string            // required for ConnectCode
	CountryCode string
	PairTimeout time.Duration
}

// MeowAdapter drives a WhatsApp Web session over whatsmeow. It covers
// both pairing variants: QR scan and phone-number linking code. A
// restored device (credentials already in the store) skips pairing and
// authenticates straight from Connect.
type MeowAdapter struct {
	cfg  MeowConfig
	emit EmitFunc
	log  zerolog.Logger

	mu         sync.Mutex
	client     *whatsmeow.Client
	pairCancel context.CancelFunc
}

func NewMeow(cfg MeowConfig, emit EmitFunc, log zerolog.Logger) *MeowAdapter {
	return &MeowAdapter{cfg: cfg, emit: emit, log: log}
}

var _ Adapter = (*MeowAdapter)(nil)

func (a *MeowAdapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.client == nil {
		device, err := a.cfg.Container.GetFirstDevice(ctx)
		if err != nil {
			return fmt.Errorf("load device store: %w", err)
		}
		client := whatsmeow.NewClient(device, waLog.Zerolog(a.log.With().Str("component", "whatsmeow").Logger()))
		// Reconnects are scheduled by the session manager so that a
		// disconnect can cancel them; whatsmeow must not race it.
		client.EnableAutoReconnect = false
		client.AddEventHandler(a.handleEvent)
		a.client = client
	}

	if a.client.Store.ID != nil {
		// Restored device: no pairing round, credentials are on disk.
		if err := a.client.Connect(); err != nil {
			return fmt.Errorf("connect: %w", err)
		}
		a.emit(Event{Kind: EventAuthenticated})
		return nil
	}

	switch a.cfg.Mode {
	case model.ConnectCode:
		return a.startPhonePair()
	default:
		return a.startQRPair()
	}
}

// startQRPair connects the socket and streams QR codes until the scan
// succeeds or the pairing window closes. The window gets its own
// context so it survives the HTTP request that triggered it.
func (a *MeowAdapter) startQRPair() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.PairTimeout)
	qrChan, err := a.client.GetQRChannel(ctx)
	if err != nil {
		cancel()
		return fmt.Errorf("get qr channel: %w", err)
	}
	if err := a.client.Connect(); err != nil {
		cancel()
		return fmt.Errorf("connect: %w", err)
	}
	a.pairCancel = cancel

	go func() {
		defer cancel()
		for evt := range qrChan {
			switch {
			case evt.Event == "code":
				a.emit(Event{Kind: EventPairingCode, Code: evt.Code})
			case evt.Event == "success":
				a.emit(Event{Kind: EventAuthenticated})
				return
			case evt.Event == "timeout":
				a.emit(Event{Kind: EventFatal, Err: errors.New("qr code expired before it was scanned")})
				return
			case strings.HasPrefix(evt.Event, "err-"):
				a.emit(Event{Kind: EventFatal, Err: fmt.Errorf("pairing failed: %s", evt.Event)})
				return
			}
		}
	}()
	return nil
}

// startPhonePair connects the socket and requests a numeric linking
// code for the configured phone number. Completion arrives later as a
// PairSuccess event.
func (a *MeowAdapter) startPhonePair() error {
	msisdn, err := helper.NormalizeMSISDN(a.cfg.PhoneNumber, a.cfg.CountryCode)
	if err != nil {
		return err
	}
	if err := a.client.Connect(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.PairTimeout)
	a.pairCancel = cancel
	client := a.client

	go func() {
		defer cancel()
		// PairPhone needs the socket up before it can request a code.
		if err := waitConnected(ctx, client); err != nil {
			a.emit(Event{Kind: EventFatal, Err: fmt.Errorf("socket never came up: %w", err)})
			return
		}
		code, err := client.PairPhone(ctx, msisdn, true, whatsmeow.PairClientChrome, "Chrome (Linux)")
		if err != nil {
			a.emit(Event{Kind: EventFatal, Err: fmt.Errorf("request pairing code: %w", err)})
			return
		}
		a.emit(Event{Kind: EventPairingCode, Code: code})
	}()
	return nil
}

func waitConnected(ctx context.Context, client *whatsmeow.Client) error {
	tick := time.NewTicker(200 * time.Millisecond)
	defer tick.Stop()
	for !client.IsConnected() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
		}
	}
	return nil
}

func (a *MeowAdapter) handleEvent(evt interface{}) {
	switch e := evt.(type) {
	case *events.PairSuccess:
		a.log.Info().Str("jid", e.ID.String()).Msg("device paired")
		a.emit(Event{Kind: EventAuthenticated})
	case *events.Connected:
		a.emit(Event{Kind: EventConnected})
	case *events.Disconnected:
		a.emit(Event{Kind: EventDisconnected})
	case *events.LoggedOut:
		a.log.Warn().Str("reason", e.Reason.String()).Msg("logged out by remote")
		a.emit(Event{Kind: EventLoggedOut})
	case *events.StreamReplaced:
		a.emit(Event{Kind: EventFatal, Err: errors.New("stream replaced by another client")})
	}
}

func (a *MeowAdapter) SendText(ctx context.Context, recipient, body string) error {
	client := a.currentClient()
	if client == nil || !client.IsConnected() {
		return errors.New("whatsapp connection lost")
	}

	jid, err := helper.FormatPhoneNumber(recipient, a.cfg.CountryCode)
	if err != nil {
		return err
	}
	onWA, err := client.IsOnWhatsApp(ctx, []string{jid.User})
	if err != nil {
		return fmt.Errorf("verify number: %w", err)
	}
	if len(onWA) == 0 || !onWA[0].IsIn {
		return fmt.Errorf("%s is not registered on whatsapp", recipient)
	}

	msg := &waE2E.Message{Conversation: &body}
	if _, err := client.SendMessage(ctx, jid, msg); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// Disconnect unlinks the device and wipes its stored credentials. When
// the logout round-trip cannot be made (socket already gone, or the
// remote side logged us out first) the local store is deleted directly
// so the next connect starts from a clean pairing.
func (a *MeowAdapter) Disconnect(ctx context.Context) {
	a.mu.Lock()
	cancel := a.pairCancel
	a.pairCancel = nil
	client := a.client
	a.client = nil
	a.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if client == nil {
		return
	}
	if client.Store.ID != nil {
		if err := client.Logout(ctx); err != nil {
			a.log.Warn().Err(err).Msg("logout failed, deleting local device store")
			if err := client.Store.Delete(ctx); err != nil {
				a.log.Warn().Err(err).Msg("delete device store failed")
			}
		}
	}
	client.Disconnect()
}

// Close drops the socket but keeps credentials so the session can be
// restored on the next boot.
func (a *MeowAdapter) Close() {
	a.mu.Lock()
	cancel := a.pairCancel
	a.pairCancel = nil
	client := a.client
	a.client = nil
	a.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if client != nil {
		client.Disconnect()
	}
}

func (a *MeowAdapter) currentClient() *whatsmeow.Client {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.client
}
