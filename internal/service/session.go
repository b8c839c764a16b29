package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"gowa-blast/internal/model"
	"gowa-blast/internal/transport"
)

const (
	credentialsKey       = "cloud_api"
	teardownTimeout      = 15 * time.Second
	reconnectDialTimeout = 30 * time.Second
)

// ConnectRequest selects the connection variant and carries its
// credentials. PhoneNumber is only meaningful for code pairing,
// AccountID and AccessToken only for the cloud variant.
type ConnectRequest struct {
	Mode        model.ConnectMode `json:"mode"`
	PhoneNumber string            `json:"phoneNumber"`
	AccountID   string            `json:"accountId"`
	AccessToken string            `json:"accessToken"`
}

// AdapterFactory builds the transport for a connect request. The emit
// func carries the adapter's asynchronous events back into the manager.
type AdapterFactory func(req ConnectRequest, emit transport.EmitFunc) (transport.Adapter, error)

// CredentialStore persists small opaque credential blobs by key.
type CredentialStore interface {
	SaveCredentials(ctx context.Context, key string, blob []byte) error
	LoadCredentials(ctx context.Context, key string) ([]byte, error)
	ClearCredentials(ctx context.Context, key string) error
}

// DeviceProbe reports whether a paired device store already exists.
type DeviceProbe interface {
	HasPairedDevice(ctx context.Context) bool
}

type cloudCredentials struct {
	AccountID   string `json:"accountId"`
	AccessToken string `json:"accessToken"`
}

// stamped pairs an adapter event with the session generation it
// belongs to, so events from torn-down sessions can be dropped.
type stamped struct {
	epoch uint64
	evt   transport.Event
}

// Manager owns the single WhatsApp session. All state lives behind one
// mutex and every asynchronous mutation funnels through the event loop,
// so transitions are serialized no matter which goroutine observed the
// underlying change.
type Manager struct {
	factory        AdapterFactory
	creds          CredentialStore
	devices        DeviceProbe
	renderQR       func(payload string) (string, error)
	reconnectDelay time.Duration
	log            zerolog.Logger

	events chan stamped

	mu         sync.RWMutex
	status     model.Status
	aux        *model.Auxiliary
	lastErr    string
	mode       model.ConnectMode
	adapter    transport.Adapter
	epoch      uint64
	reconnect  *time.Timer
	configured bool
}

// Options wires the manager's collaborators.
type Options struct {
	Factory        AdapterFactory
	Credentials    CredentialStore
	Devices        DeviceProbe
	RenderQR       func(payload string) (string, error)
	ReconnectDelay time.Duration
	Log            zerolog.Logger
}

func NewManager(ctx context.Context, opts Options) *Manager {
	m := &Manager{
		factory:        opts.Factory,
		creds:          opts.Credentials,
		devices:        opts.Devices,
		renderQR:       opts.RenderQR,
		reconnectDelay: opts.ReconnectDelay,
		log:            opts.Log,
		events:         make(chan stamped, 32),
		status:         model.StatusDisconnected,
	}
	if m.reconnectDelay <= 0 {
		m.reconnectDelay = 5 * time.Second
	}
	if m.renderQR == nil {
		m.renderQR = func(payload string) (string, error) { return payload, nil }
	}
	m.configured = m.probeConfigured(ctx)
	go m.run()
	return m
}

// Status returns a point-in-time snapshot. It never blocks on the
// transport or the database.
func (m *Manager) Status() model.Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() model.Snapshot {
	snap := model.Snapshot{
		Status:       m.status,
		Error:        m.lastErr,
		IsConfigured: m.configured,
	}
	if m.aux != nil {
		aux := *m.aux
		snap.Auxiliary = &aux
	}
	return snap
}

// Ready hands out the live transport when the session can send.
func (m *Manager) Ready() (transport.Adapter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.status != model.StatusReady || m.adapter == nil {
		return nil, ErrNotConnected
	}
	return m.adapter, nil
}

// Connect starts a session with the requested variant. Calling it while
// a session is already connecting or connected is a no-op that returns
// the current snapshot. The paired-device variants return immediately
// with status connecting and progress arrives via events; the cloud
// variant probes synchronously and returns ready or error.
func (m *Manager) Connect(ctx context.Context, req ConnectRequest) (model.Snapshot, error) {
	if req.Mode == "" {
		req.Mode = model.ConnectQR
	}
	if req.Mode == model.ConnectCloud {
		m.fillSavedCredentials(ctx, &req)
	}
	if err := validateRequest(req); err != nil {
		return m.Status(), err
	}

	m.mu.Lock()
	switch m.status {
	case model.StatusConnecting, model.StatusQRReady, model.StatusAuthenticated, model.StatusReady:
		snap := m.snapshotLocked()
		m.mu.Unlock()
		return snap, nil
	}

	m.epoch++
	epoch := m.epoch
	m.lastErr = ""
	m.aux = nil
	m.mode = req.Mode

	adapter, err := m.factory(req, m.emitFunc(epoch))
	if err != nil {
		m.status = model.StatusDisconnected
		m.mu.Unlock()
		return m.Status(), err
	}
	m.adapter = adapter
	m.status = model.StatusConnecting
	m.mu.Unlock()

	m.log.Info().Str("mode", string(req.Mode)).Msg("connecting session")

	if req.Mode == model.ConnectCloud {
		return m.connectCloud(ctx, epoch, adapter, req)
	}

	// Pairing outlives the request that triggered it; failures come
	// back through the event loop like any other transport fault.
	go func() {
		if err := adapter.Connect(context.Background()); err != nil {
			m.dispatch(epoch, transport.Event{Kind: transport.EventFatal, Err: err})
		}
	}()
	return m.Status(), nil
}

func (m *Manager) connectCloud(ctx context.Context, epoch uint64, adapter transport.Adapter, req ConnectRequest) (model.Snapshot, error) {
	err := adapter.Connect(ctx)

	m.mu.Lock()
	if epoch != m.epoch {
		snap := m.snapshotLocked()
		m.mu.Unlock()
		return snap, nil
	}
	if err != nil {
		m.adapter = nil
		m.status = model.StatusError
		m.lastErr = err.Error()
		snap := m.snapshotLocked()
		m.mu.Unlock()
		return snap, nil
	}
	m.status = model.StatusReady
	m.configured = true
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.saveCloudCredentials(ctx, req)
	return snap, nil
}

// Disconnect tears the session down from any state: it cancels pending
// pairing and reconnects, logs the device out, and removes stored
// credentials. Safe to call repeatedly.
func (m *Manager) Disconnect(ctx context.Context) model.Snapshot {
	m.mu.Lock()
	adapter := m.resetLocked()
	mode := m.mode
	m.status = model.StatusDisconnected
	m.lastErr = ""
	m.mu.Unlock()

	if adapter != nil {
		adapter.Disconnect(ctx)
	}
	if mode == model.ConnectCloud {
		m.clearCloudCredentials(ctx)
	}

	m.mu.Lock()
	m.configured = m.probeConfigured(ctx)
	snap := m.snapshotLocked()
	m.mu.Unlock()
	return snap
}

// Shutdown closes the live transport without logging the device out, so
// the next boot can restore the session from its stored credentials.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	adapter := m.resetLocked()
	m.status = model.StatusDisconnected
	m.mu.Unlock()

	if closer, ok := adapter.(transport.Closer); ok {
		closer.Close()
	}
}

func validateRequest(req ConnectRequest) error {
	switch req.Mode {
	case model.ConnectQR:
		return nil
	case model.ConnectCode:
		if strings.TrimSpace(req.PhoneNumber) == "" {
			return fmt.Errorf("%w: phone number required for code pairing", ErrMissingCredentials)
		}
		return nil
	case model.ConnectCloud:
		if req.AccountID == "" || req.AccessToken == "" {
			return fmt.Errorf("%w: account id and access token required for cloud api", ErrMissingCredentials)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMode, req.Mode)
	}
}

func (m *Manager) emitFunc(epoch uint64) transport.EmitFunc {
	return func(evt transport.Event) { m.dispatch(epoch, evt) }
}

// dispatch queues an adapter event for the state loop without blocking
// the transport goroutine that observed it.
func (m *Manager) dispatch(epoch uint64, evt transport.Event) {
	select {
	case m.events <- stamped{epoch: epoch, evt: evt}:
	default:
		m.log.Warn().Str("kind", string(evt.Kind)).Msg("event queue full, dropping event")
	}
}

func (m *Manager) run() {
	for s := range m.events {
		m.apply(s.epoch, s.evt)
	}
}

func (m *Manager) apply(epoch uint64, evt transport.Event) {
	m.mu.Lock()
	teardown := m.applyLocked(epoch, evt)
	m.mu.Unlock()

	if teardown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
		teardown.Disconnect(ctx)
		cancel()
	}
}

// applyLocked is the single place session state transitions happen.
// Events stamped with an old epoch belong to a torn-down session and
// are dropped. It returns an adapter when the event ends the session
// and the caller must finish the teardown outside the lock.
func (m *Manager) applyLocked(epoch uint64, evt transport.Event) transport.Adapter {
	if epoch != m.epoch {
		return nil
	}

	switch evt.Kind {
	case transport.EventPairingCode:
		if m.status != model.StatusConnecting && m.status != model.StatusQRReady {
			return nil
		}
		aux, err := m.renderAux(evt.Code)
		if err != nil {
			m.log.Warn().Err(err).Msg("render pairing code failed")
			return nil
		}
		m.aux = &aux
		m.status = model.StatusQRReady

	case transport.EventAuthenticated:
		if m.status == model.StatusAuthenticated || m.status == model.StatusReady {
			return nil
		}
		m.aux = nil
		m.status = model.StatusAuthenticated
		m.configured = true

	case transport.EventConnected:
		m.aux = nil
		m.lastErr = ""
		m.status = model.StatusReady

	case transport.EventDisconnected:
		if m.status == model.StatusDisconnected || m.status == model.StatusError {
			return nil
		}
		m.aux = nil
		m.status = model.StatusConnecting
		m.scheduleReconnectLocked(epoch)

	case transport.EventLoggedOut:
		adapter := m.resetLocked()
		m.status = model.StatusDisconnected
		m.lastErr = ""
		m.configured = false
		return adapter

	case transport.EventFatal:
		adapter := m.resetLocked()
		m.status = model.StatusError
		if evt.Err != nil {
			m.lastErr = evt.Err.Error()
		} else {
			m.lastErr = "connection failed"
		}
		return adapter
	}
	return nil
}

func (m *Manager) renderAux(code string) (model.Auxiliary, error) {
	if m.mode == model.ConnectQR {
		rendered, err := m.renderQR(code)
		if err != nil {
			return model.Auxiliary{}, err
		}
		return model.Auxiliary{Kind: model.AuxQR, Value: rendered}, nil
	}
	return model.Auxiliary{Kind: model.AuxCode, Value: code}, nil
}

// resetLocked invalidates the current session generation: it stops any
// pending reconnect, bumps the epoch so in-flight events and timers go
// stale, and detaches the adapter for the caller to tear down.
func (m *Manager) resetLocked() transport.Adapter {
	if m.reconnect != nil {
		m.reconnect.Stop()
		m.reconnect = nil
	}
	m.epoch++
	adapter := m.adapter
	m.adapter = nil
	m.aux = nil
	return adapter
}

func (m *Manager) scheduleReconnectLocked(epoch uint64) {
	if m.reconnect != nil {
		m.reconnect.Stop()
	}
	m.log.Info().Dur("delay", m.reconnectDelay).Msg("connection dropped, reconnect scheduled")
	m.reconnect = time.AfterFunc(m.reconnectDelay, func() { m.reconnectNow(epoch) })
}

func (m *Manager) reconnectNow(epoch uint64) {
	m.mu.Lock()
	if epoch != m.epoch || m.status != model.StatusConnecting || m.adapter == nil {
		m.mu.Unlock()
		return
	}
	adapter := m.adapter
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), reconnectDialTimeout)
	err := adapter.Connect(ctx)
	cancel()
	if err == nil {
		return
	}

	m.log.Warn().Err(err).Msg("reconnect attempt failed")
	m.mu.Lock()
	if epoch == m.epoch && m.status == model.StatusConnecting {
		m.scheduleReconnectLocked(epoch)
	}
	m.mu.Unlock()
}

func (m *Manager) probeConfigured(ctx context.Context) bool {
	if m.devices != nil && m.devices.HasPairedDevice(ctx) {
		return true
	}
	if m.creds != nil {
		if blob, err := m.creds.LoadCredentials(ctx, credentialsKey); err == nil && len(blob) > 0 {
			return true
		}
	}
	return false
}

func (m *Manager) fillSavedCredentials(ctx context.Context, req *ConnectRequest) {
	if m.creds == nil || (req.AccountID != "" && req.AccessToken != "") {
		return
	}
	blob, err := m.creds.LoadCredentials(ctx, credentialsKey)
	if err != nil || len(blob) == 0 {
		return
	}
	var saved cloudCredentials
	if err := json.Unmarshal(blob, &saved); err != nil {
		m.log.Warn().Err(err).Msg("stored cloud credentials are unreadable")
		return
	}
	if req.AccountID == "" {
		req.AccountID = saved.AccountID
	}
	if req.AccessToken == "" {
		req.AccessToken = saved.AccessToken
	}
}

func (m *Manager) saveCloudCredentials(ctx context.Context, req ConnectRequest) {
	if m.creds == nil {
		return
	}
	blob, err := json.Marshal(cloudCredentials{AccountID: req.AccountID, AccessToken: req.AccessToken})
	if err != nil {
		return
	}
	if err := m.creds.SaveCredentials(ctx, credentialsKey, blob); err != nil {
		m.log.Warn().Err(err).Msg("save cloud credentials failed")
	}
}

func (m *Manager) clearCloudCredentials(ctx context.Context) {
	if m.creds == nil {
		return
	}
	if err := m.creds.ClearCredentials(ctx, credentialsKey); err != nil {
		m.log.Warn().Err(err).Msg("clear cloud credentials failed")
	}
}
