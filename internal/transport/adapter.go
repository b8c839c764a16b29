package transport

import (
	"context"

	"gowa-blast/internal/model"
)

// EventKind identifies an asynchronous adapter event. Names stay
// consistent between the adapters and the session manager.
type EventKind string

const (
	// EventPairingCode carries a fresh pairing artifact: the raw QR
	// payload for the QR variant, the numeric code for the phone variant.
	EventPairingCode EventKind = "PAIRING_CODE"
	// EventAuthenticated fires once the remote side accepts credentials.
	EventAuthenticated EventKind = "AUTHENTICATED"
	// EventConnected fires when the session is fully usable for sending.
	EventConnected EventKind = "CONNECTED"
	// EventDisconnected fires on an unexpected drop (not a logout).
	EventDisconnected EventKind = "DISCONNECTED"
	// EventLoggedOut fires when the remote side unlinks the device.
	EventLoggedOut EventKind = "LOGGED_OUT"
	// EventFatal fires on unrecoverable connect/pairing failures.
	EventFatal EventKind = "FATAL"
)

// Event is the envelope adapters push into the session manager.
type Event struct {
	Kind EventKind
	Code string
	Err  error
}

// EmitFunc delivers adapter events to the session manager. It must not
// block: slow consumers drop rather than stall the transport.
type EmitFunc func(Event)

// Adapter is the uniform capability over the connection variants.
//
// Connect may be re-invoked on the same adapter after an unexpected
// drop; implementations resume with their stored credentials. Send
// failures are returned as errors (with the remote message where one
// exists) and never panic past this boundary. Disconnect is a full
// teardown: it logs the device out and wipes its stored credentials.
type Adapter interface {
	Connect(ctx context.Context) error
	SendText(ctx context.Context, recipient, body string) error
	Disconnect(ctx context.Context)
}

// TemplateSender is the optional template capability. Only the Cloud
// API variant implements it; the paired-device variants cannot send
// pre-approved templates.
type TemplateSender interface {
	SendTemplate(ctx context.Context, recipient string, tmpl model.TemplateRef) error
}

// Closer is the soft teardown used on process shutdown: close the
// socket but keep credentials so the next boot can resume the session.
type Closer interface {
	Close()
}
