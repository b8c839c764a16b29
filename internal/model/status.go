package model

// Status is the lifecycle state of the process-wide WhatsApp session.
type Status string

const (
	StatusDisconnected  Status = "disconnected"
	StatusConnecting    Status = "connecting"
	StatusQRReady       Status = "qr_ready"
	StatusAuthenticated Status = "authenticated"
	StatusReady         Status = "ready"
	StatusError         Status = "error"
)

// ConnectMode selects the transport variant explicitly. The variant is
// never inferred from which credentials happen to be present.
type ConnectMode string

const (
	// ConnectQR links a new device by scanning a QR code.
	ConnectQR ConnectMode = "qr"
	// ConnectCode links a new device by entering a pairing code on the phone.
	ConnectCode ConnectMode = "code"
	// ConnectCloud validates Cloud API credentials with a probe call.
	ConnectCloud ConnectMode = "cloud"
)

// AuxKind tags the pairing artifact carried in a Snapshot.
type AuxKind string

const (
	AuxNone AuxKind = ""
	// AuxQR means Value holds a scannable QR image as a PNG data URL.
	AuxQR AuxKind = "qr"
	// AuxCode means Value holds the numeric pairing code to type on the phone.
	AuxCode AuxKind = "code"
)

// Auxiliary is the out-of-band pairing artifact shown to the operator
// while an asynchronous login settles.
type Auxiliary struct {
	Kind  AuxKind `json:"kind"`
	Value string  `json:"value"`
}

// Snapshot is a read-only copy of the session state. Callers poll it;
// it never aliases the live session.
type Snapshot struct {
	Status       Status     `json:"status"`
	Auxiliary    *Auxiliary `json:"auxiliary,omitempty"`
	Error        string     `json:"error,omitempty"`
	IsConfigured bool       `json:"isConfigured"`
}
