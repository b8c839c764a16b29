package service

import "errors"

var (
	// ErrNotConnected rejects operations that need a ready session.
	ErrNotConnected = errors.New("whatsapp session is not connected")
	// ErrMissingCredentials rejects a connect request whose variant
	// needs credentials the caller did not supply.
	ErrMissingCredentials = errors.New("missing credentials for the requested connect mode")
	// ErrUnknownMode rejects a connect request with an unrecognized variant.
	ErrUnknownMode = errors.New("unknown connect mode")
	// ErrBusy rejects a blast while another one is still running.
	ErrBusy = errors.New("a blast is already in progress")
	// ErrNoRows rejects a blast with no sendable rows after normalization.
	ErrNoRows = errors.New("no valid recipient rows found")
	// ErrNoTemplate rejects a template blast without a template name.
	ErrNoTemplate = errors.New("template name is required for template blasts")
	// ErrTemplateUnsupported rejects a template blast on a transport
	// that cannot send templates.
	ErrTemplateUnsupported = errors.New("template blasts require a cloud api session")
)
