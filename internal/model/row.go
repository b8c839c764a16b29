package model

// Mode says whether a blast sends literal text per row or one template
// to every recipient.
type Mode string

const (
	ModeText     Mode = "text"
	ModeTemplate Mode = "template"
)

// Row is one normalized unit of blast work. Recipient is the raw cell
// value; phone formatting happens at the transport. Message is empty in
// template mode.
type Row struct {
	Recipient string
	Message   string
}

// TemplateRef identifies a pre-approved Cloud API message template.
// Params nil means the template declares no placeholders; the outbound
// payload must then omit the components object entirely, because the
// API rejects an empty components array for parameterless templates.
type TemplateRef struct {
	Name     string
	Language string
	Params   []string
}

// Describe is the human-readable message column for report rows.
func (t TemplateRef) Describe() string {
	return "Template: " + t.Name
}
