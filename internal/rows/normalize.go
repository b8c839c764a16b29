package rows

import (
	"strings"

	"gowa-blast/internal/model"
)

// Normalize resolves recipient and message columns per record. Column
// names are matched independently for every record, so a sheet does not
// need uniform headers to be usable:
//
//  1. a column whose name contains "phone" (any case) is the recipient;
//  2. in text mode, a column containing "message", "msg" or "text" is
//     the message body;
//  3. when a lookup fails, fall back to positions: first cell is the
//     recipient, second the message. This needs at least 2 cells in
//     text mode, 1 in template mode;
//  4. records with an empty trimmed recipient (or message, in text
//     mode) are silently dropped.
//
// Output preserves input order. An empty result is legal here; the
// caller decides whether that is an error.
func Normalize(records []Record, mode model.Mode) []model.Row {
	out := make([]model.Row, 0, len(records))

	for _, rec := range records {
		recipient, message, ok := resolve(rec, mode)
		if !ok {
			continue
		}

		recipient = strings.TrimSpace(recipient)
		message = strings.TrimSpace(message)

		if recipient == "" {
			continue
		}
		if mode == model.ModeText && message == "" {
			continue
		}

		out = append(out, model.Row{Recipient: recipient, Message: message})
	}

	return out
}

func resolve(rec Record, mode model.Mode) (recipient, message string, ok bool) {
	recipient, foundRecipient := findCell(rec, "phone")

	foundMessage := true
	if mode == model.ModeText {
		message, foundMessage = findCell(rec, "message", "msg", "text")
	}

	if foundRecipient && foundMessage {
		return recipient, message, true
	}

	// Positional fallback for sheets without recognizable headers.
	need := 2
	if mode == model.ModeTemplate {
		need = 1
	}
	if len(rec) < need {
		return "", "", false
	}

	recipient = rec[0].Value
	if mode == model.ModeText {
		message = rec[1].Value
	}
	return recipient, message, true
}

func findCell(rec Record, substrings ...string) (string, bool) {
	for _, cell := range rec {
		name := strings.ToLower(cell.Column)
		for _, sub := range substrings {
			if strings.Contains(name, sub) {
				return cell.Value, true
			}
		}
	}
	return "", false
}

// SplitParams turns the comma-delimited template parameter field into
// trimmed values. Blanks are dropped; zero survivors yield nil so the
// outbound payload carries no parameters at all rather than an empty
// list.
func SplitParams(raw string) []string {
	var params []string
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		params = append(params, p)
	}
	return params
}
