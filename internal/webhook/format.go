package webhook

import (
	"encoding/json"
	"fmt"

	"github.com/sydlexius/milkcrate/internal/event"
)

// formatPayload returns the request body and content-type for a webhook delivery.
func formatPayload(ep *Endpoint, e event.Event) ([]byte, string) {
	switch ep.Type {
	case TypeDiscord:
		return formatDiscord(e)
	case TypeSlack:
		return formatSlack(e)
	case TypeGotify:
		return formatGotify(e)
	default:
		return formatGeneric(e)
	}
}

// formatGeneric flattens the event data into the top-level object so
// consumers see {event, source, status, records, errors, duration_ms,
// timestamp}.
func formatGeneric(e event.Event) ([]byte, string) {
	payload := map[string]any{
		"event":     string(e.Type),
		"timestamp": e.Timestamp,
	}
	for k, v := range e.Data {
		payload[k] = v
	}
	body, _ := json.Marshal(payload)
	return body, "application/json"
}

func formatDiscord(e event.Event) ([]byte, string) {
	title := fmt.Sprintf("Milkcrate: %s", e.Type)
	desc := formatDescription(e)

	color := 3066993 // green
	if e.Type == event.SyncFailed {
		color = 15158332 // red
	}
	payload := map[string]any{
		"embeds": []map[string]any{
			{
				"title":       title,
				"description": desc,
				"color":       color,
				"timestamp":   e.Timestamp.Format("2006-01-02T15:04:05Z"),
			},
		},
	}
	body, _ := json.Marshal(payload)
	return body, "application/json"
}

func formatSlack(e event.Event) ([]byte, string) {
	text := fmt.Sprintf("*Milkcrate: %s*\n%s", e.Type, formatDescription(e))
	payload := map[string]any{
		"text": text,
	}
	body, _ := json.Marshal(payload)
	return body, "application/json"
}

func formatGotify(e event.Event) ([]byte, string) {
	payload := map[string]any{
		"title":   fmt.Sprintf("Milkcrate: %s", e.Type),
		"message": formatDescription(e),
	}
	body, _ := json.Marshal(payload)
	return body, "application/json"
}

func formatDescription(e event.Event) string {
	if e.Data == nil {
		return string(e.Type)
	}
	source, _ := e.Data["source"].(string)
	records, rok := e.Data["records"].(int)
	errs, eok := e.Data["errors"].(int)
	if source != "" && rok && eok {
		return fmt.Sprintf("%s: %d records, %d errors", source, records, errs)
	}
	b, _ := json.Marshal(e.Data)
	return string(b)
}
