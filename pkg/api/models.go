package api

import "encoding/json"

// uploadPayload is only used to validate an upload; the stored document is
// the submitted body itself.
type uploadPayload struct {
	Player *string         `json:"player"`
	Items  json.RawMessage `json:"items"`
}

type uploadResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}
