package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Collections and operations published by the record store's change feed.
const (
	CollectionMatches       = "matches"
	CollectionUsers         = "users"
	CollectionNotifications = "notifications"

	OperationCreate = "create"
	OperationUpdate = "update"
	OperationDelete = "delete"
)

// ChangeEvent is one document change. Before is absent on create and After on delete.
type ChangeEvent struct {
	Collection string          `json:"collection"`
	Operation  string          `json:"operation"`
	DocumentID string          `json:"documentId"`
	Before     json.RawMessage `json:"before,omitempty"`
	After      json.RawMessage `json:"after,omitempty"`
}

// Decode parses and normalises a change event payload.
func Decode(payload []byte) (ChangeEvent, error) {
	var ev ChangeEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return ChangeEvent{}, fmt.Errorf("events: decode change event: %w", err)
	}
	ev.Collection = strings.ToLower(strings.TrimSpace(ev.Collection))
	ev.Operation = strings.ToLower(strings.TrimSpace(ev.Operation))
	ev.DocumentID = strings.TrimSpace(ev.DocumentID)
	if ev.Collection == "" || ev.Operation == "" || ev.DocumentID == "" {
		return ChangeEvent{}, errors.New("events: change event missing collection, operation or documentId")
	}
	return ev, nil
}

func decodeSnapshot[T any](raw json.RawMessage) (*T, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
