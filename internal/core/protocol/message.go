// Package protocol defines the JSON frames exchanged with clients.
//
// Every frame is one object with exactly one top-level key naming the
// variant:
//
//	{"subscribe":{"component":"Row"}}
//	{"action":{"component":"Row","id":"<uuid>","action":"delete"}}
//	{"update":{"component":"Row","id":"<uuid>","html":"<div>…</div>"}}
//	{"text":{"message":"Subscribed to 'Row'"}}
//	{"actionResult":{"component":"Row","id":"<uuid>","action":"delete","result":{"success":{}},"message":"…"}}
package protocol

import (
	"github.com/google/uuid"
)

// Kind names a Message variant.
type Kind string

const (
	KindSubscribe    Kind = "subscribe"
	KindUpdate       Kind = "update"
	KindAction       Kind = "action"
	KindActionResult Kind = "actionResult"
	KindText         Kind = "text"
)

// Message is the tagged union carried by one frame. Exactly one field is
// set on a valid message.
type Message struct {
	Subscribe    *Subscribe   `json:"subscribe,omitempty"`
	Update       *Update      `json:"update,omitempty"`
	Action       *Action      `json:"action,omitempty"`
	ActionResult *ActionReply `json:"actionResult,omitempty"`
	Text         *Text        `json:"text,omitempty"`
}

// Subscribe asks the server to push updates of a component (client→server).
type Subscribe struct {
	Component string `json:"component"`
}

// Update carries a freshly rendered fragment (server→client). ID is nil only
// for collection-wide refreshes.
type Update struct {
	Component string     `json:"component"`
	ID        *uuid.UUID `json:"id"`
	HTML      string     `json:"html"`
}

// Action invokes a named component action on an entity (client→server).
type Action struct {
	Component string    `json:"component"`
	ID        uuid.UUID `json:"id"`
	Action    string    `json:"action"`
}

// ActionReply reports the outcome of an Action (server→client).
type ActionReply struct {
	Component string       `json:"component"`
	ID        uuid.UUID    `json:"id"`
	Action    string       `json:"action"`
	Result    ActionResult `json:"result"`
	Message   string       `json:"message"`
}

// Text is a diagnostic or confirmation line (server→client).
type Text struct {
	Message string `json:"message"`
}

func NewSubscribe(component string) Message {
	return Message{Subscribe: &Subscribe{Component: component}}
}

func NewUpdate(component string, id uuid.UUID, html string) Message {
	return Message{Update: &Update{Component: component, ID: &id, HTML: html}}
}

func NewAction(component string, id uuid.UUID, action string) Message {
	return Message{Action: &Action{Component: component, ID: id, Action: action}}
}

func NewActionReply(component string, id uuid.UUID, action string, result ActionResult, message string) Message {
	return Message{ActionResult: &ActionReply{
		Component: component,
		ID:        id,
		Action:    action,
		Result:    result,
		Message:   message,
	}}
}

func NewText(message string) Message {
	return Message{Text: &Text{Message: message}}
}

// Kind reports the variant, or "" when the message is not exactly one variant.
func (m Message) Kind() Kind {
	var kind Kind
	count := 0
	if m.Subscribe != nil {
		kind, count = KindSubscribe, count+1
	}
	if m.Update != nil {
		kind, count = KindUpdate, count+1
	}
	if m.Action != nil {
		kind, count = KindAction, count+1
	}
	if m.ActionResult != nil {
		kind, count = KindActionResult, count+1
	}
	if m.Text != nil {
		kind, count = KindText, count+1
	}
	if count != 1 {
		return ""
	}
	return kind
}

// Validate checks that exactly one variant is set.
func (m Message) Validate() error {
	if m.Kind() == "" {
		return ErrInvalidMessage
	}
	return nil
}
