// Package ingest turns decoded GitHub webhook events into registry writes
// and bus publishes. It owns the per-repository seen state machine and the
// push fan-out.
package ingest

import (
	"encoding/json"
	"fmt"
)

// SeenIntent is the effect a webhook event has on a repository's seen flag.
type SeenIntent int

const (
	// IntentNone leaves the seen flag untouched.
	IntentNone SeenIntent = iota
	// IntentSeen marks the repository visible.
	IntentSeen
	// IntentUnseen marks the repository hidden.
	IntentUnseen
)

// Repo is the minimal repository payload all events carry.
type Repo struct {
	ID       int64  `json:"id"`
	FullName string `json:"full_name"`
}

// Event is the tagged union over the webhook event kinds rule-mirror
// consumes. New kinds extend this set; there is no reflective dispatch.
type Event interface {
	isEvent()
}

// PingEvent is GitHub's delivery test. No effect.
type PingEvent struct{}

func (PingEvent) isEvent() {}

// InstallationEvent covers app-installation lifecycle actions.
type InstallationEvent struct {
	Action       string `json:"action"`
	Repositories []Repo `json:"repositories"`
}

func (InstallationEvent) isEvent() {}

// SeenIntent maps installation actions onto the seen flag.
func (e InstallationEvent) SeenIntent() SeenIntent {
	switch e.Action {
	case "created", "unsuspend", "new_permissions_accepted":
		return IntentSeen
	case "deleted", "suspend":
		return IntentUnseen
	default:
		return IntentNone
	}
}

// InstallationRepositoriesEvent covers repos being added to or removed from
// an existing installation.
type InstallationRepositoriesEvent struct {
	Action              string `json:"action"`
	RepositoriesAdded   []Repo `json:"repositories_added"`
	RepositoriesRemoved []Repo `json:"repositories_removed"`
}

func (InstallationRepositoriesEvent) isEvent() {}

// RepositoryEvent covers repository lifecycle actions.
type RepositoryEvent struct {
	Action     string `json:"action"`
	Repository Repo   `json:"repository"`
}

func (RepositoryEvent) isEvent() {}

// SeenIntent maps repository actions onto the seen flag. Transfers are an
// explicit no-op; group migration to the new owner is unresolved.
func (e RepositoryEvent) SeenIntent() SeenIntent {
	switch e.Action {
	case "created", "unarchived", "edited", "renamed", "publicized":
		return IntentSeen
	case "deleted", "archived", "privatized":
		return IntentUnseen
	case "transferred":
		return IntentNone
	default:
		return IntentNone
	}
}

// PushEvent signals new content on a ref.
type PushEvent struct {
	Repository Repo   `json:"repository"`
	Ref        string `json:"ref"`
}

func (PushEvent) isEvent() {}

// DecodeEvent parses a webhook body according to its X-GitHub-Event kind.
// Unknown kinds return (nil, nil): they are acknowledged and dropped.
func DecodeEvent(kind string, body []byte) (Event, error) {
	switch kind {
	case "ping":
		return PingEvent{}, nil
	case "installation":
		var ev InstallationEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return nil, fmt.Errorf("decode installation event: %w", err)
		}
		return ev, nil
	case "installation_repositories":
		var ev InstallationRepositoriesEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return nil, fmt.Errorf("decode installation_repositories event: %w", err)
		}
		return ev, nil
	case "repository":
		var ev RepositoryEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return nil, fmt.Errorf("decode repository event: %w", err)
		}
		return ev, nil
	case "push":
		var ev PushEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return nil, fmt.Errorf("decode push event: %w", err)
		}
		return ev, nil
	default:
		return nil, nil
	}
}
