// Package subscriber models notification destinations and reads them from a store.
package subscriber

import (
	"context"
	"fmt"
	"strings"

	"schnitzelbot/internal/transport"
)

// Subscriber is one registered destination with its own credential.
type Subscriber struct {
	ID            string `json:"id"`
	Provider      string `json:"provider"`
	Credential    string `json:"credential"`
	DestinationID string `json:"destination_id"`
	DisplayName   string `json:"display_name,omitempty"`
}

// Label returns a human-readable identifier that never includes the credential.
func (s Subscriber) Label() string {
	if n := strings.TrimSpace(s.DisplayName); n != "" {
		return n
	}
	return transport.NormalizeProvider(s.Provider) + ":" + s.DestinationID
}

// Validate checks the fields every provider needs.
func (s Subscriber) Validate() error {
	if strings.TrimSpace(s.Credential) == "" {
		return fmt.Errorf("subscriber %q: credential is required", s.Label())
	}
	if strings.TrimSpace(s.DestinationID) == "" && transport.NormalizeProvider(s.Provider) != transport.ProviderSlackWebhook {
		return fmt.Errorf("subscriber %q: destination_id is required", s.Label())
	}
	return nil
}

// Pager is the storage capability the registry depends on.
//
// ListSubscribers returns up to limit records ordered by ID, starting after cursor.
// next is empty when there are no more records.
type Pager interface {
	ListSubscribers(ctx context.Context, cursor string, limit int) (items []Subscriber, next string, err error)
}

// UnavailableError reports that the subscriber store could not be read.
type UnavailableError struct {
	Err error
}

func (e *UnavailableError) Error() string { return "subscriber registry unavailable: " + e.Err.Error() }

func (e *UnavailableError) Unwrap() error { return e.Err }
