// Package importer ingests configuration dumps, traffic log exports and
// policy exports. It owns device resolution and import sessions; parsing
// belongs to the parser package and change tracking to the diff package.
package importer

import (
	"errors"

	"github.com/rs/zerolog"

	"firewall-policy-auditor/internal/diff"
	"firewall-policy-auditor/internal/store"
)

// ErrDeviceNotResolved means a log export could not be tied to a
// registered device. The batch is rejected whole; partial imports would
// poison the traffic aggregates.
var ErrDeviceNotResolved = errors.New("device not resolved")

// Importer runs all ingestion paths against one store.
type Importer struct {
	st  *store.Store
	rec *diff.Reconciler
	log zerolog.Logger
}

func New(st *store.Store, log zerolog.Logger) *Importer {
	return &Importer{
		st:  st,
		rec: diff.New(st, log),
		log: log.With().Str("component", "importer").Logger(),
	}
}
