package state

import "github.com/google/uuid"

// MarkCommandProcessed records that the external command id has been
// applied. It is written in the same transaction as the command's effects.
func (l *Ledger) MarkCommandProcessed(id uuid.UUID) error {
	return l.save(processedCommandKey(id), true)
}

// CommandProcessed reports whether id was applied before.
func (l *Ledger) CommandProcessed(id uuid.UUID) (bool, error) {
	return l.kv.Has(processedCommandKey(id))
}
