package history

import (
	"fmt"

	"github.com/ALT-F4-LLC/rewind/internal/model"
)

// Rebase merges a freshly rebuilt history onto the persisted history of the
// same entity, leaving the result in local.
//
// Local versions that do not start after the last persisted version were
// already covered by an earlier run and are dropped. If any remain, the last
// persisted version is extended to end where the first remaining local
// version starts. The result is the persisted versions followed by the
// remaining local ones; with nothing left locally it is the persisted history
// unchanged.
func Rebase[F model.Facet, M model.Field](local, persisted *model.Entity[F, M], annotation string) error {
	if local.Kind != persisted.Kind || local.ID != persisted.ID {
		return fmt.Errorf("%w: cannot rebase %s onto %s", ErrMismatchedEntity,
			local.Kind.FormatID(local.ID), persisted.Kind.FormatID(persisted.ID))
	}
	merged, err := RebaseVersions(local.Versions(), persisted.Versions(), annotation)
	if err != nil {
		return err
	}
	return local.SetVersions(merged)
}

// RebaseVersions is Rebase on plain version lists, both ordered oldest first.
func RebaseVersions[F model.Facet, M model.Field](local, persisted []*model.Version[F, M], annotation string) ([]*model.Version[F, M], error) {
	if len(persisted) == 0 {
		return local, nil
	}
	last := persisted[len(persisted)-1]

	keep := 0
	for keep < len(local) && !local[keep].From.After(last.From) {
		keep++
	}
	fresh := local[keep:]

	merged := make([]*model.Version[F, M], 0, len(persisted)+len(fresh))
	merged = append(merged, persisted[:len(persisted)-1]...)
	if len(fresh) == 0 {
		return append(merged, last), nil
	}

	extended, err := last.Extend(fresh[0].From, annotation)
	if err != nil {
		return nil, err
	}
	merged = append(merged, extended)
	return append(merged, fresh...), nil
}
