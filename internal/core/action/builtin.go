package action

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/zeusync/mist/internal/core/component"
	"github.com/zeusync/mist/internal/core/entity"
	"github.com/zeusync/mist/internal/core/protocol"
)

// DeleteName is the name of the built-in delete action.
const DeleteName = "delete"

// Delete returns an action removing the entity with the given id from every
// listed type. It fails when no type held the entity.
func Delete(typeNames ...string) component.Action {
	return component.NewAction(DeleteName, func(ctx context.Context, id uuid.UUID, store entity.Store) (protocol.ActionResult, error) {
		deleted := 0
		for _, name := range typeNames {
			err := store.Delete(ctx, name, id)
			switch {
			case err == nil:
				deleted++
			case errors.Is(err, entity.ErrNotFound):
			default:
				return protocol.ActionResult{}, fmt.Errorf("delete %s %s: %w", name, id, err)
			}
		}
		if deleted == 0 {
			return protocol.Failure(fmt.Sprintf("entity '%s' not found", id)), nil
		}
		return protocol.Success(""), nil
	})
}
