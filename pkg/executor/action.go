package executor

import "context"

// ActionStore looks up named action definitions. It is the only
// collaborator the Action Resolver talks to; the CRUD surface that
// populates it lives outside the core.
type ActionStore interface {
	GetAction(ctx context.Context, name string) (*Action, error)
}

// LoadAction resolves a named action, failing with *ActionNotFoundError
// if the store has no row for it. This is the only point during
// execution that reads the ActionStore; everything downstream treats
// the returned Action as an opaque structured record.
func LoadAction(ctx context.Context, store ActionStore, name string) (*Action, error) {
	action, err := store.GetAction(ctx, name)
	if err != nil {
		return nil, err
	}
	if action == nil {
		return nil, &ActionNotFoundError{Name: name}
	}
	return action, nil
}
