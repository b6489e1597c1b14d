package models

import (
	"github.com/google/uuid"
)

// ensureID assigns a fresh UUID when the caller left the primary key empty.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

// All lists every persisted model in dependency order.
func All() []any {
	return []any{
		&Profile{},
		&Product{},
		&WishlistItem{},
		&Order{},
		&OrderLineItem{},
	}
}
