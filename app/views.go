package app

import (
	"time"

	"github.com/fiffu/tickerwatch/lib/models"
)

type SubscriberView struct {
	Platform   string  `json:"platform"`
	Identifier string  `json:"identifier"`
	CreatedAt  *string `json:"created_at"`
}

func (view SubscriberView) From(entity models.Subscriber) SubscriberView {
	return SubscriberView{
		Platform:   entity.Platform,
		Identifier: entity.Identifier,
		CreatedAt:  isoformat(entity.CreatedAt),
	}
}

type Fromable[Entity any, Repr any] interface {
	From(Entity) Repr
}

func FromMany[T any, U Fromable[T, U]](elems []T) []U {
	out := make([]U, len(elems))
	for i, t := range elems {
		var u U
		out[i] = u.From(t)
	}
	return out
}

func isoformat(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
