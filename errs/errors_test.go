package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOfOutermostWins(t *testing.T) {
	inner := E(NotFound, "store.get", "book not found")
	outer := Wrap(Dependency, "service.load", inner)

	assert.Equal(t, Dependency, KindOf(outer))
	assert.Equal(t, NotFound, KindOf(inner))
	assert.Equal(t, Kind(0), KindOf(errors.New("plain")))
	assert.Equal(t, Kind(0), KindOf(nil))
}

func TestIsKindSearchesChain(t *testing.T) {
	inner := E(Conflict, "store.swap", "lost the race")
	outer := Wrap(Dependency, "service.borrow", inner)

	assert.True(t, IsKind(outer, Conflict))
	assert.True(t, IsKind(outer, Dependency))
	assert.False(t, IsKind(outer, NotFound))
	assert.False(t, IsKind(fmt.Errorf("wrapped: %w", errors.New("plain")), Conflict))
}

func TestUserMessageHidesInternals(t *testing.T) {
	assert.Equal(t, "book not found", UserMessage(E(NotFound, "store.get", "book not found")))
	assert.Equal(t, "this book is no longer available", UserMessage(E(Conflict, "svc", "this book is no longer available")))

	hidden := UserMessage(Wrap(Dependency, "store.query", errors.New("dial tcp: connection refused")))
	assert.NotContains(t, hidden, "connection refused")

	hidden = UserMessage(E(PartialState, "svc.return", "ledger closed but book stuck"))
	assert.NotContains(t, hidden, "ledger")
}

func TestErrorString(t *testing.T) {
	err := Wrapf(PartialState, "svc.borrow", errors.New("timeout"), "book %s stuck", "b-1")
	assert.Contains(t, err.Error(), "svc.borrow")
	assert.Contains(t, err.Error(), "book b-1 stuck")
	assert.Contains(t, err.Error(), "timeout")
}
