package relations

import (
	"errors"
	"fmt"
)

var (
	// ErrSelfRelationship indicates a user targeted themselves.
	ErrSelfRelationship = errors.New("cannot target yourself")
	// ErrAlreadyFriends indicates a friend request between existing friends.
	ErrAlreadyFriends = errors.New("already friends")
	// ErrNoPendingRequest indicates an accept without a matching received request.
	ErrNoPendingRequest = errors.New("no pending friend request")
)

// ConsistencyError reports a paired mutation whose first write landed and
// whose second did not. Retrying the same operation completes it.
type ConsistencyError struct {
	Op        string
	Completed string
	Pending   string
	Err       error
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("%s partially applied: %s updated, %s pending: %v", e.Op, e.Completed, e.Pending, e.Err)
}

func (e *ConsistencyError) Unwrap() error { return e.Err }
