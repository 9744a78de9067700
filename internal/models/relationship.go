package models

import (
	"fmt"
	"slices"
)

// RelationshipField names one of the id sets owned by a user document.
// The set of values is closed; every store maps each one to a fixed path.
type RelationshipField int

const (
	SentRequests RelationshipField = iota + 1
	ReceivedRequests
	Friends
	LikedPosts
	LikedComments
)

var relationshipFields = []RelationshipField{SentRequests, ReceivedRequests, Friends, LikedPosts, LikedComments}

// RelationshipFields lists every known field.
func RelationshipFields() []RelationshipField {
	return slices.Clone(relationshipFields)
}

func (f RelationshipField) String() string {
	switch f {
	case SentRequests:
		return "requests.sent"
	case ReceivedRequests:
		return "requests.received"
	case Friends:
		return "friends"
	case LikedPosts:
		return "likedPosts"
	case LikedComments:
		return "likedComments"
	default:
		return fmt.Sprintf("RelationshipField(%d)", int(f))
	}
}

// Valid reports whether f is one of the declared fields.
func (f RelationshipField) Valid() bool {
	return f >= SentRequests && f <= LikedComments
}

// Set returns a pointer to the slice backing f on u.
func (f RelationshipField) Set(u *User) *[]string {
	switch f {
	case SentRequests:
		return &u.Requests.Sent
	case ReceivedRequests:
		return &u.Requests.Received
	case Friends:
		return &u.Friends
	case LikedPosts:
		return &u.LikedPosts
	case LikedComments:
		return &u.LikedComments
	default:
		panic(fmt.Sprintf("models: unknown relationship field %d", int(f)))
	}
}

// Contains reports whether u's set f holds id.
func (f RelationshipField) Contains(u User, id string) bool {
	return slices.Contains(*f.Set(&u), id)
}

// SetAction is the kind of set mutation a SetOp performs.
type SetAction int

const (
	// AddToSet inserts the value only when absent.
	AddToSet SetAction = iota + 1
	// Pull removes every occurrence of the value.
	Pull
)

func (a SetAction) String() string {
	switch a {
	case AddToSet:
		return "addToSet"
	case Pull:
		return "pull"
	default:
		return fmt.Sprintf("SetAction(%d)", int(a))
	}
}

// SetOp is one atomic mutation of a user's relationship set.
type SetOp struct {
	Action SetAction
	Field  RelationshipField
	Value  string
}

// Add builds an add-to-set operation.
func Add(field RelationshipField, value string) SetOp {
	return SetOp{Action: AddToSet, Field: field, Value: value}
}

// Remove builds a remove-all-matching operation.
func Remove(field RelationshipField, value string) SetOp {
	return SetOp{Action: Pull, Field: field, Value: value}
}

// Apply performs the set mutation on ids and returns the result.
func (a SetAction) Apply(ids []string, value string) []string {
	switch a {
	case AddToSet:
		if slices.Contains(ids, value) {
			return ids
		}
		return append(ids, value)
	case Pull:
		return slices.DeleteFunc(ids, func(id string) bool { return id == value })
	default:
		return ids
	}
}

// ValidateSetOps rejects unknown fields, empty values and two operations that
// target the same field, which a single document update cannot express.
func ValidateSetOps(ops []SetOp) error {
	if len(ops) == 0 {
		return fmt.Errorf("no set operations")
	}
	seen := make(map[RelationshipField]struct{}, len(ops))
	for _, op := range ops {
		if !op.Field.Valid() {
			return fmt.Errorf("unknown relationship field %d", int(op.Field))
		}
		if op.Action != AddToSet && op.Action != Pull {
			return fmt.Errorf("unknown set action %d", int(op.Action))
		}
		if op.Value == "" {
			return fmt.Errorf("empty value for %s", op.Field)
		}
		if _, dup := seen[op.Field]; dup {
			return fmt.Errorf("conflicting operations on %s", op.Field)
		}
		seen[op.Field] = struct{}{}
	}
	return nil
}

// ApplySetOps mutates u in place.
func ApplySetOps(u *User, ops []SetOp) {
	for _, op := range ops {
		set := op.Field.Set(u)
		*set = op.Action.Apply(*set, op.Value)
	}
}
