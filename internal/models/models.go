package models

import (
	"slices"
	"time"
)

// User represents an account within the Odinbook network.
type User struct {
	ID           string    `bson:"_id" json:"id"`
	Email        string    `bson:"email" json:"email"`
	Username     string    `bson:"username" json:"username"`
	PasswordHash string    `bson:"password" json:"-"`
	FirstName    string    `bson:"firstName" json:"firstName"`
	LastName     string    `bson:"lastName" json:"lastName"`
	Contact      []Contact `bson:"contact" json:"contact"`
	Pic          string    `bson:"pic,omitempty" json:"pic,omitempty"`
	Bio          string    `bson:"bio,omitempty" json:"bio,omitempty"`

	Friends       []string `bson:"friends" json:"friends"`
	Requests      Requests `bson:"requests" json:"requests"`
	LikedPosts    []string `bson:"likedPosts" json:"likedPosts"`
	LikedComments []string `bson:"likedComments" json:"likedComments"`

	Public    bool      `bson:"public" json:"public"`
	Admin     bool      `bson:"admin" json:"admin"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`

	// Score is only populated by text search.
	Score float64 `bson:"score,omitempty" json:"-"`
}

// Requests holds the pending friend requests of a user.
type Requests struct {
	Sent     []string `bson:"sent" json:"sent"`
	Received []string `bson:"received" json:"received"`
}

// Contact is an additional way to reach a user.
type Contact struct {
	Info    string `bson:"info" json:"info" validate:"required,max=100"`
	Type    string `bson:"type" json:"type"`
	Primary bool   `bson:"primary" json:"primary"`
}

// Post is a short status update authored by a user.
type Post struct {
	ID      string    `bson:"_id" json:"id"`
	Author  string    `bson:"author" json:"author"`
	Date    time.Time `bson:"date" json:"date"`
	Content string    `bson:"content" json:"content"`
	Image   string    `bson:"image,omitempty" json:"image,omitempty"`
	Likes   []string  `bson:"likes" json:"likes"`
	Public  bool      `bson:"public" json:"public"`

	// Score is only populated by text search.
	Score float64 `bson:"score,omitempty" json:"score,omitempty"`
}

// Comment is a reply attached to a post.
type Comment struct {
	ID      string    `bson:"_id" json:"id"`
	Post    string    `bson:"post" json:"post"`
	Author  string    `bson:"author" json:"author"`
	Date    time.Time `bson:"date" json:"date"`
	Content string    `bson:"content" json:"content"`
	Likes   []string  `bson:"likes" json:"likes"`
}

// UserProjection is the non-secret view of a user returned to clients and
// embedded in session tokens.
type UserProjection struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Username      string    `json:"username"`
	FirstName     string    `json:"firstName"`
	LastName      string    `json:"lastName"`
	Contact       []Contact `json:"contact"`
	Pic           string    `json:"pic,omitempty"`
	Bio           string    `json:"bio,omitempty"`
	Friends       []string  `json:"friends"`
	Requests      Requests  `json:"requests"`
	LikedPosts    []string  `json:"likedPosts"`
	LikedComments []string  `json:"likedComments"`
	Public        bool      `json:"public"`
	Admin         bool      `json:"admin"`

	// Score is only populated by text search.
	Score float64 `json:"score,omitempty"`
}

// Project strips the credential hash and normalises nil sets to empty ones.
func (u User) Project() UserProjection {
	return UserProjection{
		ID:        u.ID,
		Email:     u.Email,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Contact:   nonNilContacts(u.Contact),
		Pic:       u.Pic,
		Bio:       u.Bio,
		Friends:   nonNil(u.Friends),
		Requests: Requests{
			Sent:     nonNil(u.Requests.Sent),
			Received: nonNil(u.Requests.Received),
		},
		LikedPosts:    nonNil(u.LikedPosts),
		LikedComments: nonNil(u.LikedComments),
		Public:        u.Public,
		Admin:         u.Admin,
		Score:         u.Score,
	}
}

// Clone returns a deep copy so callers can mutate sets without aliasing.
func (u User) Clone() User {
	out := u
	out.Contact = slices.Clone(u.Contact)
	out.Friends = slices.Clone(u.Friends)
	out.Requests.Sent = slices.Clone(u.Requests.Sent)
	out.Requests.Received = slices.Clone(u.Requests.Received)
	out.LikedPosts = slices.Clone(u.LikedPosts)
	out.LikedComments = slices.Clone(u.LikedComments)
	return out
}

// Normalize replaces nil sets with empty ones so they encode as [].
func (u User) Normalize() User {
	u.Contact = nonNilContacts(u.Contact)
	u.Friends = nonNil(u.Friends)
	u.Requests.Sent = nonNil(u.Requests.Sent)
	u.Requests.Received = nonNil(u.Requests.Received)
	u.LikedPosts = nonNil(u.LikedPosts)
	u.LikedComments = nonNil(u.LikedComments)
	return u
}

// Normalize replaces nil sets with empty ones so they encode as [].
func (p Post) Normalize() Post {
	p.Likes = nonNil(p.Likes)
	return p
}

// Normalize replaces nil sets with empty ones so they encode as [].
func (c Comment) Normalize() Comment {
	c.Likes = nonNil(c.Likes)
	return c
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return slices.Clone(ids)
}

func nonNilContacts(contacts []Contact) []Contact {
	if contacts == nil {
		return []Contact{}
	}
	return slices.Clone(contacts)
}
