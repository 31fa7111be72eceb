// Package models defines the core data structures for users and books.
package models

import "time"

// DefaultCategory is assigned to books created without a category.
const DefaultCategory = "Uncategorized"

// User represents an application user with credentials and profile data.
type User struct {
	// ID is the unique identifier for the user.
	ID string
	// Username is the display name chosen by the user.
	Username string
	// Email is the login identity of the user. Unique.
	Email string
	// PasswordHash is the bcrypt hash of the user's password.
	PasswordHash []byte
	// Bio is free-form profile text.
	Bio string
	// ProfilePic is the media URL of the profile picture, if any.
	ProfilePic *string
	// Favorites holds external catalog identifiers in insertion order.
	Favorites []string
	// BooksAddedCount is the running number of books the user owns.
	BooksAddedCount int
	// CreatedAt is the registration time.
	CreatedAt time.Time
}

// PublicUser is the projection of User that is safe to return to clients.
type PublicUser struct {
	ID              string    `json:"id"`
	Username        string    `json:"username"`
	Email           string    `json:"email"`
	Bio             string    `json:"bio"`
	ProfilePic      *string   `json:"profilePic"`
	Favorites       []string  `json:"favorites"`
	BooksAddedCount int       `json:"booksAddedCount"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Public returns the client-facing projection of u.
func (u *User) Public() PublicUser {
	favorites := u.Favorites
	if favorites == nil {
		favorites = []string{}
	}
	return PublicUser{
		ID:              u.ID,
		Username:        u.Username,
		Email:           u.Email,
		Bio:             u.Bio,
		ProfilePic:      u.ProfilePic,
		Favorites:       favorites,
		BooksAddedCount: u.BooksAddedCount,
		CreatedAt:       u.CreatedAt,
	}
}

// Book is a catalog entry owned by exactly one user.
type Book struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Author      string  `json:"author"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	CoverImage  *string `json:"coverImage"`
	// UserID references the owner.
	UserID string `json:"user"`
}

// UserPatch describes a partial profile update. A nil field is left unchanged.
type UserPatch struct {
	Username  *string   `json:"username,omitempty"`
	Email     *string   `json:"email,omitempty"`
	Bio       *string   `json:"bio,omitempty"`
	Favorites *[]string `json:"favorites,omitempty"`
}

// RegisterInput is the registration payload.
type RegisterInput struct {
	Username string `json:"username" validate:"required,max=50"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=72"`
}

// LoginInput is the login payload.
type LoginInput struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// BookInput carries the fields of a new book.
type BookInput struct {
	Title       string `json:"title" validate:"required"`
	Author      string `json:"author" validate:"required"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// BookPatch describes a partial book update. A nil field is left unchanged.
type BookPatch struct {
	Title       *string `json:"title,omitempty"`
	Author      *string `json:"author,omitempty"`
	Description *string `json:"description,omitempty"`
	Category    *string `json:"category,omitempty"`
	// CoverImage sets the cover reference directly; an empty value clears it.
	CoverImage *string `json:"coverImage,omitempty"`
}

// Apply copies the present fields of p onto b.
func (p BookPatch) Apply(b *Book) {
	if p.Title != nil {
		b.Title = *p.Title
	}
	if p.Author != nil {
		b.Author = *p.Author
	}
	if p.Description != nil {
		b.Description = *p.Description
	}
	if p.Category != nil {
		b.Category = *p.Category
	}
	if p.CoverImage != nil {
		if *p.CoverImage == "" {
			b.CoverImage = nil
		} else {
			cover := *p.CoverImage
			b.CoverImage = &cover
		}
	}
}

// Apply copies the present fields of p onto u.
func (p UserPatch) Apply(u *User) {
	if p.Username != nil {
		u.Username = *p.Username
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.Bio != nil {
		u.Bio = *p.Bio
	}
	if p.Favorites != nil {
		u.Favorites = append([]string{}, (*p.Favorites)...)
	}
}

// AuthResponse is returned by registration and login.
type AuthResponse struct {
	Token string     `json:"token"`
	User  PublicUser `json:"user"`
}

// BookWithOwner is returned when a book is added.
type BookWithOwner struct {
	Book Book       `json:"book"`
	User PublicUser `json:"user"`
}

// DeleteResult is returned when a book is deleted.
type DeleteResult struct {
	Message string     `json:"message"`
	User    PublicUser `json:"user"`
}
