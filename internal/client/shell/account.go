package shell

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/Akash-kotagiri/book-haven/internal/apperr"
	"github.com/Akash-kotagiri/book-haven/internal/client/session"
	"github.com/Akash-kotagiri/book-haven/internal/media"
	"github.com/Akash-kotagiri/book-haven/internal/models"
)

type registerForm struct {
	Username string `json:"username" validate:"required,min=3"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type loginForm struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

func (sh *Shell) register(ctx context.Context) {
	var f registerForm
	var ok bool
	if f.Username, ok = sh.ask("Username"); !ok {
		return
	}
	if f.Email, ok = sh.ask("Email"); !ok {
		return
	}
	if f.Password, ok = sh.ask("Password"); !ok {
		return
	}
	if err := sh.validate.Validate(f); err != nil {
		sh.println(apperr.MessageOf(err))
		return
	}

	err := sh.Session.Register(ctx, models.RegisterInput{Username: f.Username, Email: f.Email, Password: f.Password})
	if err != nil {
		sh.println(session.Message(err, "Registration failed"))
		return
	}
	sh.println("Registration successful!")
}

func (sh *Shell) login(ctx context.Context) {
	var f loginForm
	var ok bool
	if f.Email, ok = sh.ask("Email"); !ok {
		return
	}
	if f.Password, ok = sh.ask("Password"); !ok {
		return
	}
	if err := sh.validate.Validate(f); err != nil {
		sh.println(apperr.MessageOf(err))
		return
	}

	if err := sh.Session.Login(ctx, models.LoginInput{Email: f.Email, Password: f.Password}); err != nil {
		sh.println(session.Message(err, "Invalid credentials"))
		return
	}
	sh.println("Login successful!")
}

func (sh *Shell) logout(ctx context.Context) {
	if !sh.requireUser() {
		return
	}
	if err := sh.Session.Logout(ctx); err != nil {
		sh.println("Failed to log out")
		return
	}
	sh.println("Logged out successfully!")
}

func (sh *Shell) me() {
	u := sh.Session.User()
	if u == nil {
		sh.println("Not logged in.")
		return
	}
	sh.printf("Username:    %s\n", u.Username)
	sh.printf("Email:       %s\n", u.Email)
	if u.Bio != "" {
		sh.printf("Bio:         %s\n", u.Bio)
	}
	if u.ProfilePic != nil {
		sh.printf("Picture:     %s\n", *u.ProfilePic)
	}
	sh.printf("Books added: %d\n", u.BooksAddedCount)
	sh.printf("Favorites:   %d\n", len(u.Favorites))
	sh.printf("Joined:      %s\n", u.CreatedAt.Format("2006-01-02"))
}

func (sh *Shell) profile(ctx context.Context) {
	u := sh.Session.User()
	if u == nil {
		sh.println("Please log in first.")
		return
	}

	var patch models.UserPatch
	var ok bool
	if patch.Username, ok = sh.askChange("Username", u.Username); !ok {
		return
	}
	if patch.Email, ok = sh.askChange("Email", u.Email); !ok {
		return
	}
	if patch.Bio, ok = sh.askChange("Bio", u.Bio); !ok {
		return
	}
	pic, closeFn, ok := sh.askFile("Profile picture path (optional)")
	if !ok {
		return
	}
	defer closeFn()

	if err := sh.Session.UpdateProfile(ctx, patch, pic); err != nil {
		sh.println(session.Message(err, "Failed to update profile"))
		return
	}
	sh.println("Profile updated successfully!")
}

// askFile asks for an optional file to upload. The returned close function is
// always safe to call.
func (sh *Shell) askFile(label string) (*media.File, func(), bool) {
	noop := func() {}
	path, ok := sh.ask(label)
	if !ok {
		return nil, noop, false
	}
	if path == "" {
		return nil, noop, true
	}
	path = strings.Trim(path, `"'`)
	f, err := sh.OpenFile(path)
	if err != nil {
		sh.printf("Cannot open %s: %v\n", path, err)
		return nil, noop, false
	}
	return &media.File{Name: filepath.Base(path), Body: f}, func() { _ = f.Close() }, true
}
