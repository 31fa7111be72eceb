package shell

import (
	"context"

	"github.com/Akash-kotagiri/book-haven/internal/client/session"
	"github.com/Akash-kotagiri/book-haven/internal/models"
)

func (sh *Shell) books() {
	if !sh.requireUser() {
		return
	}
	if err := sh.Library.Err(); err != nil {
		sh.println("Failed to fetch books")
	}
	books := sh.Library.Books()
	if len(books) == 0 {
		sh.println("You have not added any books yet.")
		return
	}
	for _, b := range books {
		sh.printf("%s  %s by %s [%s]\n", b.ID, b.Title, b.Author, b.Category)
	}
}

func (sh *Shell) add(ctx context.Context) {
	if !sh.requireUser() {
		return
	}

	var in models.BookInput
	var ok bool
	if in.Title, ok = sh.ask("Title"); !ok {
		return
	}
	if in.Author, ok = sh.ask("Author"); !ok {
		return
	}
	if in.Title == "" || in.Author == "" {
		sh.println("Title and author are required fields")
		return
	}
	if in.Description, ok = sh.ask("Description (optional)"); !ok {
		return
	}
	if in.Category, ok = sh.ask("Category (optional)"); !ok {
		return
	}
	cover, closeFn, ok := sh.askFile("Cover image path (optional)")
	if !ok {
		return
	}
	defer closeFn()

	book, err := sh.Library.Add(ctx, in, cover)
	if err != nil {
		sh.println(session.Message(err, "Failed to add book"))
		return
	}
	sh.printf("Book added successfully! (%s)\n", book.ID)
}

func (sh *Shell) edit(ctx context.Context, id string) {
	if !sh.requireUser() {
		return
	}
	current, found := sh.Library.Book(id)
	if !found {
		sh.println("Book not found")
		return
	}

	var patch models.BookPatch
	var ok bool
	if patch.Title, ok = sh.askChange("Title", current.Title); !ok {
		return
	}
	if patch.Author, ok = sh.askChange("Author", current.Author); !ok {
		return
	}
	if (patch.Title != nil && *patch.Title == "") || (patch.Author != nil && *patch.Author == "") {
		sh.println("Title and author are required fields")
		return
	}
	if patch.Description, ok = sh.askChange("Description", current.Description); !ok {
		return
	}
	if patch.Category, ok = sh.askChange("Category", current.Category); !ok {
		return
	}
	cover, closeFn, ok := sh.askFile("New cover image path (optional)")
	if !ok {
		return
	}
	defer closeFn()

	if _, err := sh.Library.Edit(ctx, id, patch, cover); err != nil {
		sh.println(session.Message(err, "Failed to edit book"))
		return
	}
	sh.println("Book updated successfully!")
}

func (sh *Shell) delete(ctx context.Context, id string) {
	if !sh.requireUser() {
		return
	}
	if _, err := sh.Library.Delete(ctx, id); err != nil {
		sh.println(session.Message(err, "Failed to delete book"))
		return
	}
	sh.println("Book deleted successfully!")
}
