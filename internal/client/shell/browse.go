package shell

import (
	"context"
	"errors"
	"strings"

	"github.com/Akash-kotagiri/book-haven/internal/client/catalog"
	"github.com/Akash-kotagiri/book-haven/internal/client/session"
)

// PageSize is the number of search results shown at a time.
const PageSize = 12

func (sh *Shell) search(ctx context.Context, query string) {
	res, err := sh.Catalog.Search(ctx, query)
	if err != nil {
		sh.println("Failed to load books. Please try again.")
		return
	}
	sh.results = res.Volumes
	sh.shown = 0
	if res.Stale {
		sh.println("API unavailable, showing cached data.")
	}
	if len(sh.results) == 0 {
		sh.println("No books found for this search.")
		return
	}
	sh.more()
}

func (sh *Shell) more() {
	if sh.results == nil {
		sh.println("Nothing to show. Run search first.")
		return
	}
	if sh.shown >= len(sh.results) {
		sh.println("No more books.")
		return
	}
	end := min(sh.shown+PageSize, len(sh.results))
	for i := sh.shown; i < end; i++ {
		sh.printVolumeLine(i+1, sh.results[i])
	}
	sh.shown = end
	if end < len(sh.results) {
		sh.printf("Showing %d of %d. Type 'more' for more.\n", end, len(sh.results))
	}
}

func (sh *Shell) printVolumeLine(n int, v catalog.Volume) {
	title := v.Title
	if title == "" {
		title = "Untitled"
	}
	mark := " "
	if sh.Session.IsFavorite(v.ID) {
		mark = "*"
	}
	line := title
	if len(v.Authors) > 0 {
		line += " by " + strings.Join(v.Authors, ", ")
	}
	sh.printf("%3d. %s %s  %s\n", n, mark, v.ID, line)
}

func (sh *Shell) show(ctx context.Context, id string) {
	v, stale, err := sh.Catalog.Volume(ctx, id)
	if err != nil {
		if errors.Is(err, catalog.ErrVolumeNotFound) {
			sh.println("Book not found.")
			return
		}
		sh.println("Failed to load book. Please try again.")
		return
	}
	if stale {
		sh.println("API unavailable, showing cached data.")
	}

	title := v.Title
	if title == "" {
		title = "Untitled"
	}
	sh.printf("%s\n", title)
	if v.Subtitle != "" {
		sh.printf("  %s\n", v.Subtitle)
	}
	if len(v.Authors) > 0 {
		sh.printf("Authors:    %s\n", strings.Join(v.Authors, ", "))
	}
	if v.Publisher != "" || v.PublishedDate != "" {
		sh.printf("Published:  %s %s\n", v.Publisher, v.PublishedDate)
	}
	if len(v.Categories) > 0 {
		sh.printf("Categories: %s\n", strings.Join(v.Categories, ", "))
	}
	if v.PageCount > 0 {
		sh.printf("Pages:      %d\n", v.PageCount)
	}
	if v.Thumbnail != "" {
		sh.printf("Cover:      %s\n", v.Thumbnail)
	} else {
		sh.println("Cover:      Image not available")
	}
	if v.Description != "" {
		sh.printf("\n%s\n", v.Description)
	}
	if sh.Session.IsFavorite(v.ID) {
		sh.println("\n* In your favorites")
	}
}

func (sh *Shell) fav(ctx context.Context, id string) {
	if !sh.requireUser() {
		return
	}
	added, err := sh.Session.ToggleFavorite(ctx, id)
	switch {
	case errors.Is(err, session.ErrBusy):
		sh.println("A favorite update is already in progress.")
	case err != nil:
		sh.println("Failed to update favorites")
	case added:
		sh.println("Added to favorites!")
	default:
		sh.println("Removed from favorites!")
	}
}

func (sh *Shell) favorites(ctx context.Context) {
	u := sh.Session.User()
	if u == nil {
		sh.println("Please log in first.")
		return
	}
	if len(u.Favorites) == 0 {
		sh.println("You have no favorites yet.")
		return
	}

	res, err := sh.Catalog.Favorites(ctx, u.Favorites)
	switch {
	case errors.Is(err, catalog.ErrNoValidFavorites):
		sh.println("No valid Google Books favorites found.")
		return
	case errors.Is(err, catalog.ErrFavoritesUnavailable):
		sh.println("All favorite book fetches failed. Check your network or book IDs.")
		return
	case err != nil:
		sh.println("Failed to load favorites. Check your network or API key.")
		return
	}
	if res.Stale {
		sh.println("API unavailable, showing cached data.")
	}
	for i, v := range res.Volumes {
		sh.printVolumeLine(i+1, v)
	}
}
