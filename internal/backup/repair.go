package backup

import (
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cineshelfapp/cineshelf/internal/domain"
	"github.com/cineshelfapp/cineshelf/internal/normalize"
	"github.com/cineshelfapp/cineshelf/internal/snapshot"
)

// untitledCopy replaces an empty copy title.
const untitledCopy = "Untitled"

// Repair converts a decoded document into profile data that satisfies the catalog
// invariants. It returns the data and the number of individual fixes applied.
// A document produced by NewDocument from valid data needs no fixes.
func Repair(doc *snapshot.Document, now time.Time, newID func() (string, error)) (domain.ProfileData, int, error) {
	repaired := 0

	titles := make([]domain.Title, 0, len(doc.Titles))
	seen := make(map[string]bool, len(doc.Titles))
	for i, t := range doc.Titles {
		t.ExternalID = strings.TrimSpace(t.ExternalID)
		if t.ExternalID == "" {
			t.ExternalID = domain.UnknownIDPrefix + strconv.Itoa(i)
			repaired++
		}
		if utf8.RuneCountInString(t.ExternalID) > domain.MaxExternalIDLength {
			t.ExternalID = truncate(t.ExternalID, domain.MaxExternalIDLength)
			repaired++
		}
		switch {
		case strings.TrimSpace(t.Name) == "":
			t.Name = domain.UnknownTitleName
			repaired++
		case utf8.RuneCountInString(t.Name) > domain.MaxTitleNameLength:
			t.Name = truncate(t.Name, domain.MaxTitleNameLength)
			repaired++
		}
		switch {
		case t.Year < 0:
			t.Year = 0
			repaired++
		case t.Year > domain.MaxYear:
			t.Year = domain.MaxYear
			repaired++
		}
		switch {
		case math.IsNaN(t.Rating) || t.Rating < 0:
			t.Rating = 0
			repaired++
		case t.Rating > domain.MaxRating:
			t.Rating = domain.MaxRating
			repaired++
		}
		if seen[t.ExternalID] {
			repaired++
			continue
		}
		seen[t.ExternalID] = true
		titles = append(titles, t)
	}

	copies := make([]domain.Copy, 0, len(doc.Copies))
	ids := make(map[string]bool, len(doc.Copies))
	for _, in := range doc.Copies {
		cp := domain.Copy{
			ID:         strings.TrimSpace(in.ID),
			Title:      strings.TrimSpace(in.Title),
			Format:     in.Format,
			Region:     in.Region,
			Edition:    in.Edition,
			Languages:  in.Languages,
			Notes:      in.Notes,
			UPC:        in.UPC,
			IsWishlist: in.IsWishlist,
		}

		if cp.ID == "" || ids[cp.ID] {
			id, err := newID()
			if err != nil {
				return domain.ProfileData{}, 0, err
			}
			cp.ID = id
			repaired++
		}
		ids[cp.ID] = true

		switch {
		case cp.Title == "":
			cp.Title = untitledCopy
			repaired++
		case utf8.RuneCountInString(cp.Title) > domain.MaxTitleLength:
			cp.Title = truncate(cp.Title, domain.MaxTitleLength)
			repaired++
		}

		if in.CreatedAt == nil || in.CreatedAt.IsZero() {
			cp.CreatedAt = now
			repaired++
		} else {
			cp.CreatedAt = *in.CreatedAt
		}

		switch {
		case in.DiscCount == nil:
			cp.DiscCount = domain.MinDiscCount
			repaired++
		case *in.DiscCount < domain.MinDiscCount:
			cp.DiscCount = domain.MinDiscCount
			repaired++
		case *in.DiscCount > domain.MaxDiscCount:
			cp.DiscCount = domain.MaxDiscCount
			repaired++
		default:
			cp.DiscCount = *in.DiscCount
		}

		ref := ""
		if in.TitleRef != nil {
			ref = strings.TrimSpace(*in.TitleRef)
		}
		if ref != "" && !seen[ref] {
			// Dangling reference.
			ref = ""
			repaired++
		}
		resolved := ref != ""
		if in.Resolved == nil || *in.Resolved != resolved {
			repaired++
		}
		if resolved {
			cp.Link(ref)
		}

		copies = append(copies, cp)
	}

	// Custom editions are unique case-insensitively and never shadow a default.
	editions := make([]string, 0, len(doc.CustomEditions))
	known := make(map[string]bool, len(domain.DefaultEditions)+len(doc.CustomEditions))
	for _, d := range domain.DefaultEditions {
		known[normalize.Fold(d)] = true
	}
	for _, e := range doc.CustomEditions {
		e = strings.TrimSpace(e)
		key := normalize.Fold(e)
		if e == "" || utf8.RuneCountInString(e) > domain.MaxEditionLength || known[key] {
			repaired++
			continue
		}
		known[key] = true
		editions = append(editions, e)
	}

	return domain.ProfileData{Copies: copies, Titles: titles, CustomEditions: editions}, repaired, nil
}

func truncate(s string, n int) string {
	return string([]rune(s)[:n])
}
