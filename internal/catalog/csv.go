package catalog

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/cineshelfapp/cineshelf/internal/domain"
	domainerrors "github.com/cineshelfapp/cineshelf/internal/errors"
)

// CSV column names, in export order.
const (
	colTitle      = "Title"
	colFormat     = "Format"
	colRegion     = "Region"
	colDiscs      = "Discs"
	colEdition    = "Edition"
	colLanguages  = "Languages"
	colUPC        = "UPC"
	colNotes      = "Notes"
	colType       = "Type"
	colYear       = "Year"
	colRating     = "Rating"
	colDirector   = "Director"
	colGenre      = "Genre"
	colPlot       = "Plot"
	colExternalID = "External_ID"
	colAdded      = "Added"

	// Files written by older exports name the id column after IMDb.
	colLegacyExternalID = "IMDB_ID"
)

var csvHeader = []string{
	colTitle, colFormat, colRegion, colDiscs, colEdition, colLanguages, colUPC, colNotes,
	colType, colYear, colRating, colDirector, colGenre, colPlot, colExternalID, colAdded,
}

const (
	typeWishlist   = "Wishlist"
	typeCollection = "Collection"
	addedLayout    = "2006-01-02"
)

// ExportCSV writes every copy with its linked title data as CSV.
func (c *Catalog) ExportCSV(w io.Writer) error {
	data := c.Data()
	titles := data.TitleIndex()

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, cp := range data.Copies {
		kind := typeCollection
		if cp.IsWishlist {
			kind = typeWishlist
		}

		var year, rating, director, genre, plot, externalID string
		if t, ok := titles[cp.TitleRef]; ok && cp.Resolved {
			if t.Year > 0 {
				year = strconv.Itoa(t.Year)
			}
			if t.Rating > 0 {
				rating = strconv.FormatFloat(t.Rating, 'f', -1, 64)
			}
			director, genre, plot, externalID = t.Director, t.Genre, t.Plot, t.ExternalID
		}

		row := []string{
			cp.Title, cp.Format, cp.Region, strconv.Itoa(cp.DiscCount), cp.Edition, cp.Languages,
			cp.UPC, cp.Notes, kind, year, rating, director, genre, plot, externalID,
			cp.CreatedAt.Format(addedLayout),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// ImportResult reports what ImportCSV added.
type ImportResult struct {
	Copies  int `json:"copies"`
	Titles  int `json:"titles"`
	Linked  int `json:"linked"`
	Skipped int `json:"skipped"`
}

// ImportCSV appends the rows of r as new copies. Rows carrying an external id create or
// refresh the matching title and are linked to it. Rows without a title are skipped.
// The import is all or nothing: an invalid row aborts it without changing the catalog.
func (c *Catalog) ImportCSV(ctx context.Context, r io.Reader) (*ImportResult, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, domainerrors.Validation("csv file is empty")
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeValidation, "read csv header")
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	if _, ok := cols[colTitle]; !ok {
		return nil, domainerrors.Validationf("csv header has no %q column", colTitle)
	}
	if _, ok := cols[colExternalID]; !ok {
		if i, legacy := cols[colLegacyExternalID]; legacy {
			cols[colExternalID] = i
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	next := c.data.Clone()
	result := &ImportResult{}
	now := c.now()

	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, domainerrors.Wrapf(err, domainerrors.CodeValidation, "read csv line %d", line)
		}
		field := func(name string) string {
			i, ok := cols[name]
			if !ok || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}

		cp := domain.Copy{
			Title:      field(colTitle),
			Format:     field(colFormat),
			Region:     field(colRegion),
			Edition:    field(colEdition),
			Languages:  field(colLanguages),
			UPC:        field(colUPC),
			Notes:      field(colNotes),
			IsWishlist: strings.EqualFold(field(colType), typeWishlist),
			CreatedAt:  now,
		}
		if cp.Title == "" {
			result.Skipped++
			continue
		}
		if cp.Format == "" {
			cp.Format = domain.DefaultFormat
		}
		cp.DiscCount, _ = strconv.Atoi(field(colDiscs))
		if cp.DiscCount == 0 {
			cp.DiscCount = domain.MinDiscCount
		}
		if added, err := time.Parse(addedLayout, field(colAdded)); err == nil {
			cp.CreatedAt = added.UTC()
		}
		if err := c.validateCopy(&cp); err != nil {
			return nil, rowError(line, err)
		}

		if extID := field(colExternalID); extID != "" {
			title := mergeTitleColumns(next.Titles, extID, cp.Title, field)
			title, err = c.cleanTitle(title)
			if err != nil {
				return nil, rowError(line, err)
			}
			before := len(next.Titles)
			next.Titles = upsertTitle(next.Titles, title)
			if len(next.Titles) > before {
				result.Titles++
			}
			cp.Link(title.ExternalID)
			result.Linked++
		} else if t := findTitleByName(next.Titles, cp.Title); t != nil {
			cp.Link(t.ExternalID)
			result.Linked++
		}

		copyID, err := c.newID()
		if err != nil {
			return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "generate copy id")
		}
		cp.ID = copyID
		next.Copies = append(next.Copies, cp)
		result.Copies++
	}

	if err := c.commit(ctx, next); err != nil {
		return nil, err
	}

	c.logger.Info("csv imported",
		"copies", result.Copies,
		"titles", result.Titles,
		"linked", result.Linked,
		"skipped", result.Skipped,
	)
	return result, nil
}

func rowError(line int, err error) error {
	var de *domainerrors.Error
	if domainerrors.As(err, &de) {
		return domainerrors.ValidationWithDetails(fmt.Sprintf("csv line %d: %s", line, de.Message), de.Details)
	}
	return domainerrors.Wrapf(err, domainerrors.CodeValidation, "csv line %d", line)
}

// mergeTitleColumns overlays the non-empty title columns of a row onto the
// title already stored under extID, so fields the CSV does not carry survive.
func mergeTitleColumns(titles []domain.Title, extID, name string, field func(string) string) domain.Title {
	title := domain.Title{ExternalID: extID, Name: name}
	if i := slices.IndexFunc(titles, func(t domain.Title) bool { return t.ExternalID == extID }); i >= 0 {
		title = titles[i]
	}
	if v := field(colDirector); v != "" {
		title.Director = v
	}
	if v := field(colGenre); v != "" {
		title.Genre = v
	}
	if v := field(colPlot); v != "" {
		title.Plot = v
	}
	if year, err := strconv.Atoi(field(colYear)); err == nil {
		title.Year = year
	}
	if rating, err := strconv.ParseFloat(field(colRating), 64); err == nil {
		title.Rating = rating
	}
	return title
}
