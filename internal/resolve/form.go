package resolve

import (
	"github.com/cineshelfapp/cineshelf/internal/catalog"
	"github.com/cineshelfapp/cineshelf/internal/domain"
)

// Form is the editable state of the copy being resolved.
// Its fields are written to the copy when the copy is resolved.
type Form struct {
	CopyID     string `json:"copyId"`
	Title      string `json:"title"`
	Format     string `json:"format"`
	Region     string `json:"region"`
	Edition    string `json:"edition"`
	Languages  string `json:"languages"`
	Notes      string `json:"notes"`
	UPC        string `json:"upc"`
	DiscCount  int    `json:"discCount"`
	IsWishlist bool   `json:"isWishlist"`
}

func formFromCopy(cp *domain.Copy) Form {
	return Form{
		CopyID:     cp.ID,
		Title:      cp.Title,
		Format:     cp.Format,
		Region:     cp.Region,
		Edition:    cp.Edition,
		Languages:  cp.Languages,
		Notes:      cp.Notes,
		UPC:        cp.UPC,
		DiscCount:  cp.DiscCount,
		IsWishlist: cp.IsWishlist,
	}
}

func (f *Form) apply(p catalog.CopyPatch) {
	var cp domain.Copy
	f.copyTo(&cp)
	p.Apply(&cp)
	*f = formFromCopy(&cp)
}

func (f *Form) copyTo(cp *domain.Copy) {
	cp.ID = f.CopyID
	cp.Title = f.Title
	cp.Format = f.Format
	cp.Region = f.Region
	cp.Edition = f.Edition
	cp.Languages = f.Languages
	cp.Notes = f.Notes
	cp.UPC = f.UPC
	cp.DiscCount = f.DiscCount
	cp.IsWishlist = f.IsWishlist
}

// patch turns the form into a catalog patch. The title is left out: a resolved copy
// takes the name of its title.
func (f *Form) patch() catalog.CopyPatch {
	return catalog.CopyPatch{
		Format:     &f.Format,
		Region:     &f.Region,
		Edition:    &f.Edition,
		Languages:  &f.Languages,
		Notes:      &f.Notes,
		UPC:        &f.UPC,
		DiscCount:  &f.DiscCount,
		IsWishlist: &f.IsWishlist,
	}
}
