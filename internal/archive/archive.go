package archive

import (
	"context"

	"github.com/lehigh-university-libraries/collager/internal/models"
)

// SearchQuery holds the parameters of one image search. Keywords are
// OR-joined terms (Lucene boolean syntax allowed); Collection and
// DateFilter are optional narrowing clauses; MaxResults caps the result
// count (0 means the backend default).
type SearchQuery struct {
	Keywords   string
	Collection string
	DateFilter string
	MaxResults int
}

// Collection is a summary of one archive collection.
type Collection struct {
	Identifier  string `json:"identifier"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	DetailsURL  string `json:"details_url,omitempty"`
}

// Searcher is the synchronous search backend the pipeline consumes.
type Searcher interface {
	SearchImages(ctx context.Context, query SearchQuery) ([]models.SourceImage, error)
	FindCollections(ctx context.Context, keywords string, maxResults int) ([]Collection, error)
}

// CuratedCollections is a hand-picked list of image-rich collections the
// planning agent can offer the model when the live collection search is
// unavailable.
func CuratedCollections() []Collection {
	return []Collection{
		{Identifier: "nasa", Title: "NASA Images", Description: "NASA's image archive"},
		{Identifier: "flickrcommons", Title: "Flickr Commons", Description: "The commons on Flickr"},
		{Identifier: "smithsonian", Title: "Smithsonian", Description: "Smithsonian Institution collections"},
		{Identifier: "brooklynmuseum", Title: "Brooklyn Museum", Description: "Brooklyn Museum image collection"},
		{Identifier: "library_of_congress", Title: "Library of Congress", Description: "Library of Congress digital collections"},
		{Identifier: "biodiversity", Title: "Biodiversity Heritage Library", Description: "Biodiversity Heritage Library images"},
		{Identifier: "metropolitanmuseumofart-gallery", Title: "Metropolitan Museum of Art", Description: "The Met's open access images"},
		{Identifier: "coverartarchive", Title: "Cover Art Archive", Description: "Music cover art"},
	}
}
