package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/lehigh-university-libraries/collager/internal/models"
)

const (
	defaultBaseURL       = "https://archive.org"
	thumbnailURLTemplate = "https://archive.org/services/img/%s"
	detailsURLTemplate   = "https://archive.org/details/%s"

	defaultImageRows      = 20
	defaultCollectionRows = 10
)

// Client queries the Internet Archive advancedsearch API.
type Client struct {
	BaseURL    string
	httpClient *http.Client
}

// NewClient creates a new Internet Archive client
func NewClient() *Client {
	return &Client{
		BaseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// flexString tolerates archive fields that are returned either as a
// string or as a list of strings.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		if len(list) > 0 {
			*f = flexString(list[0])
		}
		return nil
	}
	// Numeric dates and other scalars: keep the raw token.
	*f = flexString(string(data))
	return nil
}

type searchDoc struct {
	Identifier  string     `json:"identifier"`
	Title       flexString `json:"title"`
	Creator     flexString `json:"creator"`
	Date        flexString `json:"date"`
	Description flexString `json:"description"`
}

// SearchImages searches the archive for image items matching the query
func (c *Client) SearchImages(ctx context.Context, query SearchQuery) ([]models.SourceImage, error) {
	q := fmt.Sprintf("(%s) AND mediatype:image", query.Keywords)
	if query.Collection != "" {
		q += " AND collection:" + query.Collection
	}
	if query.DateFilter != "" {
		q += fmt.Sprintf(" AND date:[%s]", query.DateFilter)
	}

	rows := query.MaxResults
	if rows <= 0 {
		rows = defaultImageRows
	}

	docs, err := c.search(ctx, q, []string{"identifier", "title", "creator", "date", "description"}, rows)
	if err != nil {
		return nil, err
	}

	results := make([]models.SourceImage, 0, len(docs))
	for _, doc := range docs {
		if doc.Identifier == "" {
			continue
		}
		results = append(results, models.SourceImage{
			ExternalID:  doc.Identifier,
			Title:       string(doc.Title),
			Description: string(doc.Description),
			Metadata: map[string]string{
				models.MetaCreator:      string(doc.Creator),
				models.MetaYear:         string(doc.Date),
				models.MetaThumbnailURL: fmt.Sprintf(thumbnailURLTemplate, doc.Identifier),
				models.MetaDetailsURL:   fmt.Sprintf(detailsURLTemplate, doc.Identifier),
			},
		})
	}
	return results, nil
}

// FindCollections searches the archive for collections matching the keywords
func (c *Client) FindCollections(ctx context.Context, keywords string, maxResults int) ([]Collection, error) {
	q := fmt.Sprintf("(%s) AND mediatype:collection", keywords)
	if maxResults <= 0 {
		maxResults = defaultCollectionRows
	}

	docs, err := c.search(ctx, q, []string{"identifier", "title", "description"}, maxResults)
	if err != nil {
		return nil, err
	}

	results := make([]Collection, 0, len(docs))
	for _, doc := range docs {
		if doc.Identifier == "" {
			continue
		}
		results = append(results, Collection{
			Identifier:  doc.Identifier,
			Title:       string(doc.Title),
			Description: string(doc.Description),
			DetailsURL:  fmt.Sprintf(detailsURLTemplate, doc.Identifier),
		})
	}
	return results, nil
}

func (c *Client) search(ctx context.Context, query string, fields []string, rows int) ([]searchDoc, error) {
	params := url.Values{}
	params.Set("q", query)
	for _, f := range fields {
		params.Add("fl[]", f)
	}
	params.Set("rows", strconv.Itoa(rows))
	params.Set("page", "1")
	params.Set("output", "json")

	searchURL := c.BaseURL + "/advancedsearch.php?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create search request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query archive: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("archive search returned status %d: %s", resp.StatusCode, string(body))
	}

	var response struct {
		Response struct {
			Docs []searchDoc `json:"docs"`
		} `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode archive response: %w", err)
	}

	return response.Response.Docs, nil
}
