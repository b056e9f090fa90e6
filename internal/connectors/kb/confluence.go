package kbconn

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jmgress/smartrecover/internal/apperr"
	"github.com/jmgress/smartrecover/internal/kbdoc"
	"github.com/jmgress/smartrecover/internal/observability"
)

// Confluence is a REST-backed KnowledgeBaseConnector against a Confluence
// space.
type Confluence struct {
	baseURL string
	email   string
	token   string
	space   string
	client  *http.Client
	logger  zerolog.Logger
}

func NewConfluence(baseURL, email, token, space string, client *http.Client, logger zerolog.Logger) *Confluence {
	return &Confluence{baseURL: strings.TrimRight(baseURL, "/"), email: email, token: token, space: space, client: client, logger: logger}
}

type confluencePage struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Body  struct {
		Storage struct {
			Value string `json:"value"`
		} `json:"storage"`
	} `json:"body"`
	Metadata struct {
		Labels struct {
			Results []struct {
				Name string `json:"name"`
			} `json:"results"`
		} `json:"labels"`
	} `json:"metadata"`
}

type confluenceSearchResult struct {
	Results []confluencePage `json:"results"`
}

func (c *Confluence) do(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if query != nil {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return apperr.Wrap(apperr.UpstreamFailure, "build confluence request", err)
	}
	req.SetBasicAuth(c.email, c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return apperr.Wrap(apperr.UpstreamFailure, "call confluence", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperr.Wrap(apperr.UpstreamFailure, "read confluence response", err)
	}
	if resp.StatusCode >= 400 {
		c.logger.Warn().Int("status", resp.StatusCode).Str("path", path).
			RawJSON("body", observability.RedactJSON(raw)).Msg("confluence_error_response")
		return apperr.New(apperr.UpstreamFailure, fmt.Sprintf("confluence responded %d for %s", resp.StatusCode, path))
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			c.logger.Warn().Str("path", path).RawJSON("body", observability.RedactJSON(raw)).
				Err(err).Msg("confluence_decode_failed")
			return apperr.Wrap(apperr.UpstreamFailure, "decode confluence response", err)
		}
	}
	return nil
}

// Search uses Confluence's CQL text search scoped to the configured space,
// then returns up to k results in the order Confluence ranks them
// (Confluence's own relevance ranking, not the mock's local Jaccard).
func (c *Confluence) Search(ctx context.Context, queryTerms []string, k int) ([]kbdoc.Document, error) {
	cql := fmt.Sprintf(`space=%s and text~"%s"`, c.space, strings.Join(queryTerms, " "))
	q := url.Values{
		"cql":        {cql},
		"expand":     {"body.storage,metadata.labels"},
		"limit":      {fmt.Sprintf("%d", k)},
	}
	var res confluenceSearchResult
	if err := c.do(ctx, "/rest/api/content/search", q, &res); err != nil {
		return nil, err
	}
	out := make([]kbdoc.Document, 0, len(res.Results))
	for _, p := range res.Results {
		out = append(out, p.toDocument(c.space))
	}
	return out, nil
}

func (c *Confluence) Get(ctx context.Context, docID string) (kbdoc.Document, error) {
	var p confluencePage
	q := url.Values{"expand": {"body.storage,metadata.labels"}}
	if err := c.do(ctx, "/rest/api/content/"+docID, q, &p); err != nil {
		return kbdoc.Document{}, err
	}
	return p.toDocument(c.space), nil
}

func (p confluencePage) toDocument(space string) kbdoc.Document {
	var tags []string
	for _, l := range p.Metadata.Labels.Results {
		tags = append(tags, l.Name)
	}
	return kbdoc.Document{
		DocID:      p.ID,
		Title:      p.Title,
		Content:    p.Body.Storage.Value,
		Tags:       tags,
		SpaceOrKey: space,
	}
}
