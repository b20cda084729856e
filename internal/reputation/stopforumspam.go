package reputation

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// DefaultBaseURL is the public StopForumSpam endpoint.
const DefaultBaseURL = "http://us.stopforumspam.org"

// StopForumSpamClient asks StopForumSpam how often an address has been
// reported. The reply is an XML document with a <frequency> element.
type StopForumSpamClient struct {
	BaseURL string
	HTTP    *http.Client
}

func NewStopForumSpamClient(baseURL string, hc *http.Client) *StopForumSpamClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if hc == nil {
		hc = http.DefaultClient
	}
	return &StopForumSpamClient{BaseURL: strings.TrimRight(baseURL, "/"), HTTP: hc}
}

// Frequency performs a single GET; it never retries.
func (c *StopForumSpamClient) Frequency(ctx context.Context, addr string) (int, error) {
	u := c.BaseURL + "/api?email=" + url.QueryEscape(addr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: build request: %v", ErrRemote, err)
	}
	res, err := c.HTTP.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRemote, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return 0, fmt.Errorf("%w: status %d", ErrRemote, res.StatusCode)
	}
	freq, err := parseFrequency(io.LimitReader(res.Body, 64<<10))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRemote, err)
	}
	return freq, nil
}

// parseFrequency returns the integer text of the first <frequency> element
// anywhere in the document.
func parseFrequency(r io.Reader) (int, error) {
	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return 0, errors.New("no frequency element")
		}
		if err != nil {
			return 0, fmt.Errorf("decode xml: %w", err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "frequency" {
			continue
		}
		var text string
		if err := dec.DecodeElement(&text, &se); err != nil {
			return 0, fmt.Errorf("decode frequency: %w", err)
		}
		n, err := strconv.Atoi(strings.TrimSpace(text))
		if err != nil {
			return 0, fmt.Errorf("frequency %q: %w", text, err)
		}
		return n, nil
	}
}
