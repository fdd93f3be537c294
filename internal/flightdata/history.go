package flightdata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/yegors/flightwx/pkg/logger"
)

// metarLine matches cell text that starts like a METAR/SPECI report
var metarLine = regexp.MustCompile(`^(?:(?:METAR|SPECI)\s+)?[A-Z][A-Z0-9]{3}\s+\d{6}Z\b`)

// AirportMETARsHistory scrapes the METAR history table of the airport weather page
func (c *Client) AirportMETARsHistory(ctx context.Context, airport string) ([]Observation, error) {
	endpoint := fmt.Sprintf("%s/data/airports/%s/weather", c.config.SiteBaseURL, url.PathEscape(strings.ToLower(airport)))

	body, found, err := c.fetch(ctx, endpoint, "text/html")
	if err != nil || !found {
		return nil, err
	}

	observations, err := parseHistoryPage(body)
	if err != nil {
		c.logger.Warn("Unable to parse airport weather page",
			logger.String("airport", airport),
			logger.Error(err))
		return nil, nil
	}

	c.logger.Debug("Parsed METAR history",
		logger.String("airport", airport),
		logger.Int("observations", len(observations)))
	return observations, nil
}

// parseHistoryPage extracts one observation per table row holding a METAR.
// A numeric data-timestamp attribute on the row (or one of its cells) becomes the observation time.
func parseHistoryPage(body []byte) ([]Observation, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	observations := []Observation{}
	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		var raw string
		row.Find("td").EachWithBreak(func(_ int, cell *goquery.Selection) bool {
			text := strings.Join(strings.Fields(cell.Text()), " ")
			if metarLine.MatchString(text) {
				raw = text
				return false
			}
			return true
		})
		if raw == "" {
			return
		}

		if ts, ok := rowTimestamp(row); ok {
			observations = append(observations, NewRecord(raw, json.RawMessage(strconv.FormatInt(ts, 10))))
			return
		}
		observations = append(observations, NewText(raw))
	})
	return observations, nil
}

func rowTimestamp(row *goquery.Selection) (int64, bool) {
	candidates := []*goquery.Selection{row, row.Find("[data-timestamp]").First()}
	for _, sel := range candidates {
		if v, ok := sel.Attr("data-timestamp"); ok {
			if ts, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
				return ts, true
			}
		}
	}
	return 0, false
}
