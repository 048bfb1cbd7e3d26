package eutils

import (
	"context"
	"encoding/xml"
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"
)

// abstractBatchDelay separates consecutive efetch batches.
const abstractBatchDelay = time.Second

// XML structures for parsing PubMed EFetch responses. Only the fields the
// pipeline consumes are mapped: PMID, abstract text, MeSH descriptors.

type pubmedArticleSet struct {
	XMLName  xml.Name        `xml:"PubmedArticleSet"`
	Articles []pubmedArticle `xml:"PubmedArticle"`
}

type pubmedArticle struct {
	Citation medlineCitation `xml:"MedlineCitation"`
}

type medlineCitation struct {
	PMID            xmlPMID            `xml:"PMID"`
	Article         xmlArticle         `xml:"Article"`
	MeshHeadingList xmlMeshHeadingList `xml:"MeshHeadingList"`
}

type xmlPMID struct {
	Value string `xml:",chardata"`
}

type xmlArticle struct {
	Abstract xmlAbstract `xml:"Abstract"`
}

type xmlAbstract struct {
	AbstractTexts []xmlAbstractText `xml:"AbstractText"`
}

// xmlAbstractText captures inner XML so inline markup inside
// <AbstractText> does not truncate the captured text; tags are stripped
// during conversion.
type xmlAbstractText struct {
	Label string `xml:"Label,attr"`
	Inner string `xml:",innerxml"`
}

type xmlMeshHeadingList struct {
	MeshHeadings []xmlMeshHeading `xml:"MeshHeading"`
}

type xmlMeshHeading struct {
	Descriptor xmlDescriptorName `xml:"DescriptorName"`
}

type xmlDescriptorName struct {
	Name string `xml:",chardata"`
}

// FetchAbstract retrieves the abstract and MeSH descriptors for one PMID.
func (c *Client) FetchAbstract(ctx context.Context, pmid string) (*Enrichment, error) {
	if pmid == "" {
		return nil, fmt.Errorf("pmid is required")
	}

	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("id", pmid)
	params.Set("retmode", "xml")

	body, err := c.DoGet(ctx, "efetch.fcgi", params)
	if err != nil {
		return nil, fmt.Errorf("fetch request failed: %w", err)
	}

	enrichments, err := parseEnrichments(body)
	if err != nil {
		return nil, err
	}
	for i := range enrichments {
		if enrichments[i].PMID == pmid {
			return &enrichments[i], nil
		}
	}
	// Upstream sometimes answers with a different citation record version;
	// fall back to the first record when exactly one came back.
	if len(enrichments) == 1 {
		enrichments[0].PMID = pmid
		return &enrichments[0], nil
	}
	return nil, fmt.Errorf("no record returned for PMID %s", pmid)
}

// FetchAbstracts enriches the given PMIDs in batches of ten with a one
// second pause between batches. Per-PMID failures are isolated: the map
// entry for a failed PMID is nil, other entries proceed.
func (c *Client) FetchAbstracts(ctx context.Context, pmids []string) (map[string]*Enrichment, error) {
	out := make(map[string]*Enrichment, len(pmids))
	var mu sync.Mutex

	for start := 0; start < len(pmids); start += abstractBatchSize {
		if start > 0 {
			if err := sleepCtx(ctx, abstractBatchDelay); err != nil {
				return out, err
			}
		}
		end := start + abstractBatchSize
		if end > len(pmids) {
			end = len(pmids)
		}

		var wg sync.WaitGroup
		for _, pmid := range pmids[start:end] {
			wg.Add(1)
			go func(pmid string) {
				defer wg.Done()
				enr, err := c.FetchAbstract(ctx, pmid)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					out[pmid] = nil
					return
				}
				out[pmid] = enr
			}(pmid)
		}
		wg.Wait()

		if ctx.Err() != nil {
			return out, ctx.Err()
		}
	}
	return out, nil
}

// parseEnrichments extracts abstract text and MeSH descriptors from an
// efetch XML document.
func parseEnrichments(data []byte) ([]Enrichment, error) {
	var articleSet pubmedArticleSet
	if err := xml.Unmarshal(data, &articleSet); err != nil {
		return nil, fmt.Errorf("parsing PubMed XML: %w", err)
	}

	enrichments := make([]Enrichment, 0, len(articleSet.Articles))
	for _, pa := range articleSet.Articles {
		enrichments = append(enrichments, convertEnrichment(pa))
	}
	return enrichments, nil
}

func convertEnrichment(pa pubmedArticle) Enrichment {
	mc := pa.Citation

	e := Enrichment{PMID: mc.PMID.Value}

	var parts []string
	for _, at := range mc.Article.Abstract.AbstractTexts {
		text := strings.TrimSpace(flattenInnerXML(at.Inner))
		if text == "" {
			continue
		}
		if at.Label != "" {
			parts = append(parts, at.Label+": "+text)
		} else {
			parts = append(parts, text)
		}
	}
	e.Abstract = strings.Join(parts, "\n\n")

	seen := make(map[string]struct{})
	for _, mh := range mc.MeshHeadingList.MeshHeadings {
		name := strings.TrimSpace(mh.Descriptor.Name)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		e.MeshTerms = append(e.MeshTerms, name)
	}
	return e
}

var xmlTagRe = regexp.MustCompile(`<[^>]+>`)

// flattenInnerXML strips markup from an AbstractText body and unescapes
// entities, concatenating the text of all children.
func flattenInnerXML(inner string) string {
	text := xmlTagRe.ReplaceAllString(inner, "")
	return html.UnescapeString(text)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
