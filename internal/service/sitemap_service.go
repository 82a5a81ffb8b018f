package service

import (
	"context"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"shoe-market/internal/repository"
)

const sitemapNamespace = "http://www.sitemaps.org/schemas/sitemap/0.9"

type urlSet struct {
	XMLName xml.Name     `xml:"urlset"`
	Xmlns   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod"`
	ChangeFreq string `xml:"changefreq"`
	Priority   string `xml:"priority"`
}

// SitemapService renders the public URL index of the marketplace.
type SitemapService interface {
	Generate(ctx context.Context) ([]byte, error)
}

type sitemapService struct {
	listingRepo repository.ListingRepository
	baseURL     string
	now         func() time.Time
}

func NewSitemapService(listingRepo repository.ListingRepository, frontendURL string) SitemapService {
	return &sitemapService{
		listingRepo: listingRepo,
		baseURL:     strings.TrimRight(frontendURL, "/") + "/",
		now:         time.Now,
	}
}

// Generate lists the site root followed by one entry per listing. Listings
// have no update timestamp, so lastmod is the creation date.
func (s *sitemapService) Generate(ctx context.Context) ([]byte, error) {
	entries, err := s.listingRepo.ListSitemapEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load sitemap entries: %w", err)
	}

	set := urlSet{Xmlns: sitemapNamespace, URLs: make([]sitemapURL, 0, len(entries)+1)}
	set.URLs = append(set.URLs, sitemapURL{
		Loc:        s.baseURL,
		LastMod:    s.now().UTC().Format(time.DateOnly),
		ChangeFreq: "daily",
		Priority:   "1.0",
	})
	for _, e := range entries {
		set.URLs = append(set.URLs, sitemapURL{
			Loc:        s.baseURL + "shoe/" + e.ID.String(),
			LastMod:    e.CreatedAt.UTC().Format(time.DateOnly),
			ChangeFreq: "weekly",
			Priority:   "0.8",
		})
	}

	body, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode sitemap: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}
