package validation

import "encoding/json"

// DefaultSiteTitle is used when a manifest declares no site title.
const DefaultSiteTitle = "chartbook"

// SiteConfig is the validated projection of a manifest's site section. It is
// immutable once built; NewSiteConfig is the only way to obtain one.
type SiteConfig struct {
	title     string
	author    string
	copyright string
	theme     string
}

// NewSiteConfig validates every field and returns the resulting config.
// The title is required; author and copyright may be empty.
func NewSiteConfig(title, author, copyright, theme string) (*SiteConfig, error) {
	var err error
	if title, err = ValidateText(title, "site.title", DefaultMaxLength, true); err != nil {
		return nil, err
	}
	if author, err = ValidateText(author, "site.author", DefaultMaxLength, false); err != nil {
		return nil, err
	}
	if copyright, err = ValidateText(copyright, "site.copyright", DefaultMaxLength, false); err != nil {
		return nil, err
	}
	if theme, err = ValidateTheme(theme); err != nil {
		return nil, err
	}
	return &SiteConfig{title: title, author: author, copyright: copyright, theme: theme}, nil
}

// SiteInput is the raw, untrusted site section. TitleSet distinguishes an
// omitted title from an explicitly empty one.
type SiteInput struct {
	Title     string
	TitleSet  bool
	Author    string
	Copyright string
}

// SiteConfigFor builds the SiteConfig for a manifest of the given role
// ("catalog" or "pipeline").
func SiteConfigFor(in SiteInput, role string) (*SiteConfig, error) {
	theme, err := ThemeForRole(role)
	if err != nil {
		return nil, err
	}
	title := in.Title
	if !in.TitleSet {
		title = DefaultSiteTitle
	}
	return NewSiteConfig(title, in.Author, in.Copyright, theme)
}

// Title returns the validated site title.
func (c *SiteConfig) Title() string { return c.title }

// Author returns the validated author, possibly empty.
func (c *SiteConfig) Author() string { return c.author }

// Copyright returns the validated copyright line, possibly empty.
func (c *SiteConfig) Copyright() string { return c.copyright }

// Theme returns the theme selected for the manifest's role.
func (c *SiteConfig) Theme() string { return c.theme }

// MarshalJSON exposes the validated fields to API consumers.
func (c *SiteConfig) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Title     string `json:"title"`
		Author    string `json:"author"`
		Copyright string `json:"copyright"`
		Theme     string `json:"theme"`
	}{c.title, c.author, c.copyright, c.theme})
}
