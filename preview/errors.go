package preview

import "errors"

var (
	// ErrIneligible is returned by Attach for links that never preview.
	ErrIneligible = errors.New("preview: link not eligible")
	// ErrNotInSitemap means the link target is not a page of the site.
	ErrNotInSitemap = errors.New("preview: not in sitemap")
	// ErrFetch wraps fetch failures.
	ErrFetch = errors.New("preview: fetch failed")
	// ErrTargetNotFound means the fetched page has no matching element.
	ErrTargetNotFound = errors.New("preview: target not found")
	// ErrEmpty means the target has no content after its heading.
	ErrEmpty = errors.New("preview: nothing to preview")
)
