package crawl

import "errors"

// ErrCrawlRepositoryRequired is returned when no crawl repository is provided.
var ErrCrawlRepositoryRequired = errors.New("crawl repository is required")
