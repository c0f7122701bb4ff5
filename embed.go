package pubfront

import "embed"

// EmbeddedAssets contains static assets shipped with pubfront:
// loadmore.js, the progressive enhancement behind the listing's
// "load more" button.
//
//go:embed embedded/*
var EmbeddedAssets embed.FS
