// Package services implements the external collaborators of a download run.
//
// # Authentication
//
// [OAuthProvider] implements [AuthProvider] with the installed-app OAuth2 flow. The token is
// cached in a file owned by the provider instance, refreshed on demand and written back when
// it changes. There is no process-wide token cache: callers construct a provider and inject it.
//
// # Listing
//
// [YouTubeLister] implements [PlaylistLister], [PlaylistCatalog] and [PlaylistCleaner] with the
// YouTube Data API v3. The selector "WL" resolves to the user's Watch Later playlist.
// [PublicLister] lists public playlists without credentials.
//
// # Fetching
//
// [NativeFetcher] streams a progressive (audio+video) format selected by resolution.
// [YtdlpFetcher] drives the yt-dlp binary, which can merge separate video and audio streams.
//
// # Errors
//
//   - [*AuthError] : no usable token; fatal for the run
//   - [*ListingError] : quota exceeded, playlist not found or forbidden; fatal for the fetch phase
//   - [*FetchError] : transient, permanently unavailable, no acceptable stream, or unknown
package services
