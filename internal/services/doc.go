// Package services implements the external collaborators of a download job.
//
// # Resolver
//
// [SpotifyService] turns a Spotify link into songs. It authenticates with the client-credentials grant
// ([clientcredentials.Config]), so only public catalogue data and public playlists are reachable.
// Links are parsed by [ParseLink], which accepts open.spotify.com URLs (with or without an /intl-xx/ prefix)
// and spotify: URIs for tracks, playlists and albums. Playlist and album listings follow the API's "next" links
// until exhausted. Requests are throttled with a [rate.Limiter].
//
// # Fetcher
//
// [YouTubeService] runs yt-dlp through go-ytdlp with a "ytsearch1:" query built from [models.Song.Query],
// extracting the best audio stream as mp3. The produced file is whatever new file appears in the target directory.
//
// # API client
//
// [APIService] talks to a running songzip server: progress polling, track listing, starting selected
// downloads and fetching archives.
//
// # Error Handling
//
// Services wrap the sentinels from the shared package:
//   - [shared.ErrInvalidLink] : link is not a track, playlist or album reference
//   - [shared.ErrMissingCredentials] : no client id or secret
//   - [shared.ErrAuthFailed] : token request rejected
//   - [shared.ErrTrackNotFound] / [shared.ErrPlaylistNotFound] : 404 from Spotify, or no search hit on YouTube
//   - [shared.ErrAPIRequest] : any other non-2xx response
//   - [shared.ErrFetchFailed] : yt-dlp failed
package services
