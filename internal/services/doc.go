// Package services implements the external collaborators used by the ingestion pipeline.
//
// # YouTube
//
// [YouTubeService] drives yt-dlp through github.com/lrstanley/go-ytdlp:
//   - Search runs "ytsearch<N>:<query>" with --flat-playlist --dump-json and decodes one JSON object per line
//   - Fetch runs --extract-audio with the configured codec and quality into "<stem>.%(ext)s"
//
// The GPU engine adds a "-hwaccel cuda" post-processor argument; falling back to CPU is the download stage's job.
//
// A failing invocation returns a ytdlpError carrying the arguments and the tail of stderr.
// Context cancellation is returned unwrapped.
//
// # Artwork
//
// [ArtworkService] fetches candidate thumbnails for embedding as cover art, capped at [MaxArtworkBytes].
package services
