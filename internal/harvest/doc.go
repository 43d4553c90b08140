// Package harvest reads playlist track listings from web sources and files.
//
// Harvesters stream [models.TrackInfo] descriptors over a channel so the pipeline can start matching before the
// listing is complete. [ForSource] selects one by URL host or file extension:
//   - open.spotify.com/playlist/<id> and spotify:playlist:<id> scrape the public embed page with colly and goquery
//   - youtube.com/playlist?list=<id> lists the playlist with ytget/ytdlp
//   - *.csv reads an artist,title,duration export
package harvest
