// Package tagging finalizes downloaded audio into the library.
//
// [Stage.Finalize] writes tags with a [Tagger] and renames the temp file to "<artist> - <title>.<ext>".
// Two taggers are provided:
//   - [FFmpegTagger] remuxes with `-codec copy -id3v2_version 3`, optionally attaching a cover stream
//   - [TaglibTagger] edits tags in place via go.senan.xyz/taglib
//
// [TaglibReader] reads bitrate and length of finalized files for mission reports.
package tagging
