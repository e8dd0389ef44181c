// Package ffmpeg wraps the ffmpeg invocations used by the video pipeline:
// splitting a clip into numbered PNG frames and encoding a frame sequence
// back to H.264 with the source audio stream copied through.
package ffmpeg
