// Package whisper transcribes audio locally with whisper.cpp. Build with
// -tags whisper to enable it.
package whisper

// ServiceName is how local transcription failures are reported to the user.
const ServiceName = "local Whisper"

func shortLanguage(tag string) string {
	if len(tag) > 2 && (tag[2] == '-' || tag[2] == '_') {
		return tag[:2]
	}
	return tag
}
